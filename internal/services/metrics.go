package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the analysis pipeline, exposed on /metrics.
var (
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetpulse_uploads_total",
		Help: "Number of upload batches processed.",
	})

	filesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetpulse_files_processed_total",
		Help: "Number of uploaded files analyzed, including failures.",
	})

	filesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetpulse_files_failed_total",
		Help: "Number of uploaded files that could not be parsed.",
	})

	reportsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetpulse_reports_generated_total",
		Help: "Number of Excel reports generated.",
	})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleetpulse_upload_duration_seconds",
		Help:    "Time spent processing one upload batch.",
		Buckets: prometheus.DefBuckets,
	})
)
