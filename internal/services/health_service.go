package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// ClientCounter reports connected websocket clients. Implemented by the hub.
type ClientCounter interface {
	ClientCount() int
}

// HealthService answers liveness probes with runtime details.
type HealthService struct {
	version   string
	startTime time.Time
	analysis  *AnalysisService
	clients   ClientCounter
	logger    *slog.Logger
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Runtime   map[string]any `json:"runtime,omitempty"`
}

// NewHealthService creates a health service.
func NewHealthService(version string, analysis *AnalysisService, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		startTime: time.Now(),
		analysis:  analysis,
		clients:   clients,
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// Health returns the current status snapshot.
func (s *HealthService) Health(ctx context.Context) HealthStatus {
	rt := map[string]any{
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}
	if s.clients != nil {
		rt["websocket_clients"] = s.clients.ClientCount()
	}
	if s.analysis != nil {
		rt["dataset_files"] = s.analysis.FileCount()
	}

	return HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Runtime:   rt,
	}
}
