// Package services holds the business logic between the HTTP transport and
// the processing packages: the in-memory analysis dataset, filtering, chart
// assembly and report generation.
package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fleetpulse/internal/charts"
	"fleetpulse/internal/config"
	"fleetpulse/internal/dataset"
	"fleetpulse/internal/errors"
	"fleetpulse/internal/extract"
	"fleetpulse/internal/report"
)

// ProgressBroadcaster receives analysis progress events. Implemented by the
// websocket hub; tests substitute a recorder.
type ProgressBroadcaster interface {
	BroadcastProgress(fileName string, current, total int, message string)
	BroadcastStatus(status, message string)
	BroadcastError(code, message string)
}

// UploadedFile is one file from a multipart upload, already read into memory.
type UploadedFile struct {
	Name string
	Data []byte
}

// UploadResult summarizes one processed upload batch.
type UploadResult struct {
	FileCount   int       `json:"file_count"`
	FailedCount int       `json:"failed_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Filter carries the optional vessel and date range criteria. Dates use the
// DD-MM-YYYY display format; validation happens at the transport layer.
type Filter struct {
	Vessels  []string `json:"vessels"`
	DateFrom string   `json:"date_from" validate:"omitempty,datetime=02-01-2006"`
	DateTo   string   `json:"date_to" validate:"omitempty,datetime=02-01-2006"`
}

// DisplayRow is one dashboard table row. Counts are strings so failed files
// can show the "Error" sentinel.
type DisplayRow struct {
	FileName      string `json:"file_name"`
	VesselName    string `json:"vessel_name"`
	TotalJobs     string `json:"total_jobs"`
	NewJobs       string `json:"new_jobs"`
	ExtractedDate string `json:"extracted_date"`
}

// ChartsPayload bundles the three dashboard charts.
type ChartsPayload struct {
	Distribution charts.GroupedBar `json:"distribution"`
	Timeline     charts.Line       `json:"timeline"`
	Breakdown    charts.Donut      `json:"breakdown"`
}

// FilterOptions describes the selectable filter values for the current
// dataset, used to populate the dashboard controls.
type FilterOptions struct {
	Vessels  []string `json:"vessels"`
	DateMin  string   `json:"date_min,omitempty"`
	DateMax  string   `json:"date_max,omitempty"`
	HasDates bool     `json:"has_dates"`
}

// AnalysisService owns the session dataset. A new upload replaces the
// previous one; reads are served from the stored records under a shared lock.
type AnalysisService struct {
	mu         sync.RWMutex
	records    []extract.JobRecord
	uploadedAt time.Time

	upload config.UploadConfig
	hub    ProgressBroadcaster
	logger *slog.Logger
}

// NewAnalysisService creates the service.
func NewAnalysisService(upload config.UploadConfig, hub ProgressBroadcaster, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		upload: upload,
		hub:    hub,
		logger: logger.With(slog.String("component", "analysis_service")),
	}
}

// ProcessUpload analyzes the uploaded files in order and replaces the stored
// dataset with the result. Files are processed one at a time; each emits a
// progress event. Parse failures never abort the batch.
func (s *AnalysisService) ProcessUpload(ctx context.Context, files []UploadedFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, errors.ErrEmptyUpload
	}
	if len(files) > s.upload.MaxFiles {
		return nil, errors.ErrTooManyFiles(s.upload.MaxFiles)
	}
	for _, f := range files {
		if int64(len(f.Data)) > s.upload.MaxFileSize {
			return nil, errors.ErrFileTooLarge(f.Name, s.upload.MaxFileSize)
		}
	}

	start := time.Now()
	s.hub.BroadcastStatus("processing", "upload received")

	records := make([]extract.JobRecord, 0, len(files))
	failed := 0
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec := extract.ProcessFile(f.Name, f.Data)
		records = append(records, rec)
		if rec.Failed {
			failed++
			filesFailedTotal.Inc()
			s.logger.WarnContext(ctx, "file analysis failed", "file", f.Name)
		}
		filesProcessedTotal.Inc()
		s.hub.BroadcastProgress(f.Name, i+1, len(files), "analyzed")
	}

	s.mu.Lock()
	s.records = records
	s.uploadedAt = time.Now()
	uploadedAt := s.uploadedAt
	s.mu.Unlock()

	uploadsTotal.Inc()
	uploadDuration.Observe(time.Since(start).Seconds())

	s.logger.InfoContext(ctx, "upload processed",
		"files", len(files),
		"failed", failed,
		"duration", time.Since(start).String(),
	)
	s.hub.BroadcastStatus("completed", "analysis finished")

	return &UploadResult{
		FileCount:   len(files),
		FailedCount: failed,
		UploadedAt:  uploadedAt,
	}, nil
}

// HasData reports whether an upload has been processed.
func (s *AnalysisService) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records != nil
}

// FileCount returns the number of records in the current dataset.
func (s *AnalysisService) FileCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// filtered builds the table for the current dataset and applies the filter.
func (s *AnalysisService) filtered(f Filter) (*dataset.Table, error) {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	if records == nil {
		return nil, errors.ErrNoDataset
	}

	tbl := dataset.BuildTable(records)
	from := dataset.CoerceDate(f.DateFrom)
	to := dataset.CoerceDate(f.DateTo)
	return tbl.Filter(f.Vessels, from, to), nil
}

// Table returns the filtered rows sorted for display: vessel ascending, date
// descending within each vessel.
func (s *AnalysisService) Table(f Filter) ([]DisplayRow, error) {
	tbl, err := s.filtered(f)
	if err != nil {
		return nil, err
	}
	tbl.SortForDisplay()

	rows := make([]DisplayRow, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		rows = append(rows, DisplayRow{
			FileName:      row.FileName,
			VesselName:    row.VesselName,
			TotalJobs:     row.TotalJobsCell(),
			NewJobs:       row.NewJobsCell(),
			ExtractedDate: row.ExtractedDate,
		})
	}
	return rows, nil
}

// Summary returns the aggregates for the filtered dataset.
func (s *AnalysisService) Summary(f Filter) (*dataset.Rollup, error) {
	tbl, err := s.filtered(f)
	if err != nil {
		return nil, err
	}
	return tbl.Rollup(), nil
}

// Charts returns the three dashboard charts for the filtered dataset.
func (s *AnalysisService) Charts(f Filter) (*ChartsPayload, error) {
	tbl, err := s.filtered(f)
	if err != nil {
		return nil, err
	}
	rollup := tbl.Rollup()
	return &ChartsPayload{
		Distribution: charts.VesselJobDistribution(tbl),
		Timeline:     charts.JobsTimeline(rollup),
		Breakdown:    charts.NewVsExisting(rollup),
	}, nil
}

// Export renders the filtered dataset as a styled workbook and returns the
// bytes with the timestamped download name.
func (s *AnalysisService) Export(f Filter) ([]byte, string, error) {
	tbl, err := s.filtered(f)
	if err != nil {
		return nil, "", err
	}
	tbl.SortForDisplay()

	raw, err := report.Render(tbl, report.DefaultStyle())
	if err != nil {
		s.hub.BroadcastError("REPORT_GENERATION_FAILED", err.Error())
		return nil, "", errors.ReportError(err)
	}

	reportsGeneratedTotal.Inc()
	return raw, report.Filename(time.Now()), nil
}

// FilterOptions returns the selectable vessels and the date bounds of the
// full, unfiltered dataset.
func (s *AnalysisService) FilterOptions() (*FilterOptions, error) {
	tbl, err := s.filtered(Filter{})
	if err != nil {
		return nil, err
	}

	opts := &FilterOptions{Vessels: tbl.Vessels()}
	if min, max := tbl.DateRange(); min != nil && max != nil {
		opts.DateMin = min.Format(dataset.DateLayout)
		opts.DateMax = max.Format(dataset.DateLayout)
		opts.HasDates = true
	}
	return opts, nil
}
