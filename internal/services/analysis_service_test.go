package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetpulse/internal/config"
	"fleetpulse/internal/errors"
)

type stubBroadcaster struct {
	mu       sync.Mutex
	progress []string
	statuses []string
	errors   []string
}

func (b *stubBroadcaster) BroadcastProgress(fileName string, current, total int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress = append(b.progress, fileName)
}

func (b *stubBroadcaster) BroadcastStatus(status, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, status)
}

func (b *stubBroadcaster) BroadcastError(code, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, code)
}

func uploadConfig() config.UploadConfig {
	return config.UploadConfig{MaxFileSize: 1 << 20, MaxFiles: 10}
}

func newService() (*AnalysisService, *stubBroadcaster) {
	hub := &stubBroadcaster{}
	return NewAnalysisService(uploadConfig(), hub, nil), hub
}

func sampleFiles() []UploadedFile {
	return []UploadedFile{
		{Name: "titan 01012024.csv", Data: []byte("Vessel,Status\nTitan,New\nTitan,Open\nTitan,New\n")},
		{Name: "aurora 15022024.csv", Data: []byte("Vessel,Status\nAurora,Open\nAurora,New\n")},
		{Name: "broken.csv", Data: []byte("\"unterminated\n")},
	}
}

func processSample(t *testing.T, s *AnalysisService) {
	t.Helper()
	_, err := s.ProcessUpload(context.Background(), sampleFiles())
	require.NoError(t, err)
}

func TestProcessUpload(t *testing.T) {
	s, hub := newService()

	result, err := s.ProcessUpload(context.Background(), sampleFiles())
	require.NoError(t, err)

	assert.Equal(t, 3, result.FileCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.True(t, s.HasData())
	assert.Equal(t, 3, s.FileCount())

	// One progress event per file, processing and completed statuses.
	assert.Equal(t, []string{"titan 01012024.csv", "aurora 15022024.csv", "broken.csv"}, hub.progress)
	assert.Equal(t, []string{"processing", "completed"}, hub.statuses)
}

func TestProcessUploadReplacesDataset(t *testing.T) {
	s, _ := newService()
	processSample(t, s)

	_, err := s.ProcessUpload(context.Background(), []UploadedFile{
		{Name: "umbra.csv", Data: []byte("Vessel,Status\nUmbra,New\n")},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.FileCount())
	opts, err := s.FilterOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"Umbra"}, opts.Vessels)
}

func TestProcessUploadValidation(t *testing.T) {
	s, _ := newService()

	t.Run("empty upload", func(t *testing.T) {
		_, err := s.ProcessUpload(context.Background(), nil)
		assert.Equal(t, errors.ErrEmptyUpload, err)
	})

	t.Run("too many files", func(t *testing.T) {
		files := make([]UploadedFile, 11)
		for i := range files {
			files[i] = UploadedFile{Name: "f.csv", Data: []byte("Vessel\nA\n")}
		}
		_, err := s.ProcessUpload(context.Background(), files)
		var apiErr *errors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "TOO_MANY_FILES", apiErr.ErrorCode)
	})

	t.Run("file too large", func(t *testing.T) {
		_, err := s.ProcessUpload(context.Background(), []UploadedFile{
			{Name: "big.csv", Data: make([]byte, 2<<20)},
		})
		var apiErr *errors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "FILE_TOO_LARGE", apiErr.ErrorCode)
	})

	// Rejected uploads leave no dataset behind.
	assert.False(t, s.HasData())
}

func TestProcessUploadCancelled(t *testing.T) {
	s, _ := newService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ProcessUpload(ctx, sampleFiles())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadsBeforeUpload(t *testing.T) {
	s, _ := newService()

	_, err := s.Table(Filter{})
	assert.Equal(t, errors.ErrNoDataset, err)
	_, err = s.Summary(Filter{})
	assert.Equal(t, errors.ErrNoDataset, err)
	_, err = s.Charts(Filter{})
	assert.Equal(t, errors.ErrNoDataset, err)
	_, _, err = s.Export(Filter{})
	assert.Equal(t, errors.ErrNoDataset, err)
	_, err = s.FilterOptions()
	assert.Equal(t, errors.ErrNoDataset, err)
}

func TestTableSortedForDisplay(t *testing.T) {
	s, _ := newService()
	processSample(t, s)

	rows, err := s.Table(Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Vessels ascending; the failed file's sentinel vessel "Error" sorts
	// between Aurora and Titan.
	assert.Equal(t, "Aurora", rows[0].VesselName)
	assert.Equal(t, "2", rows[0].TotalJobs)
	assert.Equal(t, "Error", rows[1].VesselName)
	assert.Equal(t, "Error", rows[1].TotalJobs)
	assert.Equal(t, "Titan", rows[2].VesselName)
	assert.Equal(t, "3", rows[2].TotalJobs)
	assert.Equal(t, "2", rows[2].NewJobs)
}

func TestTableWithFilter(t *testing.T) {
	s, _ := newService()
	processSample(t, s)

	rows, err := s.Table(Filter{Vessels: []string{"Titan"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Titan", rows[0].VesselName)

	rows, err = s.Table(Filter{DateFrom: "01-01-2024", DateTo: "31-01-2024"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "titan 01012024.csv", rows[0].FileName)
}

func TestSummary(t *testing.T) {
	s, _ := newService()
	processSample(t, s)

	rollup, err := s.Summary(Filter{})
	require.NoError(t, err)

	assert.Equal(t, 3, rollup.FileCount)
	assert.Equal(t, 5, rollup.TotalJobs)
	assert.Equal(t, 3, rollup.NewJobs)
	assert.Equal(t, 2, rollup.ExistingJobs)
}

func TestCharts(t *testing.T) {
	s, _ := newService()
	processSample(t, s)

	payload, err := s.Charts(Filter{})
	require.NoError(t, err)

	assert.Len(t, payload.Distribution.Labels, 3)
	assert.Len(t, payload.Timeline.Labels, 2)
	assert.Equal(t, []int{3, 2}, payload.Breakdown.Values)
}

func TestExport(t *testing.T) {
	s, _ := newService()
	processSample(t, s)

	raw, name, err := s.Export(Filter{})
	require.NoError(t, err)

	assert.NotEmpty(t, raw)
	assert.Regexp(t, `^Job_Status_Report_\d{8}_\d{6}\.xlsx$`, name)
}

func TestFilterOptions(t *testing.T) {
	s, _ := newService()
	processSample(t, s)

	opts, err := s.FilterOptions()
	require.NoError(t, err)

	assert.Equal(t, []string{"Aurora", "Error", "Titan"}, opts.Vessels)
	assert.True(t, opts.HasDates)
	assert.Equal(t, "01-01-2024", opts.DateMin)
	assert.Equal(t, "15-02-2024", opts.DateMax)
}
