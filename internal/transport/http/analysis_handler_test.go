package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fleetpulse/internal/config"
	"fleetpulse/internal/report"
	"fleetpulse/internal/services"
)

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastProgress(string, int, int, string) {}
func (noopBroadcaster) BroadcastStatus(string, string)            {}
func (noopBroadcaster) BroadcastError(string, string)             {}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	upload := config.UploadConfig{MaxFileSize: 1 << 20, MaxFiles: 10}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	service := services.NewAnalysisService(upload, noopBroadcaster{}, logger)
	handler := NewAnalysisHandler(service, upload, logger)

	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(uploadFieldName, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadSample(t *testing.T, srv *httptest.Server) {
	t.Helper()

	body, contentType := multipartBody(t, map[string]string{
		"titan 01012024.csv":  "Vessel,Status\nTitan,New\nTitan,Open\n",
		"aurora 15022024.csv": "Vessel,Status\nAurora,New\n",
	})
	resp, err := http.Post(srv.URL+"/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"titan 01012024.csv": "Vessel,Status\nTitan,New\n",
	})
	resp, err := http.Post(srv.URL+"/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result services.UploadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.FileCount)
	assert.Zero(t, result.FailedCount)
}

func TestUploadWithoutFiles(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no files here"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/files", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			ErrorCode string `json:"error_code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "EMPTY_UPLOAD", envelope.Error.ErrorCode)
}

func TestTableBeforeUpload(t *testing.T) {
	srv := newTestServer(t)

	resp := getJSON(t, srv.URL+"/table", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTable(t *testing.T) {
	srv := newTestServer(t)
	uploadSample(t, srv)

	var payload struct {
		Rows  []services.DisplayRow `json:"rows"`
		Count int                   `json:"count"`
	}
	resp := getJSON(t, srv.URL+"/table", &payload)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, payload.Count)
	assert.Equal(t, "Aurora", payload.Rows[0].VesselName)
	assert.Equal(t, "Titan", payload.Rows[1].VesselName)
	assert.Equal(t, "2", payload.Rows[1].TotalJobs)
}

func TestTableVesselFilter(t *testing.T) {
	srv := newTestServer(t)
	uploadSample(t, srv)

	var payload struct {
		Rows []services.DisplayRow `json:"rows"`
	}
	getJSON(t, srv.URL+"/table?vessel=Titan", &payload)

	require.Len(t, payload.Rows, 1)
	assert.Equal(t, "Titan", payload.Rows[0].VesselName)
}

func TestTableRejectsBadDate(t *testing.T) {
	srv := newTestServer(t)
	uploadSample(t, srv)

	resp := getJSON(t, srv.URL+"/table?date_from=2024-01-01&date_to=2024-02-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t)
	uploadSample(t, srv)

	var rollup struct {
		FileCount int `json:"file_count"`
		TotalJobs int `json:"total_jobs"`
		NewJobs   int `json:"new_jobs"`
	}
	resp := getJSON(t, srv.URL+"/summary", &rollup)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, rollup.FileCount)
	assert.Equal(t, 3, rollup.TotalJobs)
	assert.Equal(t, 2, rollup.NewJobs)
}

func TestCharts(t *testing.T) {
	srv := newTestServer(t)
	uploadSample(t, srv)

	var payload services.ChartsPayload
	resp := getJSON(t, srv.URL+"/charts", &payload)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload.Distribution.Labels, 2)
	assert.Equal(t, []int{2, 1}, payload.Breakdown.Values)
}

func TestFilters(t *testing.T) {
	srv := newTestServer(t)
	uploadSample(t, srv)

	var opts services.FilterOptions
	getJSON(t, srv.URL+"/filters", &opts)

	assert.Equal(t, []string{"Aurora", "Titan"}, opts.Vessels)
	assert.Equal(t, "01-01-2024", opts.DateMin)
	assert.Equal(t, "15-02-2024", opts.DateMax)
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)
	uploadSample(t, srv)

	resp, err := http.Get(srv.URL + "/export")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, report.ContentType, resp.Header.Get("Content-Type"))
	assert.Regexp(t, `attachment; filename="Job_Status_Report_\d{8}_\d{6}\.xlsx"`,
		resp.Header.Get("Content-Disposition"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// The download must be a readable workbook with all rows present.
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
