package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetpulse/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Output = "stdout"
	cfg.Paths.WebDir = filepath.Join(t.TempDir(), "absent")
	return &cfg
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	a, err := NewApplication(testConfig(t))
	require.NoError(t, err)
	return a
}

func TestNewApplicationWiring(t *testing.T) {
	a := newTestApp(t)

	require.NotNil(t, a.Router)
	require.NotNil(t, a.Server)
	require.NotNil(t, a.Hub)
	require.NotNil(t, a.AnalysisService)
	assert.Equal(t, ":8080", a.Server.Addr)
}

func TestHealthRoute(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status["status"])
}

func TestAnalysisRoutesMounted(t *testing.T) {
	a := newTestApp(t)

	// No dataset yet: mounted route answers 404 with the NO_DATASET code
	// rather than chi's bare not-found.
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analysis/table", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_DATASET")
}

func TestMetricsRoute(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSecurityHeadersApplied(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
