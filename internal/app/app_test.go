package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textgate/textgate/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Logging.Output = "stderr"
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = port

	application, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	return application
}

func doRequest(app *App, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	app.Router().ServeHTTP(w, req)
	return w
}

func TestApp_HealthEndpoint(t *testing.T) {
	application := newTestApp(t)

	w := doRequest(application, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, true, payload["healthy"])

	cacheInfo, ok := payload["cache"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "connected", cacheInfo["status"])
}

func TestApp_CacheDisabledRunsDegraded(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	cfg.Cache.Enabled = false

	application, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer application.Close()

	assert.Nil(t, application.Store)
	assert.False(t, application.Cache.Connected())

	w := doRequest(application, http.MethodGet, "/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func TestApp_MetricsEndpoint(t *testing.T) {
	application := newTestApp(t)

	w := doRequest(application, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "textgate_")
}

func TestApp_ResilienceMetricsEndpoints(t *testing.T) {
	application := newTestApp(t)

	// Exercise one wrapped operation so the registries are non-empty
	op := application.Resilience.WithBalancedResilience("summarize")(
		func(ctx context.Context) (interface{}, error) { return "ok", nil },
	)
	_, err := op(context.Background())
	require.NoError(t, err)

	w := doRequest(application, http.MethodGet, "/v1/resilience/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	operations, ok := payload["operations"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, operations, "summarize")

	w = doRequest(application, http.MethodPost, "/v1/resilience/metrics/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), application.Resilience.GetMetrics("summarize").TotalCalls)

	w = doRequest(application, http.MethodPost, "/v1/resilience/breakers/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestApp_CacheStatsAndInvalidate(t *testing.T) {
	application := newTestApp(t)
	ctx := context.Background()

	application.Cache.CacheResponse(ctx, "text", "summarize", nil,
		map[string]interface{}{"result": "summary"}, "")

	w := doRequest(application, http.MethodGet, "/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "connected", stats["status"])
	assert.Equal(t, float64(1), stats["keys"])

	w = doRequest(application, http.MethodPost, "/v1/cache/invalidate", `{"pattern": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(application, http.MethodPost, "/v1/cache/invalidate", `{"pattern": "a"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestApp_RequestIDHeaders(t *testing.T) {
	application := newTestApp(t)

	w := doRequest(application, http.MethodGet, "/health", "")

	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestApp_UnreachableStoreIsNotFatal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = 1

	start := time.Now()
	application, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer application.Close()

	assert.False(t, application.Cache.Connected())
	assert.Less(t, time.Since(start), 30*time.Second)

	w := doRequest(application, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
