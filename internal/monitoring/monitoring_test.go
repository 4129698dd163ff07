package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, expected := range tests {
		assert.Equal(t, expected, ParseLevel(in), in)
	}
}

func TestLoggerWritesJSONWithTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "info")

	logger.SourceLogger("get_all", "google-photos", 12, true, 30*time.Millisecond)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Photo Source", entry["msg"])
	assert.Equal(t, "google-photos", entry["source"])
	assert.Equal(t, true, entry["fallback"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "time")
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "warn")

	logger.DistributionLogger(10, 3, 12.5, time.Microsecond)
	assert.Empty(t, buf.String())

	logger.SetLevel(slog.LevelDebug)
	logger.DistributionLogger(10, 3, 12.5, time.Microsecond)
	assert.Contains(t, buf.String(), "Photo Distribution")
}

func TestCacheLoggerShortKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "debug")

	assert.NotPanics(t, func() { logger.CacheLogger("get", "abc", false, 0) })
	logger.CacheLogger("get", "0123456789abcdef", true, 1)
	assert.Contains(t, buf.String(), "01234567...")
}

func TestMetricsStats(t *testing.T) {
	m := NewMetrics()
	m.IncrementRequest()
	m.IncrementRequest()
	m.IncrementError()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.RecordPhotosServed("mock-photos", 40, true)
	m.RecordExternalAPIRequest("google-photos", false)
	m.RecordRequestByStatus(http.StatusOK)
	m.RecordResponseTime(10 * time.Millisecond)
	m.RecordResponseTime(30 * time.Millisecond)
	m.IncrementRateLimitEndpoint("search")

	stats := m.GetStats()

	assert.Equal(t, int64(2), stats["total_requests"])
	assert.InDelta(t, 50.0, stats["error_rate_percent"], 1e-9)
	assert.InDelta(t, 50.0, stats["cache_hit_rate_percent"], 1e-9)
	assert.Equal(t, int64(40), stats["photos_served"])
	assert.Equal(t, int64(1), stats["source_fallbacks"])
	assert.Equal(t, map[string]int64{"mock-photos": 1}, stats["source_stats"])
	assert.Equal(t, map[int]int64{200: 1}, stats["status_code_distribution"])
	assert.Equal(t, 30*time.Millisecond, m.GetPercentileResponseTime(99))
	assert.Equal(t, 10*time.Millisecond, m.GetPercentileResponseTime(0))
	assert.Equal(t, 10*time.Millisecond, m.GetPercentileResponseTime(50))

	api := stats["external_api_stats"].(map[string]interface{})["google-photos"].(map[string]interface{})
	assert.Equal(t, int64(1), api["errors"])
}

func TestMonitoringMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	metrics := NewMetrics()

	r := gin.New()
	r.Use(MonitoringMiddleware(metrics, NewLoggerWithWriter(&buf, "info")))
	r.GET("/api/v1/photos", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/photos", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	r.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get(RequestIDHeader))

	assert.Equal(t, int64(2), metrics.RequestCount)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.Contains(t, buf.String(), `"request_id":"fixed-id"`)
}

func TestSuspiciousPatterns(t *testing.T) {
	assert.True(t, containsSQLInjectionPatterns("q=1 union select password"))
	assert.True(t, containsSQLInjectionPatterns("q=x';--"))
	assert.False(t, containsSQLInjectionPatterns("q=golden+hour"))
	assert.False(t, containsSQLInjectionPatterns(""))

	assert.True(t, containsSuspiciousUserAgent("Mozilla/5.0 (compatible; Nikto/2.1)"))
	assert.False(t, containsSuspiciousUserAgent("Mozilla/5.0 Firefox"))
}

func TestSecurityMonitoringLogsButPasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer

	r := gin.New()
	r.Use(SecurityMonitoringMiddleware(NewLoggerWithWriter(&buf, "info")))
	r.GET("/api/v1/photos/search", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/photos/search?q=1%20UNION%20SELECT", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), "potential_sql_injection")
}

func TestPercentileResponseTime(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(95))

	for i := 10; i >= 1; i-- {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	tests := []struct {
		percentile float64
		want       time.Duration
	}{
		{0, time.Millisecond},
		{10, time.Millisecond},
		{11, 2 * time.Millisecond},
		{50, 5 * time.Millisecond},
		{95, 10 * time.Millisecond},
		{99, 10 * time.Millisecond},
		{100, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("p%.0f", tt.percentile), func(t *testing.T) {
			assert.Equal(t, tt.want, m.GetPercentileResponseTime(tt.percentile))
		})
	}
}
