package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/sources"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint_Degraded(t *testing.T) {
	r := setupRouter(t)

	const service = "integration-upstream"
	health := resilience.DefaultManager()
	health.RegisterService(service, nil)
	t.Cleanup(func() { health.ResetService(service) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", nil).Code)

	for i := 0; i < 4; i++ {
		health.RecordError(service, errors.New("upstream unreachable"))
	}

	w := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "degraded", body["status"])

	services := body["services"].(map[string]interface{})
	upstream := services[service].(map[string]interface{})
	assert.Equal(t, "emergency", upstream["level"])

	health.ResetService(service)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", nil).Code)
}

func TestResilienceReset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Profiling = true
	_, r := setupApp(t, cfg)

	const service = "reset-upstream"
	health := resilience.DefaultManager()
	health.RegisterService(service, nil)
	t.Cleanup(func() { health.ResetService(service) })
	for i := 0; i < 4; i++ {
		health.RecordError(service, errors.New("upstream unreachable"))
	}

	breaker := resilience.GetCircuitBreaker(resilience.ServiceGooglePhotos, resilience.CircuitBreakerConfig{})
	for i := 0; i < 5; i++ {
		_ = breaker.Call(func() error { return errors.New("upstream unreachable") })
	}
	t.Cleanup(breaker.Reset)
	require.Equal(t, resilience.StateOpen, breaker.State())
	require.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/health", nil).Code)

	w := do(r, http.MethodPost, "/debug/resilience/reset", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]interface{}](t, w)
	assert.GreaterOrEqual(t, body["reset"], 1.0)

	assert.Equal(t, resilience.StateClosed, breaker.State())
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", nil).Code)
}

func TestResilienceReset_RequiresProfiling(t *testing.T) {
	r := setupRouter(t)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/debug/resilience/reset", nil).Code)
}

func TestLocalPrimary_FallsBackToMock(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Primary = sources.KindLocal
	writeJPEG(t, filepath.Join(cfg.PhotosDir, "abstract", "shapes.jpg"), 200, 200)

	a, r := setupApp(t, cfg)
	t.Cleanup(func() { resilience.DefaultManager().ResetService(resilience.ServiceLocalPhotos) })

	_, err := a.seed(context.Background())
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/api/v1/photos?distribute=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.PhotoResponse](t, w)
	assert.Equal(t, sources.LocalName, resp.Config.Service)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, false, resp.Config.Metadata["fallback"])

	// a closed database makes every local query fail
	require.NoError(t, a.db.Close())

	w = do(r, http.MethodGet, "/api/v1/photos?distribute=false&columns=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[types.PhotoResponse](t, w)
	assert.Equal(t, sources.MockName, resp.Config.Service)
	assert.Len(t, resp.Data, 30)
	assert.Equal(t, true, resp.Config.Metadata["fallback"])

	status := decode[map[string]interface{}](t, do(r, http.MethodGet, "/api/v1/photos/status", nil))
	assert.Equal(t, sources.MockName+" (fallback)", status["lastUsed"])

	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/photos/local/health", nil).Code)
}

func TestRedisBackedApp(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.RateLimit.PerMinute = 3
	a, r := setupApp(t, cfg)
	require.True(t, a.redis.IsEnabled())

	first := do(r, http.MethodGet, "/api/v1/photos", nil)
	second := do(r, http.MethodGet, "/api/v1/photos", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	keys := mr.Keys()
	assert.NotEmpty(t, keys)

	do(r, http.MethodGet, "/api/v1/photos/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/api/v1/photos/status", nil).Code)

	require.NoError(t, a.limiter.InvalidateIP(context.Background(), "192.0.2.1"))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/photos/status", nil).Code)

	pools := decode[map[string]interface{}](t, do(r, http.MethodGet, "/pools/redis", nil))
	assert.Equal(t, "redis", pools["pool"])
}

func TestRootCommand(t *testing.T) {
	t.Run("invalid config is reported", func(t *testing.T) {
		t.Setenv("DISTRIBUTION_COLUMNS", "12")

		cmd := newRootCmd()
		cmd.SetArgs([]string{"seed"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		assert.Error(t, cmd.Execute())
	})

	t.Run("seed prints the import result", func(t *testing.T) {
		photos := t.TempDir()
		writeJPEG(t, filepath.Join(photos, "landscape", "ridge.jpg"), 320, 200)
		t.Setenv("DATA_DIR", t.TempDir())
		t.Setenv("PHOTOS_DIR", photos)
		t.Setenv("LOG_LEVEL", "error")

		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetArgs([]string{"seed"})
		cmd.SetOut(&out)
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), `"added": 1`)
	})

	t.Run("ratelimit reset needs redis", func(t *testing.T) {
		t.Setenv("DATA_DIR", t.TempDir())
		t.Setenv("PHOTOS_DIR", t.TempDir())
		t.Setenv("REDIS_ADDR", "")
		t.Setenv("LOG_LEVEL", "error")

		cmd := newRootCmd()
		cmd.SetArgs([]string{"ratelimit", "reset", "10.0.0.1"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		assert.ErrorContains(t, cmd.Execute(), "REDIS_ADDR")
	})

	t.Run("ratelimit reset with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		t.Setenv("DATA_DIR", t.TempDir())
		t.Setenv("PHOTOS_DIR", t.TempDir())
		t.Setenv("REDIS_ADDR", mr.Addr())
		t.Setenv("LOG_LEVEL", "error")

		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetArgs([]string{"ratelimit", "reset", "10.0.0.1"})
		cmd.SetOut(&out)
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "10.0.0.1")
	})
}
