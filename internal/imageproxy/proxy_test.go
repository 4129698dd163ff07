package imageproxy

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/database"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/sources"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	resilience.RegisterServicePolicy(resilience.ServiceGooglePhotos, resilience.RetryPolicy{
		Name: "test",
		Config: resilience.RetryConfig{
			MaxAttempts:   2,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
	})
}

type stubLocal map[string]*database.Photo

func (s stubLocal) Photo(ctx context.Context, id string) (*database.Photo, error) {
	return s[id], nil
}

type stubGoogle struct{ base string }

func (s stubGoogle) MediaItemURL(ctx context.Context, id string) (string, error) {
	return s.base + "/" + id, nil
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 200, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestProxy(t *testing.T, cfg Config, backends Backends) *Proxy {
	t.Helper()
	pool := resilience.NewConnectionPool(4, 8, time.Minute, resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{}))
	p := New(cfg, backends, pool, monitoring.NewMetrics(), monitoring.NewLoggerWithWriter(io.Discard, "error"))
	t.Cleanup(p.Close)
	return p
}

func TestParsePreset(t *testing.T) {
	tests := []struct {
		size   string
		want   string
		suffix string
	}{
		{"full", "full", "=w2048-h1536"},
		{"large", "large", "=w1200-h900"},
		{"MEDIUM", "medium", "=w800-h600"},
		{"small", "small", "=w400-h300"},
		{"", "medium", "=w800-h600"},
		{"huge", "medium", "=w800-h600"},
	}

	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			p := ParsePreset(tt.size)
			assert.Equal(t, tt.want, p.Name)
			assert.Equal(t, tt.suffix, p.Suffix())
		})
	}
}

func TestFetch_LocalResize(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "landscape", "wide.png"), 1000, 500)
	writePNG(t, filepath.Join(dir, "abstract", "tiny.png"), 100, 50)

	p := newTestProxy(t, Config{PhotosDir: dir}, Backends{Local: stubLocal{
		"wide":   {ID: "wide", Filename: "wide.png", FilePath: "landscape/wide.png"},
		"tiny":   {ID: "tiny", Filename: "tiny.png", FilePath: "abstract/tiny.png"},
		"escape": {ID: "escape", Filename: "x.png", FilePath: "../x.png"},
	}})

	tests := []struct {
		id     string
		size   string
		width  int
		height int
	}{
		{"wide", "small", 400, 200},
		{"wide", "medium", 800, 400},
		{"wide", "full", 1000, 500},
		{"tiny", "large", 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.id+"/"+tt.size, func(t *testing.T) {
			img, err := p.Fetch(context.Background(), tt.id, ParsePreset(tt.size))
			require.NoError(t, err)
			assert.Equal(t, "image/jpeg", img.ContentType)

			cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, tt.width, cfg.Width)
			assert.Equal(t, tt.height, cfg.Height)
		})
	}

	t.Run("served from cache after the file is gone", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "landscape", "wide.png")))
		_, err := p.Fetch(context.Background(), "wide", ParsePreset("small"))
		assert.NoError(t, err)
	})

	t.Run("path outside the photos directory", func(t *testing.T) {
		_, err := p.Fetch(context.Background(), "escape", ParsePreset("small"))
		assert.Error(t, err)
	})
}

func TestFetch_GoogleSharedAndNegativeCache(t *testing.T) {
	var hits atomic.Int32
	var paths sync.Map
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		paths.Store(r.URL.Path, true)
		if r.URL.Path == "/broken=w800-h600" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("webp-bytes"))
	}))
	defer upstream.Close()

	p := newTestProxy(t, Config{}, Backends{Google: stubGoogle{base: upstream.URL}})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := p.Fetch(context.Background(), "g1", ParsePreset("medium"))
			if assert.NoError(t, err) {
				assert.Equal(t, "image/webp", img.ContentType)
				assert.Equal(t, []byte("webp-bytes"), img.Data)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())
	_, ok := paths.Load("/g1=w800-h600")
	assert.True(t, ok)

	// a 5xx is retried once, then the failure is remembered
	_, err := p.Fetch(context.Background(), "broken", ParsePreset("medium"))
	require.Error(t, err)
	_, err = p.Fetch(context.Background(), "broken", ParsePreset("medium"))
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetch_GoogleRetriesTransientFailure(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer upstream.Close()

	p := newTestProxy(t, Config{}, Backends{Google: stubGoogle{base: upstream.URL}})

	img, err := p.Fetch(context.Background(), "flaky", ParsePreset("small"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), img.Data)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_NotFoundAndInvalid(t *testing.T) {
	p := newTestProxy(t, Config{}, Backends{Local: stubLocal{}})

	_, err := p.Fetch(context.Background(), "missing", ParsePreset("small"))
	require.Error(t, err)

	_, err = p.Fetch(context.Background(), "../etc/passwd", ParsePreset("small"))
	require.Error(t, err)
}

func TestHandle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "portraits", "face.png"), 300, 600)

	mock := sources.NewMockSource(1)
	all, err := mock.GetAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, all.Data)
	mockPhoto := all.Data[0]

	p := newTestProxy(t, Config{PhotosDir: dir}, Backends{
		Mock:  mock,
		Local: stubLocal{"face": {ID: "face", Filename: "face.png", FilePath: "portraits/face.png"}},
	})

	router := gin.New()
	router.GET("/api/v1/photos/image/:photoId", p.Handle)

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	t.Run("local bytes", func(t *testing.T) {
		w := do("/api/v1/photos/image/face?size=small")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
		assert.Equal(t, CacheControl, w.Header().Get("Cache-Control"))
		assert.NotEmpty(t, w.Header().Get("Content-Length"))

		cfg, _, err := image.DecodeConfig(w.Body)
		require.NoError(t, err)
		assert.Equal(t, 150, cfg.Width)
		assert.Equal(t, 300, cfg.Height)
	})

	t.Run("mock redirect", func(t *testing.T) {
		w := do("/api/v1/photos/image/" + mockPhoto.ID)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, mockPhoto.BaseURL, w.Header().Get("Location"))
	})

	t.Run("not found", func(t *testing.T) {
		w := do("/api/v1/photos/image/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown mock id", func(t *testing.T) {
		w := do("/api/v1/photos/image/mock-nothing-9")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
