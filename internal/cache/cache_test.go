package cache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestCache(t *testing.T, cfg Config) (*Cache, *time.Time) {
	t.Helper()
	c := NewCache(cfg)
	t.Cleanup(c.Close)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.mu.Lock()
	c.now = func() time.Time { return now }
	c.mu.Unlock()
	return c, &now
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Minute})

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", []byte("1"))
	data, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), data)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(2), stats["misses"])
}

func TestCache_Expiry(t *testing.T) {
	c, now := newTestCache(t, Config{TTL: time.Minute})

	c.Set("a", []byte("1"))
	c.SetWithTTL("short", []byte("2"), time.Second)

	*now = now.Add(2 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, c.Stats()["active_items"])
	c.removeExpired()
	assert.Equal(t, 0, c.Size())
}

func TestCache_LRUEviction(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		keep    []string
		evicted []string
	}{
		{
			name:    "entry bound",
			cfg:     Config{TTL: time.Minute, MaxEntries: 2},
			keep:    []string{"a", "c"},
			evicted: []string{"b"},
		},
		{
			name:    "byte bound",
			cfg:     Config{TTL: time.Minute, MaxBytes: 8},
			keep:    []string{"a", "c"},
			evicted: []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCache(t, tt.cfg)
			c.Set("a", []byte("aaaa"))
			c.Set("b", []byte("bbbb"))
			_, _ = c.Get("a") // a is now most recently used
			c.Set("c", []byte("cccc"))

			for _, k := range tt.keep {
				_, ok := c.Get(k)
				assert.True(t, ok, k)
			}
			for _, k := range tt.evicted {
				_, ok := c.Get(k)
				assert.False(t, ok, k)
			}
			assert.Equal(t, int64(1), c.Stats()["evictions"])
		})
	}
}

func TestCache_OversizedItemNotStored(t *testing.T) {
	c, _ := newTestCache(t, Config{TTL: time.Minute, MaxBytes: 4})
	c.Set("big", []byte("too large"))
	assert.Equal(t, 0, c.Size())
}

func TestCache_CloseStopsCleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewCache(Config{TTL: time.Minute, CleanupInterval: time.Millisecond})
	c.Set("a", []byte("1"))
	time.Sleep(5 * time.Millisecond)
	c.Close()
	c.Close()
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "gallery:", time.Minute)

	_, ok := store.Get("k")
	assert.False(t, ok)

	store.Set("k", []byte("v"))
	data, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), data)
	assert.True(t, mr.Exists("gallery:k"))

	mr.FastForward(2 * time.Minute)
	_, ok = store.Get("k")
	assert.False(t, ok)

	store.Set("k", []byte("v"))
	store.Delete("k")
	_, ok = store.Get("k")
	assert.False(t, ok)

	mr.SetError("LOADING")
	_, ok = store.Get("k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), store.Stats()["errors"])
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := newTestCache(t, Config{TTL: time.Minute})

	calls := 0
	router := gin.New()
	router.Use(Middleware(c, MiddlewareConfig{
		Prefix:  "/api/v1/photos",
		Exclude: []string{"/api/v1/photos/image/"},
	}, monitoring.NewMetrics(), monitoring.NewLoggerWithWriter(io.Discard, "error")))
	router.GET("/api/v1/photos", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	router.GET("/api/v1/photos/image/:id", func(ctx *gin.Context) {
		calls++
		ctx.Data(http.StatusOK, "image/jpeg", []byte{0xff})
	})
	router.GET("/api/v1/photos/fail", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "upstream"})
	})

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	first := do("/api/v1/photos?category=abstract")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do("/api/v1/photos?category=abstract")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	other := do("/api/v1/photos?category=wildlife")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	do("/api/v1/photos/image/x")
	img := do("/api/v1/photos/image/x")
	assert.Empty(t, img.Header().Get("X-Cache"))
	assert.Equal(t, 4, calls)

	do("/api/v1/photos/fail")
	failed := do("/api/v1/photos/fail")
	assert.Equal(t, "MISS", failed.Header().Get("X-Cache"))
	assert.Equal(t, 6, calls)
}
