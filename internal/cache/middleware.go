package cache

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/gin-gonic/gin"
)

// MiddlewareConfig selects which GET requests are cached
type MiddlewareConfig struct {
	// Prefix a request path must start with
	Prefix string
	// Exclude lists path prefixes that are never cached
	Exclude []string
}

// GenerateKey creates a consistent key from the input
func GenerateKey(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

func (mc MiddlewareConfig) cacheable(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet {
		return false
	}
	path := c.Request.URL.Path
	if !strings.HasPrefix(path, mc.Prefix) {
		return false
	}
	for _, excluded := range mc.Exclude {
		if strings.HasPrefix(path, excluded) {
			return false
		}
	}
	return true
}

// Middleware caches successful JSON responses keyed by the request URI and
// reports X-Cache: HIT or MISS
func Middleware(store Store, config MiddlewareConfig, metrics *monitoring.Metrics, logger *monitoring.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.cacheable(c) {
			c.Next()
			return
		}

		cacheKey := GenerateKey(c.Request.URL.RequestURI())

		if cachedData, found := store.Get(cacheKey); found {
			if logger != nil {
				logger.CacheLogger("get", cacheKey, true, 1)
			}
			if metrics != nil {
				metrics.IncrementCacheHit()
			}
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cachedData)
			c.Abort()
			return
		}

		if logger != nil {
			logger.CacheLogger("get", cacheKey, false, 0)
		}
		if metrics != nil {
			metrics.IncrementCacheMiss()
		}
		c.Header("X-Cache", "MISS")

		wrapper := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = wrapper
		c.Next()

		if wrapper.Status() == http.StatusOK && len(c.Errors) == 0 {
			store.Set(cacheKey, wrapper.body.Bytes())
		}
	}
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
