package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration. Image types
// are absent: JPEG and WebP bytes do not shrink.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"text/css",
			"text/javascript",
			"application/javascript",
			"image/svg+xml",
		},
	}
}

// CompressionMiddleware gzips compressible responses of at least MinSize bytes
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	if config.MinSize <= 0 {
		config.MinSize = DefaultCompressionConfig().MinSize
	}
	if config.ContentTypes == nil {
		config.ContentTypes = DefaultCompressionConfig().ContentTypes
	}
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	cm := &CompressionMiddleware{config: config, stats: NewCompressionStats()}
	cm.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, level)
		return gz
	}
	return cm
}

// Handler returns the gin middleware
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") ||
			c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		gzw := &gzipResponseWriter{ResponseWriter: c.Writer, cm: cm}
		c.Writer = gzw
		c.Header("Vary", "Accept-Encoding")

		c.Next()

		gzw.finish()
		c.Writer = gzw.ResponseWriter
	}
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// gzipResponseWriter buffers the first MinSize bytes to decide whether to compress
type gzipResponseWriter struct {
	gin.ResponseWriter
	cm *CompressionMiddleware

	buf      bytes.Buffer
	decided  bool
	gz       *gzip.Writer
	counter  *countingWriter
	original int64
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func (gzw *gzipResponseWriter) decide() error {
	gzw.decided = true

	h := gzw.Header()
	status := gzw.Status()
	compress := gzw.buf.Len() >= gzw.cm.config.MinSize &&
		h.Get("Content-Encoding") == "" &&
		status != http.StatusNoContent && status != http.StatusNotModified &&
		gzw.cm.shouldCompress(h.Get("Content-Type"))

	if compress {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		gzw.counter = &countingWriter{w: gzw.ResponseWriter}
		gzw.gz = gzw.cm.pool.Get().(*gzip.Writer)
		gzw.gz.Reset(gzw.counter)
		_, err := gzw.gz.Write(gzw.buf.Bytes())
		gzw.buf.Reset()
		return err
	}

	_, err := gzw.ResponseWriter.Write(gzw.buf.Bytes())
	gzw.buf.Reset()
	return err
}

func (gzw *gzipResponseWriter) Write(data []byte) (int, error) {
	gzw.original += int64(len(data))

	if gzw.decided {
		if gzw.gz != nil {
			return gzw.gz.Write(data)
		}
		return gzw.ResponseWriter.Write(data)
	}

	gzw.buf.Write(data)
	if gzw.buf.Len() >= gzw.cm.config.MinSize {
		if err := gzw.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (gzw *gzipResponseWriter) WriteString(s string) (int, error) {
	return gzw.Write([]byte(s))
}

// Written reports buffered bytes as written so gin does not write a second status
func (gzw *gzipResponseWriter) Written() bool {
	return gzw.buf.Len() > 0 || gzw.ResponseWriter.Written()
}

// Size counts buffered bytes too
func (gzw *gzipResponseWriter) Size() int {
	if !gzw.decided && gzw.buf.Len() > 0 {
		return gzw.buf.Len()
	}
	return gzw.ResponseWriter.Size()
}

// Flush decides early so streamed responses are not held back
func (gzw *gzipResponseWriter) Flush() {
	if !gzw.decided && gzw.buf.Len() > 0 {
		_ = gzw.decide()
	}
	if gzw.gz != nil {
		_ = gzw.gz.Flush()
	}
	gzw.ResponseWriter.Flush()
}

func (gzw *gzipResponseWriter) finish() {
	if !gzw.decided {
		if gzw.buf.Len() == 0 {
			gzw.cm.stats.RecordRequest(0, 0, false)
			return
		}
		_ = gzw.decide()
	}

	if gzw.gz == nil {
		gzw.cm.stats.RecordRequest(gzw.original, gzw.original, false)
		return
	}

	_ = gzw.gz.Close()
	gzw.gz.Reset(io.Discard)
	gzw.cm.pool.Put(gzw.gz)
	gzw.cm.stats.RecordRequest(gzw.original, gzw.counter.n, true)
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	if compressed {
		cs.CompressedRequests++
		cs.TotalBytes += originalSize
		cs.CompressedBytes += compressedSize
	}
}

// GetStats returns current compression statistics. The ratio covers compressed responses only.
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(0)
	if cs.TotalBytes > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
