// Package imageproxy serves photo bytes at fixed size presets for every photo source.
package imageproxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/cache"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/database"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

// CacheControl is sent with every image; the bytes of an id and size never change
const CacheControl = "public, max-age=31536000, immutable"

// Preset is a named bounding box
type Preset struct {
	Name   string
	Width  int
	Height int
}

// Suffix is the Google Photos sizing parameter for the preset
func (p Preset) Suffix() string {
	return fmt.Sprintf("=w%d-h%d", p.Width, p.Height)
}

var presets = map[string]Preset{
	"full":   {Name: "full", Width: 2048, Height: 1536},
	"large":  {Name: "large", Width: 1200, Height: 900},
	"medium": {Name: "medium", Width: 800, Height: 600},
	"small":  {Name: "small", Width: 400, Height: 300},
}

// ParsePreset returns the named preset, medium for anything unknown
func ParsePreset(size string) Preset {
	if p, ok := presets[strings.ToLower(size)]; ok {
		return p
	}
	return presets["medium"]
}

// GoogleResolver resolves the current base URL of a Google media item
type GoogleResolver interface {
	MediaItemURL(ctx context.Context, id string) (string, error)
}

// LocalLookup finds imported photos
type LocalLookup interface {
	Photo(ctx context.Context, id string) (*database.Photo, error)
}

// MockLookup finds generated photos
type MockLookup interface {
	GetByID(ctx context.Context, id string) (*types.PhotoResult, error)
}

// Backends are the sources images can come from. Unset backends are skipped.
type Backends struct {
	Google GoogleResolver
	Local  LocalLookup
	Mock   MockLookup
}

// Config tunes the proxy
type Config struct {
	PhotosDir   string
	CacheTTL    time.Duration
	MaxEntries  int
	MaxBytes    int64
	NegativeTTL time.Duration
	Timeout     time.Duration
	JPEGQuality int
}

// DefaultConfig returns the proxy defaults
func DefaultConfig() Config {
	return Config{
		PhotosDir:   "photos",
		CacheTTL:    time.Hour,
		MaxEntries:  500,
		MaxBytes:    256 << 20,
		NegativeTTL: 30 * time.Second,
		Timeout:     30 * time.Second,
		JPEGQuality: 85,
	}
}

// Image is a fetched image
type Image struct {
	Data        []byte
	ContentType string
	// Redirect is set instead of Data for sources served by a public CDN
	Redirect string
}

// Proxy fetches, resizes and caches images
type Proxy struct {
	cfg      Config
	backends Backends
	pool     *resilience.ConnectionPool
	images   *cache.Cache
	failed   *cache.Cache
	group    singleflight.Group
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
}

// New creates a proxy. pool is used for upstream fetches and may be nil when no
// Google backend is configured.
func New(cfg Config, backends Backends, pool *resilience.ConnectionPool, metrics *monitoring.Metrics, logger *monitoring.Logger) *Proxy {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = def.NegativeTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if logger == nil {
		logger = monitoring.NewLogger()
	}
	if pool == nil {
		pool = resilience.NewConnectionPool(10, 20, 90*time.Second,
			resilience.GetCircuitBreaker("image-proxy", resilience.CircuitBreakerConfig{}))
	}

	return &Proxy{
		cfg:      cfg,
		backends: backends,
		pool:     pool,
		images:   cache.NewCache(cache.Config{TTL: cfg.CacheTTL, MaxEntries: cfg.MaxEntries, MaxBytes: cfg.MaxBytes}),
		failed:   cache.NewCache(cache.Config{TTL: cfg.NegativeTTL, MaxEntries: 1000}),
		metrics:  metrics,
		logger:   logger,
	}
}

// Close stops the cache cleanup goroutines
func (p *Proxy) Close() {
	p.images.Close()
	p.failed.Close()
}

// Stats reports the byte cache
func (p *Proxy) Stats() map[string]interface{} {
	return map[string]interface{}{
		"images":   p.images.Stats(),
		"failures": p.failed.Size(),
	}
}

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

func encodeEntry(img *Image) []byte {
	return append([]byte(img.ContentType+"\x00"), img.Data...)
}

func decodeEntry(b []byte) *Image {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return &Image{Data: b, ContentType: "image/jpeg"}
	}
	return &Image{ContentType: string(b[:i]), Data: b[i+1:]}
}

// Fetch returns the image for id at preset. Concurrent identical fetches share one
// upstream request; failed fetches are remembered for NegativeTTL.
func (p *Proxy) Fetch(ctx context.Context, id string, preset Preset) (*Image, error) {
	if !validID.MatchString(id) {
		return nil, errors.NewValidationError("invalid photo id", id)
	}
	if p.metrics != nil {
		p.metrics.IncrementImageProxy()
	}

	key := id + ":" + preset.Name
	if data, ok := p.images.Get(key); ok {
		p.logger.CacheLogger("image_get", key, true, p.images.Size())
		return decodeEntry(data), nil
	}
	if msg, ok := p.failed.Get(key); ok {
		return nil, errors.NewExternalAPIError("Image upstream", fmt.Errorf("recent failure: %s", msg))
	}

	v, err, shared := p.group.Do(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
		defer cancel()

		img, err := p.resolve(fetchCtx, id, preset)
		if err != nil {
			if !errors.IsNotFound(err) {
				p.failed.Set(key, []byte(err.Error()))
			}
			return nil, err
		}
		if img.Redirect == "" {
			p.images.Set(key, encodeEntry(img))
		}
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.logger.Debug("Image fetch shared", "key", key)
	}
	return v.(*Image), nil
}

func (p *Proxy) resolve(ctx context.Context, id string, preset Preset) (*Image, error) {
	if strings.HasPrefix(id, "mock-") && p.backends.Mock != nil {
		res, err := p.backends.Mock.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if res.Data == nil {
			return nil, errors.NewNotFoundError("Photo", id)
		}
		return &Image{Redirect: res.Data.BaseURL}, nil
	}

	if p.backends.Local != nil {
		row, err := p.backends.Local.Photo(ctx, id)
		if err != nil {
			return nil, errors.NewInternalError("failed to look up photo", err)
		}
		if row != nil && row.FilePath != "" {
			return p.resizeLocal(row, preset)
		}
	}

	if p.backends.Google != nil {
		baseURL, err := p.backends.Google.MediaItemURL(ctx, id)
		if err != nil {
			return nil, err
		}
		return p.fetchRemote(ctx, baseURL+preset.Suffix())
	}

	return nil, errors.NewNotFoundError("Photo", id)
}

func (p *Proxy) resizeLocal(row *database.Photo, preset Preset) (*Image, error) {
	root, err := filepath.Abs(p.cfg.PhotosDir)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid photos directory", err)
	}
	path := filepath.Join(root, filepath.FromSlash(row.FilePath))
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return nil, errors.NewValidationError("photo path escapes the photos directory", row.FilePath)
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to decode %s", row.Filename), err)
	}

	resized := imaging.Fit(src, preset.Width, preset.Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(p.cfg.JPEGQuality)); err != nil {
		return nil, errors.NewInternalError("failed to encode image", err)
	}
	return &Image{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}

func (p *Proxy) fetchRemote(ctx context.Context, url string) (*Image, error) {
	start := time.Now()
	resp, err := resilience.HTTPExecuteWithRetry(ctx, resilience.ServiceGooglePhotos, func() (*http.Response, error) {
		return p.pool.DoRequest(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		p.logger.ExternalAPILogger("image_upstream", http.MethodGet, "image", 0, time.Since(start), false)
		return nil, errors.NewNetworkError("failed to fetch image", err)
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	p.logger.ExternalAPILogger("image_upstream", http.MethodGet, "image", resp.StatusCode, time.Since(start), ok)
	if !ok {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.NewExternalAPIError("Image upstream", fmt.Errorf("status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError("failed to read image", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &Image{Data: data, ContentType: contentType}, nil
}

// Handle serves GET /api/v1/photos/image/:photoId?size=
func (p *Proxy) Handle(c *gin.Context) {
	img, err := p.Fetch(c.Request.Context(), c.Param("photoId"), ParsePreset(c.Query("size")))
	if err != nil {
		errors.Respond(c, err)
		return
	}
	if img.Redirect != "" {
		c.Redirect(http.StatusFound, img.Redirect)
		return
	}

	c.Header("Cache-Control", CacheControl)
	c.Header("Content-Length", strconv.Itoa(len(img.Data)))
	c.Data(http.StatusOK, img.ContentType, img.Data)
}
