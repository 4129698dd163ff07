package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/oauth"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
	"golang.org/x/sync/errgroup"
)

const (
	GoogleName       = "GooglePhotosService"
	DefaultGoogleAPI = "https://photoslibrary.googleapis.com"

	googlePageSize = 100
	googleMaxPages = 20
)

// GoogleConfig configures the Google Photos source
type GoogleConfig struct {
	OAuth    oauth.Config
	AlbumIDs map[types.Category]string
	APIBase  string
}

// GoogleSource lists photos from one Google Photos album per category
type GoogleSource struct {
	cfg      GoogleConfig
	tokens   *oauth.TokenCache
	tokenErr error
	pool     *resilience.ConnectionPool
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
}

// NewGoogleSource creates the source. Missing credentials do not fail construction;
// the source then reports itself unavailable and every call returns a configuration error.
func NewGoogleSource(cfg GoogleConfig, pool *resilience.ConnectionPool, metrics *monitoring.Metrics, logger *monitoring.Logger) *GoogleSource {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultGoogleAPI
	}
	if pool == nil {
		cb := resilience.GetCircuitBreaker(resilience.ServiceGooglePhotos, resilience.CircuitBreakerConfig{})
		pool = resilience.NewConnectionPool(10, 20, 90*time.Second, cb)
	}
	if logger == nil {
		logger = monitoring.NewLogger()
	}

	g := &GoogleSource{cfg: cfg, pool: pool, metrics: metrics, logger: logger}
	g.tokens, g.tokenErr = oauth.NewTokenCache(cfg.OAuth, pool.HTTPClient())
	return g
}

func (g *GoogleSource) Name() string        { return GoogleName }
func (g *GoogleSource) ServiceName() string { return resilience.ServiceGooglePhotos }

type flexInt int

// UnmarshalJSON accepts both 4032 and "4032"; the Library API sends int64 fields as strings
func (f *flexInt) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type mediaItem struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	BaseURL       string `json:"baseUrl"`
	Filename      string `json:"filename"`
	MimeType      string `json:"mimeType"`
	MediaMetadata struct {
		CreationTime string  `json:"creationTime"`
		Width        flexInt `json:"width"`
		Height       flexInt `json:"height"`
	} `json:"mediaMetadata"`
}

type searchRequest struct {
	AlbumID   string `json:"albumId"`
	PageSize  int    `json:"pageSize"`
	PageToken string `json:"pageToken,omitempty"`
}

type searchResponse struct {
	MediaItems    []mediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// call performs one authorized API request with retry, returning the response body
func (g *GoogleSource) call(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	if g.tokenErr != nil {
		return nil, g.tokenErr
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, errors.NewInternalError("failed to encode Google Photos request", err)
		}
	}

	var out []byte
	err := resilience.ExecuteWithRetry(ctx, resilience.ServiceGooglePhotos, func() error {
		token, err := g.tokens.Token(ctx)
		if err != nil {
			return err
		}

		start := time.Now()
		resp, err := g.pool.Do(ctx, method, g.cfg.APIBase+path, map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		}, payload)
		if err != nil {
			g.logger.ExternalAPILogger("google_photos", method, path, 0, time.Since(start), false)
			if ctx.Err() != nil {
				return errors.NewTimeoutError("Google Photos request cancelled", err)
			}
			return errors.NewNetworkError("Google Photos request failed", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		ok := resp.StatusCode >= 200 && resp.StatusCode < 300
		g.logger.ExternalAPILogger("google_photos", method, path, resp.StatusCode, time.Since(start), ok)
		if err != nil {
			return errors.NewNetworkError("failed to read Google Photos response", err)
		}
		if !ok {
			return g.statusError(resp.StatusCode, data)
		}

		out = data
		return nil
	})

	if g.metrics != nil {
		g.metrics.RecordExternalAPIRequest("google_photos", err == nil)
	}
	if err != nil {
		resilience.RecordError(resilience.ServiceGooglePhotos, err)
		return nil, err
	}
	resilience.RecordRequest(resilience.ServiceGooglePhotos, true)
	return out, nil
}

func (g *GoogleSource) statusError(status int, body []byte) error {
	if len(body) > 200 {
		body = body[:200]
	}
	cause := fmt.Errorf("Google Photos API error: %d - %s", status, body)

	switch {
	case status == http.StatusUnauthorized:
		g.tokens.Invalidate()
		return errors.NewExternalAPIError("Google Photos", cause)
	case status == http.StatusTooManyRequests:
		return errors.NewRateLimitError("60")
	case status == http.StatusNotFound:
		return errors.NewNotFoundError("Google Photos resource", "")
	case status < 500:
		return errors.NewConfigurationError(cause.Error(), cause)
	default:
		return errors.NewExternalAPIError("Google Photos", cause)
	}
}

func (g *GoogleSource) albumItems(ctx context.Context, albumID string) ([]mediaItem, error) {
	items := make([]mediaItem, 0)
	req := searchRequest{AlbumID: albumID, PageSize: googlePageSize}

	for page := 0; page < googleMaxPages; page++ {
		data, err := g.call(ctx, http.MethodPost, "/v1/mediaItems:search", req)
		if err != nil {
			return nil, err
		}
		var resp searchResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, errors.NewExternalAPIError("Google Photos", fmt.Errorf("invalid search response: %w", err))
		}
		items = append(items, resp.MediaItems...)
		if resp.NextPageToken == "" {
			break
		}
		req.PageToken = resp.NextPageToken
	}

	g.logger.Debug("Album items fetched", "album_id", albumID, "count", len(items))
	return items, nil
}

func toPhoto(item mediaItem, category types.Category) types.Photo {
	p := types.Photo{
		ID:           item.ID,
		Category:     category,
		Filename:     item.Filename,
		Description:  item.Description,
		BaseURL:      item.BaseURL,
		Width:        int(item.MediaMetadata.Width),
		Height:       int(item.MediaMetadata.Height),
		CreationTime: item.MediaMetadata.CreationTime,
	}
	if p.Description == "" {
		p.Description = fmt.Sprintf("%s photo", category)
	}
	if p.Width <= 0 {
		p.Width = 800
	}
	if p.Height <= 0 {
		p.Height = 600
	}
	if p.CreationTime == "" {
		p.CreationTime = time.Now().UTC().Format(time.RFC3339)
	}
	setProxyURLs(&p)
	return p
}

func (g *GoogleSource) configuredAlbums() []types.Category {
	out := make([]types.Category, 0, len(g.cfg.AlbumIDs))
	for _, c := range types.Categories {
		if g.cfg.AlbumIDs[c] != "" {
			out = append(out, c)
		}
	}
	return out
}

// GetAll fetches every configured album concurrently. An album that fails is reported
// in metadata.errors; the call fails only when every album failed.
func (g *GoogleSource) GetAll(ctx context.Context) (*types.PhotoResponse, error) {
	if g.tokenErr != nil {
		return nil, g.tokenErr
	}
	albums := g.configuredAlbums()
	if len(albums) == 0 {
		return nil, errors.NewConfigurationError("no Google Photos album IDs configured", nil)
	}

	results := make([][]types.Photo, len(albums))
	var (
		mu       sync.Mutex
		failures []string
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(3)
	for i, category := range albums {
		eg.Go(func() error {
			items, err := g.albumItems(egCtx, g.cfg.AlbumIDs[category])
			if err != nil {
				g.logger.Warn("Failed to fetch album", "category", category, "error", err)
				mu.Lock()
				failures = append(failures, fmt.Sprintf("Failed to fetch %s: %v", category, err))
				mu.Unlock()
				return nil
			}
			photos := make([]types.Photo, 0, len(items))
			for _, item := range items {
				photos = append(photos, toPhoto(item, category))
			}
			results[i] = photos
			return nil
		})
	}
	_ = eg.Wait()

	if len(failures) == len(albums) {
		return nil, errors.NewExternalAPIError("Google Photos", fmt.Errorf("all %d albums failed: %v", len(albums), failures))
	}

	all := make([]types.Photo, 0)
	for _, photos := range results {
		all = append(all, photos...)
	}
	sortNewestFirst(all)

	extra := map[string]interface{}{
		"categories": categoriesOf(all),
		"source":     "Google Photos API",
	}
	if len(failures) > 0 {
		extra["errors"] = failures
	}
	return newResponse(GoogleName, all, extra), nil
}

func (g *GoogleSource) GetByCategory(ctx context.Context, category string) (*types.PhotoResponse, error) {
	albumID := g.cfg.AlbumIDs[types.Category(category)]
	if albumID == "" {
		return nil, errors.NewConfigurationError(fmt.Sprintf("No album ID configured for category: %s", category), nil)
	}

	items, err := g.albumItems(ctx, albumID)
	if err != nil {
		return nil, err
	}
	photos := make([]types.Photo, 0, len(items))
	for _, item := range items {
		photos = append(photos, toPhoto(item, types.Category(category)))
	}
	sortNewestFirst(photos)

	return newResponse(GoogleName, photos, map[string]interface{}{
		"category": category,
		"albumId":  albumID,
		"count":    len(photos),
	}), nil
}

// GetByID scans every album; the Library API has no album-scoped lookup
func (g *GoogleSource) GetByID(ctx context.Context, id string) (*types.PhotoResult, error) {
	all, err := g.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var found *types.Photo
	for i := range all.Data {
		if all.Data[i].ID == id {
			found = &all.Data[i]
			break
		}
	}
	return newResult(GoogleName, found, map[string]interface{}{
		"found":      found != nil,
		"searchedId": id,
	}), nil
}

func (g *GoogleSource) Search(ctx context.Context, query string) (*types.PhotoResponse, error) {
	all, err := g.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	results := filterPhotos(all.Data, func(p types.Photo) bool { return MatchesQuery(p, query) })
	return newResponse(GoogleName, results, map[string]interface{}{
		"searchQuery":  query,
		"searchMethod": "client-side-filter",
	}), nil
}

// MediaItemURL resolves the current base URL of a media item. Base URLs expire,
// so the image proxy resolves them on demand.
func (g *GoogleSource) MediaItemURL(ctx context.Context, id string) (string, error) {
	data, err := g.call(ctx, http.MethodGet, "/v1/mediaItems/"+id, nil)
	if err != nil {
		return "", err
	}
	var item mediaItem
	if err := json.Unmarshal(data, &item); err != nil {
		return "", errors.NewExternalAPIError("Google Photos", fmt.Errorf("invalid media item: %w", err))
	}
	if item.BaseURL == "" {
		return "", errors.NewNotFoundError("Photo", id)
	}
	return item.BaseURL, nil
}

// IsAvailable checks credentials, token exchange and a plain albums listing
func (g *GoogleSource) IsAvailable(ctx context.Context) bool {
	if g.tokenErr != nil {
		return false
	}
	token, err := g.tokens.Token(ctx)
	if err != nil {
		g.logger.Warn("Google Photos not available", "error", err)
		return false
	}

	resp, err := g.pool.DoRequest(ctx, http.MethodGet, g.cfg.APIBase+"/v1/albums", map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		g.logger.Warn("Google Photos not available", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// HealthCheck is registered with the degradation manager
func (g *GoogleSource) HealthCheck(ctx context.Context) error {
	if !g.IsAvailable(ctx) {
		return errors.NewExternalAPIError("Google Photos", fmt.Errorf("health check failed"))
	}
	return nil
}

func (g *GoogleSource) Config(ctx context.Context) types.SourceConfig {
	albums := make([]string, 0)
	for _, c := range g.configuredAlbums() {
		albums = append(albums, string(c))
	}
	return types.SourceConfig{
		Name:        GoogleName,
		Version:     Version,
		IsAvailable: g.IsAvailable(ctx),
		Metadata: map[string]interface{}{
			"configuredAlbums": albums,
			"hasCredentials":   g.tokenErr == nil,
			"tokenCached":      g.tokenErr == nil && g.tokens.Cached(),
			"features":         []string{"getAllPhotos", "getPhotosByCategory", "getPhotoById", "searchPhotos"},
			"pool":             g.pool.GetStats(),
		},
	}
}
