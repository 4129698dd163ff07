// Package sources provides the photo sources behind the gallery API: mock data, the
// Google Photos Library API and the local SQLite database, plus a fallback chain.
package sources

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
)

const (
	// Version is reported in every response envelope
	Version = "1.0.0"
	// ImageRoute serves resized photo bytes for every source
	ImageRoute = "/api/v1/photos/image/"
)

// PhotoSource is implemented by every backend that can list photos
type PhotoSource interface {
	// Name is the display name reported in response envelopes
	Name() string
	// ServiceName is the key the source is tracked under by the resilience package
	ServiceName() string

	GetAll(ctx context.Context) (*types.PhotoResponse, error)
	GetByCategory(ctx context.Context, category string) (*types.PhotoResponse, error)
	// GetByID returns a result with nil Data and no error when the photo does not exist
	GetByID(ctx context.Context, id string) (*types.PhotoResult, error)
	Search(ctx context.Context, query string) (*types.PhotoResponse, error)

	IsAvailable(ctx context.Context) bool
	Config(ctx context.Context) types.SourceConfig
}

func baseMetadata(extra map[string]interface{}) map[string]interface{} {
	metadata := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	}
	for k, v := range extra {
		metadata[k] = v
	}
	return metadata
}

func newResponse(service string, photos []types.Photo, extra map[string]interface{}) *types.PhotoResponse {
	if photos == nil {
		photos = []types.Photo{}
	}
	return &types.PhotoResponse{
		Data: photos,
		Config: types.ResponseConfig{
			Service:    service,
			TotalCount: len(photos),
			Metadata:   baseMetadata(extra),
		},
	}
}

func newResult(service string, photo *types.Photo, extra map[string]interface{}) *types.PhotoResult {
	total := 0
	if photo != nil {
		total = 1
	}
	return &types.PhotoResult{
		Data: photo,
		Config: types.ResponseConfig{
			Service:    service,
			TotalCount: total,
			Metadata:   baseMetadata(extra),
		},
	}
}

// MatchesQuery reports whether description, category or filename contains query,
// ignoring case
func MatchesQuery(p types.Photo, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(string(p.Category)), q) ||
		strings.Contains(strings.ToLower(p.Filename), q)
}

func filterPhotos(photos []types.Photo, keep func(types.Photo) bool) []types.Photo {
	out := make([]types.Photo, 0, len(photos))
	for _, p := range photos {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func categoriesOf(photos []types.Photo) []string {
	seen := make(map[types.Category]bool)
	out := make([]string, 0)
	for _, p := range photos {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, string(p.Category))
		}
	}
	return out
}

// sortNewestFirst orders by creation time descending, then id
func sortNewestFirst(photos []types.Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		ti, tj := photos[i].Created(), photos[j].Created()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return photos[i].ID < photos[j].ID
	})
}

// setProxyURLs points the display URLs at the image proxy
func setProxyURLs(p *types.Photo) {
	base := ImageRoute + url.PathEscape(p.ID)
	p.URL = base + "?size=medium"
	p.ThumbnailURL = base + "?size=small"
	p.LargeURL = base + "?size=large"
}
