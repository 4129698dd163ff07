package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/database"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
)

const (
	LocalName = "LocalPhotosService"
	// LocalSourceTag is the "source" field of the local listing endpoints
	LocalSourceTag = "local_database"
)

// LocalPhoto is the wire format of the /local endpoints
type LocalPhoto struct {
	ID           string  `json:"id"`
	Category     string  `json:"category"`
	Filename     string  `json:"filename"`
	Description  string  `json:"description"`
	BaseURL      string  `json:"baseUrl"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	ColorProfile string  `json:"color_profile"`
	CreatedAt    *string `json:"created_at"`
}

// LocalListing is returned by the local listing and search endpoints
type LocalListing struct {
	Photos     []LocalPhoto `json:"photos"`
	TotalCount int          `json:"totalCount"`
	Categories []string     `json:"categories,omitempty"`
	Query      string       `json:"query,omitempty"`
	Source     string       `json:"source"`
}

// LocalSource serves photos imported into the SQLite database
type LocalSource struct {
	db   *database.DB
	repo *database.Repository
}

// NewLocalSource creates a source over db
func NewLocalSource(db *database.DB) *LocalSource {
	return &LocalSource{db: db, repo: database.NewRepository(db)}
}

// Repository exposes the underlying repository to the importer and the album endpoint
func (l *LocalSource) Repository() *database.Repository { return l.repo }

func (l *LocalSource) Name() string        { return LocalName }
func (l *LocalSource) ServiceName() string { return resilience.ServiceLocalPhotos }

func localDescription(row database.Photo) string {
	switch {
	case row.Description != "":
		return row.Description
	case row.Title != "":
		return row.Title
	default:
		return row.Filename
	}
}

func localDimensions(row database.Photo) (int, int) {
	w, h := row.Width, row.Height
	if w <= 0 {
		w = database.DefaultWidth
	}
	if h <= 0 {
		h = database.DefaultHeight
	}
	return w, h
}

// ToPhoto converts a stored row to the shared photo record. An unset color
// profile stays unset so the distribution engine can infer one.
func ToPhoto(row database.Photo) types.Photo {
	w, h := localDimensions(row)
	p := types.Photo{
		ID:           row.ID,
		Category:     types.Category(row.Category),
		Filename:     row.Filename,
		Description:  localDescription(row),
		BaseURL:      fmt.Sprintf("/photos/%s/%s", row.Category, row.Filename),
		Width:        w,
		Height:       h,
		ColorProfile: types.ColorProfile(row.ColorProfile),
	}
	if !row.CreatedAt.IsZero() {
		p.CreationTime = row.CreatedAt.UTC().Format(time.RFC3339)
	}
	setProxyURLs(&p)
	return p
}

// ToLocalPhoto converts a stored row to the /local wire format
func ToLocalPhoto(row database.Photo) LocalPhoto {
	w, h := localDimensions(row)
	lp := LocalPhoto{
		ID:           row.ID,
		Category:     row.Category,
		Filename:     row.Filename,
		Description:  localDescription(row),
		BaseURL:      fmt.Sprintf("/photos/%s/%s", row.Category, row.Filename),
		Width:        w,
		Height:       h,
		ColorProfile: row.ColorProfile,
	}
	if lp.ColorProfile == "" {
		lp.ColorProfile = string(types.ColorNeutral)
	}
	if !row.CreatedAt.IsZero() {
		s := row.CreatedAt.UTC().Format(time.RFC3339)
		lp.CreatedAt = &s
	}
	return lp
}

func toPhotos(rows []database.Photo) []types.Photo {
	out := make([]types.Photo, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToPhoto(row))
	}
	return out
}

func toLocalPhotos(rows []database.Photo) []LocalPhoto {
	out := make([]LocalPhoto, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToLocalPhoto(row))
	}
	return out
}

func (l *LocalSource) record(err error) error {
	if err != nil {
		resilience.RecordError(resilience.ServiceLocalPhotos, err)
		return err
	}
	resilience.RecordRequest(resilience.ServiceLocalPhotos, true)
	return nil
}

// List returns up to limit photos, optionally of one category, in the /local format
func (l *LocalSource) List(ctx context.Context, category string, limit int) (*LocalListing, error) {
	filter := database.PhotoFilter{Category: category, Limit: limit}

	rows, err := l.repo.ListPhotos(ctx, filter)
	if err != nil {
		return nil, l.record(err)
	}
	total, err := l.repo.CountPhotos(ctx, filter)
	if err != nil {
		return nil, l.record(err)
	}
	categories, err := l.repo.Categories(ctx)
	if err != nil {
		return nil, l.record(err)
	}
	l.record(nil)

	return &LocalListing{
		Photos:     toLocalPhotos(rows),
		TotalCount: total,
		Categories: categories,
		Source:     LocalSourceTag,
	}, nil
}

// SearchListing searches in the /local format
func (l *LocalSource) SearchListing(ctx context.Context, query string, limit int) (*LocalListing, error) {
	rows, total, err := l.repo.SearchPhotos(ctx, query, limit)
	if err != nil {
		return nil, l.record(err)
	}
	l.record(nil)

	return &LocalListing{
		Photos:     toLocalPhotos(rows),
		TotalCount: total,
		Query:      query,
		Source:     LocalSourceTag,
	}, nil
}

// Photo returns one stored row, or nil when absent
func (l *LocalSource) Photo(ctx context.Context, id string) (*database.Photo, error) {
	row, err := l.repo.GetPhoto(ctx, id)
	return row, l.record(err)
}

// Count returns the number of local photos
func (l *LocalSource) Count(ctx context.Context) (int, error) {
	n, err := l.repo.CountPhotos(ctx, database.PhotoFilter{})
	return n, l.record(err)
}

func (l *LocalSource) GetAll(ctx context.Context) (*types.PhotoResponse, error) {
	rows, err := l.repo.ListPhotos(ctx, database.PhotoFilter{})
	if err != nil {
		return nil, l.record(err)
	}
	l.record(nil)

	photos := toPhotos(rows)
	return newResponse(LocalName, photos, map[string]interface{}{
		"categories": categoriesOf(photos),
		"source":     LocalSourceTag,
	}), nil
}

func (l *LocalSource) GetByCategory(ctx context.Context, category string) (*types.PhotoResponse, error) {
	rows, err := l.repo.ListPhotos(ctx, database.PhotoFilter{Category: category})
	if err != nil {
		return nil, l.record(err)
	}
	l.record(nil)

	return newResponse(LocalName, toPhotos(rows), map[string]interface{}{
		"category": category,
		"count":    len(rows),
	}), nil
}

func (l *LocalSource) GetByID(ctx context.Context, id string) (*types.PhotoResult, error) {
	row, err := l.Photo(ctx, id)
	if err != nil {
		return nil, err
	}
	var found *types.Photo
	if row != nil {
		p := ToPhoto(*row)
		found = &p
	}
	return newResult(LocalName, found, map[string]interface{}{
		"found":      found != nil,
		"searchedId": id,
	}), nil
}

func (l *LocalSource) Search(ctx context.Context, query string) (*types.PhotoResponse, error) {
	rows, total, err := l.repo.SearchPhotos(ctx, query, database.DefaultSearchLimit)
	if err != nil {
		return nil, l.record(err)
	}
	l.record(nil)

	return newResponse(LocalName, toPhotos(rows), map[string]interface{}{
		"query":        query,
		"resultsCount": total,
	}), nil
}

// HealthCheck pings the database
func (l *LocalSource) HealthCheck(ctx context.Context) error {
	return l.db.HealthCheck(ctx)
}

func (l *LocalSource) IsAvailable(ctx context.Context) bool {
	return l.HealthCheck(ctx) == nil
}

func (l *LocalSource) Config(ctx context.Context) types.SourceConfig {
	metadata := map[string]interface{}{
		"features": []string{"getAllPhotos", "getPhotosByCategory", "getPhotoById", "searchPhotos"},
		"pool":     l.db.GetPoolStats(),
	}
	if n, err := l.repo.CountPhotos(ctx, database.PhotoFilter{}); err == nil {
		metadata["totalPhotos"] = n
	}
	if categories, err := l.repo.Categories(ctx); err == nil {
		metadata["categories"] = categories
	}

	return types.SourceConfig{
		Name:        LocalName,
		Version:     Version,
		IsAvailable: l.IsAvailable(ctx),
		Metadata:    metadata,
	}
}
