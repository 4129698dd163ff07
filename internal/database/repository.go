package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultListLimit   = 200
	DefaultSearchLimit = 50
)

// Repository handles photo and album queries
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var p Photo
	err := row.Scan(
		&p.ID, &p.AlbumID, &p.Filename, &p.Title, &p.Description, &p.Category, &p.StorageType,
		&p.FilePath, &p.ThumbnailPath, &p.GooglePhotoID, &p.Width, &p.Height, &p.FileSize,
		&p.MimeType, &p.ColorProfile, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func storageOrDefault(storageType string) string {
	if storageType == "" {
		return StorageLocal
	}
	return storageType
}

// ListPhotos returns photos of one storage type, newest first
func (r *Repository) ListPhotos(ctx context.Context, filter PhotoFilter) ([]Photo, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + photoColumns + ` FROM photos WHERE storage_type = ?`
	args := []any{storageOrDefault(filter.StorageType)}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY created_at DESC, filename ASC LIMIT ?`
	args = append(args, limit)

	return r.queryPhotos(ctx, query, args...)
}

// CountPhotos counts photos of one storage type, optionally in one category
func (r *Repository) CountPhotos(ctx context.Context, filter PhotoFilter) (int, error) {
	var count int
	var err error
	if filter.Category == "" {
		stmt, stmtErr := r.db.GetPreparedStatement("count_photos")
		if stmtErr != nil {
			return 0, stmtErr
		}
		err = stmt.QueryRowContext(ctx, storageOrDefault(filter.StorageType)).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM photos WHERE storage_type = ? AND category = ?`,
			storageOrDefault(filter.StorageType), filter.Category).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return count, nil
}

func searchClause(q string) (string, []any) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	clause := ` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'
		OR LOWER(filename) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`
	return clause, []any{pattern, pattern, pattern, pattern}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// SearchPhotos matches q case-insensitively against title, description, filename and
// category. It returns at most limit photos and the total number of matches.
func (r *Repository) SearchPhotos(ctx context.Context, q string, limit int) ([]Photo, int, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	clause, args := searchClause(q)
	base := ` FROM photos WHERE storage_type = ?` + clause
	args = append([]any{StorageLocal}, args...)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	photos, err := r.queryPhotos(ctx,
		`SELECT `+photoColumns+base+` ORDER BY created_at DESC, filename ASC LIMIT ?`,
		append(args, limit)...)
	if err != nil {
		return nil, 0, err
	}
	return photos, total, nil
}

// GetPhoto returns a local photo by id, or nil when it does not exist
func (r *Repository) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	stmt, err := r.db.GetPreparedStatement("get_photo")
	if err != nil {
		return nil, err
	}

	photo, err := scanPhoto(stmt.QueryRowContext(ctx, id, StorageLocal))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return photo, nil
}

// Categories returns the distinct categories of local photos
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM photos WHERE storage_type = ? ORDER BY category`, StorageLocal)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// PhotoExists reports whether a photo with this file path was already imported
func (r *Repository) PhotoExists(ctx context.Context, filePath string) (bool, error) {
	stmt, err := r.db.GetPreparedStatement("photo_exists")
	if err != nil {
		return false, err
	}
	var n int
	if err := stmt.QueryRowContext(ctx, filePath).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check photo: %w", err)
	}
	return n > 0, nil
}

// InsertPhoto stores a photo. It reports false when a photo with the same file path exists.
func (r *Repository) InsertPhoto(ctx context.Context, p *Photo) (bool, error) {
	stmt, err := r.db.GetPreparedStatement("insert_photo")
	if err != nil {
		return false, err
	}

	res, err := stmt.ExecContext(ctx,
		p.ID, p.AlbumID, p.Filename, p.Title, p.Description, p.Category, storageOrDefault(p.StorageType),
		p.FilePath, p.ThumbnailPath, p.GooglePhotoID, p.Width, p.Height, p.FileSize, p.MimeType,
		p.ColorProfile, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert photo: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert photo: %w", err)
	}
	return n > 0, nil
}

// GetOrCreateAlbum returns the album with this name, creating it when missing
func (r *Repository) GetOrCreateAlbum(ctx context.Context, name, category, description string) (*Album, error) {
	stmt, err := r.db.GetPreparedStatement("get_album_by_name")
	if err != nil {
		return nil, err
	}

	var a Album
	err = stmt.QueryRowContext(ctx, name).Scan(
		&a.ID, &a.Name, &a.Category, &a.Description, &a.GoogleAlbumID, &a.PhotoCount, &a.CreatedAt, &a.UpdatedAt)
	if err == nil {
		return &a, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query album: %w", err)
	}

	album := NewAlbum(name, category, description)
	if err := r.CreateAlbum(ctx, album); err != nil {
		return nil, err
	}
	return album, nil
}

// CreateAlbum stores a new album
func (r *Repository) CreateAlbum(ctx context.Context, a *Album) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO albums (id, name, category, description, google_album_id, photo_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.Category, a.Description, a.GoogleAlbumID, a.PhotoCount, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create album: %w", err)
	}
	return nil
}

// ListAlbums returns all albums ordered by name
func (r *Repository) ListAlbums(ctx context.Context) ([]Album, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category, description, google_album_id, photo_count, created_at, updated_at
		FROM albums ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	defer rows.Close()

	albums := make([]Album, 0)
	for rows.Next() {
		var a Album
		if err := rows.Scan(&a.ID, &a.Name, &a.Category, &a.Description, &a.GoogleAlbumID,
			&a.PhotoCount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// RefreshAlbumCounts recomputes photo_count for every album
func (r *Repository) RefreshAlbumCounts(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE albums SET
			photo_count = (SELECT COUNT(*) FROM photos WHERE photos.album_id = albums.id),
			updated_at = ?
	`, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to refresh album counts: %w", err)
	}
	return nil
}

func (r *Repository) queryPhotos(ctx context.Context, query string, args ...any) ([]Photo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	photos := make([]Photo, 0)
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}
	return photos, nil
}
