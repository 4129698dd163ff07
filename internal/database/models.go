package database

import (
	"time"

	"github.com/google/uuid"
)

// Storage types
const (
	StorageLocal  = "local"
	StorageGoogle = "google"
)

// Album groups photos of one category
type Album struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Category      string    `json:"category" db:"category"`
	Description   string    `json:"description" db:"description"`
	GoogleAlbumID string    `json:"googleAlbumId,omitempty" db:"google_album_id"`
	PhotoCount    int       `json:"photoCount" db:"photo_count"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Photo is a stored photo row
type Photo struct {
	ID            string    `json:"id" db:"id"`
	AlbumID       string    `json:"albumId,omitempty" db:"album_id"`
	Filename      string    `json:"filename" db:"filename"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`
	Category      string    `json:"category" db:"category"`
	StorageType   string    `json:"storageType" db:"storage_type"`
	FilePath      string    `json:"-" db:"file_path"`
	ThumbnailPath string    `json:"-" db:"thumbnail_path"`
	GooglePhotoID string    `json:"googlePhotoId,omitempty" db:"google_photo_id"`
	Width         int       `json:"width" db:"width"`
	Height        int       `json:"height" db:"height"`
	FileSize      int64     `json:"fileSize" db:"file_size"`
	MimeType      string    `json:"mimeType" db:"mime_type"`
	ColorProfile  string    `json:"colorProfile,omitempty" db:"color_profile"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// PhotoFilter narrows photo listings
type PhotoFilter struct {
	Category    string
	StorageType string
	Limit       int
}

// NewAlbum creates an album with a generated ID
func NewAlbum(name, category, description string) *Album {
	now := time.Now().UTC()
	return &Album{
		ID:          uuid.New().String(),
		Name:        name,
		Category:    category,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewPhoto creates a local photo row with a generated ID
func NewPhoto(albumID, category, filename, filePath string) *Photo {
	now := time.Now().UTC()
	return &Photo{
		ID:          uuid.New().String(),
		AlbumID:     albumID,
		Filename:    filename,
		Category:    category,
		StorageType: StorageLocal,
		FilePath:    filePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
