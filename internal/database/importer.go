package database

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Dimensions recorded when a file cannot be decoded
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".cr2":  "image/x-canon-cr2",
}

// IsPhotoFile reports whether name has an importable extension
func IsPhotoFile(name string) bool {
	_, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ImportResult summarizes one import run
type ImportResult struct {
	Added   int            `json:"added"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
	Albums  map[string]int `json:"albums"`
}

// Importer loads {photosDir}/{category}/* into the photos table
type Importer struct {
	repo      *Repository
	photosDir string
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewImporter creates an importer for photosDir
func NewImporter(repo *Repository, photosDir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{repo: repo, photosDir: photosDir, logger: logger}
}

// PhotosDir returns the directory the importer scans
func (im *Importer) PhotosDir() string {
	return im.photosDir
}

// Import adds every photo file not yet in the database. Runs are serialized.
func (im *Importer) Import(ctx context.Context) (*ImportResult, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	if _, err := os.Stat(im.photosDir); err != nil {
		return nil, fmt.Errorf("photos directory not available: %w", err)
	}

	result := &ImportResult{Albums: make(map[string]int)}

	for _, category := range types.Categories {
		dir := filepath.Join(im.photosDir, string(category))
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			im.logger.Warn("Category directory not found", "dir", dir)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to read %s: %w", dir, err)
		}

		title := cases.Title(language.English).String(string(category))
		album, err := im.repo.GetOrCreateAlbum(ctx,
			title+" Collection",
			string(category),
			fmt.Sprintf("Collection of %s photographs", category))
		if err != nil {
			return result, err
		}

		for _, entry := range entries {
			if entry.IsDir() || !IsPhotoFile(entry.Name()) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}

			added, err := im.importFile(ctx, album, category, entry)
			switch {
			case err != nil:
				result.Failed++
				im.logger.Error("Failed to import photo", "file", entry.Name(), "error", err)
			case added:
				result.Added++
				result.Albums[album.Name]++
			default:
				result.Skipped++
			}
		}
	}

	if err := im.repo.RefreshAlbumCounts(ctx); err != nil {
		return result, err
	}

	im.logger.Info("Photo import finished",
		"added", result.Added,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}

func (im *Importer) importFile(ctx context.Context, album *Album, category types.Category, entry os.DirEntry) (bool, error) {
	relPath := filepath.ToSlash(filepath.Join(string(category), entry.Name()))

	exists, err := im.repo.PhotoExists(ctx, relPath)
	if err != nil || exists {
		return false, err
	}

	info, err := entry.Info()
	if err != nil {
		return false, err
	}

	fullPath := filepath.Join(im.photosDir, string(category), entry.Name())
	width, height := ReadDimensions(fullPath)
	ext := strings.ToLower(filepath.Ext(entry.Name()))
	categoryTitle := cases.Title(language.English).String(string(category))

	photo := NewPhoto(album.ID, string(category), entry.Name(), relPath)
	photo.Title = TitleFromFilename(entry.Name())
	photo.Description = categoryTitle + " photograph"
	photo.Width = width
	photo.Height = height
	photo.FileSize = info.Size()
	photo.MimeType = mimeTypes[ext]

	return im.repo.InsertPhoto(ctx, photo)
}

// TitleFromFilename turns "golden_gate-bridge.jpg" into "Golden Gate Bridge"
func TitleFromFilename(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return cases.Title(language.English).String(stem)
}

// ReadDimensions decodes the image header, falling back to 800x600
func ReadDimensions(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return DefaultWidth, DefaultHeight
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		slog.Debug("Could not read image dimensions", "path", path, "error", err)
		return DefaultWidth, DefaultHeight
	}
	return cfg.Width, cfg.Height
}
