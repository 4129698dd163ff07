package database

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*DB, *Repository) {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, NewRepository(db)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func insertLocal(t *testing.T, repo *Repository, category, filename, title string, created time.Time) *Photo {
	t.Helper()
	p := NewPhoto("", category, filename, category+"/"+filename)
	p.Title = title
	p.Width, p.Height = 800, 600
	p.CreatedAt = created
	p.UpdatedAt = created
	added, err := repo.InsertPhoto(context.Background(), p)
	require.NoError(t, err)
	require.True(t, added)
	return p
}

func TestNewDB(t *testing.T) {
	db, _ := setupTestDB(t)

	assert.NoError(t, db.HealthCheck(context.Background()))
	stats := db.GetPoolStats()
	assert.Equal(t, 25, stats["max_open_connections"])

	_, err := db.GetPreparedStatement("missing")
	assert.Error(t, err)
}

func TestRepository_ListAndCount(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	insertLocal(t, repo, "portraits", "a.jpg", "A", base)
	insertLocal(t, repo, "portraits", "b.jpg", "B", base.Add(time.Hour))
	insertLocal(t, repo, "wildlife", "c.jpg", "C", base.Add(2*time.Hour))

	all, err := repo.ListPhotos(ctx, PhotoFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.jpg", all[0].Filename, "newest first")

	portraits, err := repo.ListPhotos(ctx, PhotoFilter{Category: "portraits", Limit: 1})
	require.NoError(t, err)
	require.Len(t, portraits, 1)
	assert.Equal(t, "b.jpg", portraits[0].Filename)

	count, err := repo.CountPhotos(ctx, PhotoFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = repo.CountPhotos(ctx, PhotoFilter{Category: "wildlife"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"portraits", "wildlife"}, categories)
}

func TestRepository_Search(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertLocal(t, repo, "landscape", "sunset_beach.jpg", "Sunset Beach", now)
	insertLocal(t, repo, "landscape", "mountain.jpg", "Mountain", now)
	insertLocal(t, repo, "portraits", "100_percent.jpg", "Percent", now)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"title match is case-insensitive", "SUNSET", 1},
		{"category match", "landscape", 2},
		{"filename match", "mountain.jpg", 1},
		{"no match", "zebra", 0},
		{"percent is literal", "%", 0},
		{"underscore is literal", "t_b", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			photos, total, err := repo.SearchPhotos(ctx, tt.query, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, photos, tt.want)
		})
	}

	photos, total, err := repo.SearchPhotos(ctx, "landscape", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, photos, 1)
}

func TestRepository_GetPhoto(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	p := insertLocal(t, repo, "abstract", "swirl.png", "Swirl", time.Now().UTC())

	got, err := repo.GetPhoto(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Swirl", got.Title)
	assert.Equal(t, "abstract/swirl.png", got.FilePath)
	assert.Empty(t, got.AlbumID)

	missing, err := repo.GetPhoto(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_InsertDuplicatePath(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	insertLocal(t, repo, "abstract", "dup.jpg", "Dup", time.Now().UTC())

	again := NewPhoto("", "abstract", "dup.jpg", "abstract/dup.jpg")
	added, err := repo.InsertPhoto(ctx, again)
	require.NoError(t, err)
	assert.False(t, added)

	exists, err := repo.PhotoExists(ctx, "abstract/dup.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRepository_Albums(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateAlbum(ctx, "Wildlife Collection", "wildlife", "Collection of wildlife photographs")
	require.NoError(t, err)
	second, err := repo.GetOrCreateAlbum(ctx, "Wildlife Collection", "wildlife", "ignored")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	p := NewPhoto(first.ID, "wildlife", "owl.jpg", "wildlife/owl.jpg")
	_, err = repo.InsertPhoto(ctx, p)
	require.NoError(t, err)
	require.NoError(t, repo.RefreshAlbumCounts(ctx))

	albums, err := repo.ListAlbums(ctx)
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Equal(t, 1, albums[0].PhotoCount)
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"golden_gate-bridge.jpg", "Golden Gate Bridge"},
		{"portrait_01.png", "Portrait 01"},
		{"SHOUTY.JPG", "Shouty"},
		{"plain", "Plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleFromFilename(tt.in), tt.in)
	}
}

func TestIsPhotoFile(t *testing.T) {
	assert.True(t, IsPhotoFile("a.JPG"))
	assert.True(t, IsPhotoFile("a.webp"))
	assert.True(t, IsPhotoFile("raw.cr2"))
	assert.False(t, IsPhotoFile("notes.txt"))
	assert.False(t, IsPhotoFile("noext"))
}

func TestReadDimensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	writePNG(t, path, 30, 20)

	w, h := ReadDimensions(path)
	assert.Equal(t, 30, w)
	assert.Equal(t, 20, h)

	bogus := filepath.Join(dir, "bogus.jpg")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0644))
	w, h = ReadDimensions(bogus)
	assert.Equal(t, DefaultWidth, w)
	assert.Equal(t, DefaultHeight, h)
}

func TestImporter_Import(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	photos := t.TempDir()

	writePNG(t, filepath.Join(photos, "portraits", "jane_doe.png"), 40, 60)
	writePNG(t, filepath.Join(photos, "wildlife", "red-fox.png"), 60, 40)
	require.NoError(t, os.WriteFile(filepath.Join(photos, "wildlife", "readme.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(photos, "wildlife", "broken.jpg"), []byte("x"), 0644))

	im := NewImporter(repo, photos, nil)
	result, err := im.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 2, result.Albums["Wildlife Collection"])

	list, err := repo.ListPhotos(ctx, PhotoFilter{Category: "portraits"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Jane Doe", list[0].Title)
	assert.Equal(t, "Portraits photograph", list[0].Description)
	assert.Equal(t, "portraits/jane_doe.png", list[0].FilePath)
	assert.Equal(t, 40, list[0].Width)
	assert.Equal(t, 60, list[0].Height)
	assert.Equal(t, "image/png", list[0].MimeType)

	broken, _, err := repo.SearchPhotos(ctx, "broken", 0)
	require.NoError(t, err)
	require.Len(t, broken, 1)
	assert.Equal(t, DefaultWidth, broken[0].Width)

	// A second run only adds new files
	writePNG(t, filepath.Join(photos, "wildlife", "owl.png"), 10, 10)
	result, err = im.Import(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 3, result.Skipped)

	albums, err := repo.ListAlbums(ctx)
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.Equal(t, "Portraits Collection", albums[0].Name)
	assert.Equal(t, "Collection of portraits photographs", albums[0].Description)
	assert.Equal(t, 3, albums[1].PhotoCount)
}

func TestImporter_MissingDir(t *testing.T) {
	_, repo := setupTestDB(t)
	im := NewImporter(repo, filepath.Join(t.TempDir(), "nope"), nil)
	_, err := im.Import(context.Background())
	assert.Error(t, err)
}

func TestWatcher_ImportsNewFiles(t *testing.T) {
	_, repo := setupTestDB(t)
	photos := t.TempDir()
	im := NewImporter(repo, photos, nil)

	imported := make(chan *ImportResult, 4)
	w := NewWatcher(im, 50*time.Millisecond, nil, func(r *ImportResult) { imported <- r })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Run creates the category directories before watching them
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(photos, "landscape"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	writePNG(t, filepath.Join(photos, "landscape", "hills.png"), 20, 10)

	select {
	case r := <-imported:
		assert.Equal(t, 1, r.Added)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not import the new file")
	}

	cancel()
	assert.NoError(t, <-done)
}
