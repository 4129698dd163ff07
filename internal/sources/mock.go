package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/resilience"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
)

// MockName is the display name of the mock source
const MockName = "MockPhotosService"

type stockPhoto struct {
	w, h int
	id   string
}

// Dimensions and ids of the stock images the mock gallery is built from
var stockSources = map[types.Category][]stockPhoto{
	types.CategoryPortraits: {
		{300, 450, "rDEOVtE7vOs"}, {400, 300, "sibVwORYqs0"}, {350, 350, "mEZ3PoFGs_k"}, {280, 420, "IF9TK5Uy-KI"},
		{450, 300, "WNoLnJo7tS8"}, {320, 480, "YI_9SivVt_s"}, {400, 250, "2EGNqazbAMk"}, {300, 500, "pAtA8xe_iVM"},
	},
	types.CategoryLandscape: {
		{500, 300, "6ArTTluciuA"}, {300, 450, "Q1p7bh3SHj8"}, {400, 400, "OKLqGsCT8qs"}, {350, 525, "lHGeqh3XhRY"},
		{450, 300, "4dpAqfTbvKA"}, {320, 480, "tAKXap853rY"}, {500, 250, "yC-Yzbqy7PY"}, {300, 400, "LNRyGwIJr5c"},
	},
	types.CategoryArchitecture: {
		{280, 420, "Dl6jeyfihLk"}, {450, 300, "y83Je1OC6Wc"}, {350, 350, "LF8gK8-HGSg"}, {320, 480, "tAKXap853rY"},
		{400, 250, "BbQLHCpVUqA"}, {300, 450, "xII7efH1G6o"}, {400, 400, "ABDTiLqDhJA"}, {450, 300, "1bgV8vGG_vw"},
	},
	types.CategoryAbstract: {
		{350, 350, "_h7aBovKia4"}, {500, 250, "LeG68PrXA6Y"}, {280, 420, "tMI2_-r5Nfo"}, {400, 400, "qwtCeJ5cLYs"},
		{300, 450, "uhjiu8FjnsQ"}, {450, 300, "XJXWbfSo2f0"}, {320, 320, "jr4My9LVtzw"}, {300, 400, "nP-E_TuSDVo"},
	},
	types.CategoryWildlife: {
		{450, 300, "YozNeHM8MaA"}, {300, 450, "5nNmUzXcmjI"}, {400, 300, "rTZW4f02zY8"}, {320, 480, "ZO9b9QXrjqY"},
		{450, 300, "lEjqyllqaGk"}, {350, 350, "fX_8gVQWlHo"}, {300, 400, "FE7kNUlEGfw"}, {400, 250, "cPccYbPrF-A"},
	},
}

// MockSource serves a fixed generated gallery. It never fails.
type MockSource struct {
	photos []types.Photo
}

// NewMockSource generates perCategory photos for every category
func NewMockSource(perCategory int) *MockSource {
	if perCategory <= 0 {
		perCategory = 8
	}
	return &MockSource{photos: generateMockPhotos(perCategory, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))}
}

func generateMockPhotos(perCategory int, epoch time.Time) []types.Photo {
	photos := make([]types.Photo, 0, perCategory*len(types.Categories))
	for ci, category := range types.Categories {
		stock := stockSources[category]
		for i := 0; i < perCategory; i++ {
			s := stock[i%len(stock)]
			url := fmt.Sprintf("https://loremflickr.com/%d/%d/%s", s.w, s.h, category)
			created := epoch.AddDate(0, 0, -(i*len(types.Categories) + ci)*7)

			photos = append(photos, types.Photo{
				ID:           fmt.Sprintf("mock-%s-%d", category, i+1),
				Category:     category,
				Filename:     fmt.Sprintf("%s_%s.jpg", category, s.id),
				Description:  fmt.Sprintf("%s photo", category),
				BaseURL:      url,
				URL:          url,
				ThumbnailURL: url,
				LargeURL:     url,
				Width:        s.w,
				Height:       s.h,
				AspectRatio:  float64(s.w) / float64(s.h),
				ColorProfile: types.ColorNeutral,
				CreationTime: created.Format(time.RFC3339),
			})
		}
	}
	return photos
}

func (m *MockSource) Name() string        { return MockName }
func (m *MockSource) ServiceName() string { return resilience.ServiceMockPhotos }

func (m *MockSource) copyPhotos() []types.Photo {
	out := make([]types.Photo, len(m.photos))
	copy(out, m.photos)
	return out
}

func (m *MockSource) GetAll(ctx context.Context) (*types.PhotoResponse, error) {
	return newResponse(MockName, m.copyPhotos(), map[string]interface{}{
		"categories":  categoriesOf(m.photos),
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
	}), nil
}

func (m *MockSource) GetByCategory(ctx context.Context, category string) (*types.PhotoResponse, error) {
	filtered := filterPhotos(m.photos, func(p types.Photo) bool { return string(p.Category) == category })
	return newResponse(MockName, filtered, map[string]interface{}{
		"category":    category,
		"count":       len(filtered),
		"totalPhotos": len(m.photos),
	}), nil
}

func (m *MockSource) GetByID(ctx context.Context, id string) (*types.PhotoResult, error) {
	var found *types.Photo
	for i := range m.photos {
		if m.photos[i].ID == id {
			p := m.photos[i]
			found = &p
			break
		}
	}
	return newResult(MockName, found, map[string]interface{}{
		"found":      found != nil,
		"searchedId": id,
	}), nil
}

func (m *MockSource) Search(ctx context.Context, query string) (*types.PhotoResponse, error) {
	results := filterPhotos(m.photos, func(p types.Photo) bool { return MatchesQuery(p, query) })
	return newResponse(MockName, results, map[string]interface{}{
		"query":        query,
		"resultsCount": len(results),
		"totalPhotos":  len(m.photos),
	}), nil
}

func (m *MockSource) IsAvailable(ctx context.Context) bool { return true }

func (m *MockSource) Config(ctx context.Context) types.SourceConfig {
	return types.SourceConfig{
		Name:        MockName,
		Version:     Version,
		IsAvailable: true,
		Metadata: map[string]interface{}{
			"totalPhotos": len(m.photos),
			"categories":  categoriesOf(m.photos),
			"features":    []string{"getAllPhotos", "getPhotosByCategory", "getPhotoById", "searchPhotos"},
		},
	}
}
