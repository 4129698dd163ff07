package distribution

import (
	"testing"

	apperrors "github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAspectCategoryFor(t *testing.T) {
	tests := []struct {
		ratio    float64
		expected AspectCategory
	}{
		{0.5, AspectWide},
		{0.69, AspectWide},
		{0.7, AspectSquare},
		{1.0, AspectSquare},
		{1.1, AspectPortrait},
		{1.49, AspectPortrait},
		{1.5, AspectTall},
		{1.99, AspectTall},
		{2.0, AspectUltraTall},
		{3.5, AspectUltraTall},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, AspectCategoryFor(tt.ratio), "ratio %v", tt.ratio)
	}
}

func TestInferColorProfile(t *testing.T) {
	tests := []struct {
		name     string
		photo    types.Photo
		expected types.ColorProfile
	}{
		{
			name:     "explicit profile wins",
			photo:    types.Photo{ID: "a", Category: types.CategoryAbstract, ColorProfile: types.ColorMuted},
			expected: types.ColorMuted,
		},
		{
			name:     "landscape sunset is warm",
			photo:    types.Photo{ID: "a", Category: types.CategoryLandscape, Filename: "Beach_SUNSET.jpg"},
			expected: types.ColorWarm,
		},
		{
			name:     "landscape golden hour is warm",
			photo:    types.Photo{ID: "a", Category: types.CategoryLandscape, Filename: "golden-hour.jpg"},
			expected: types.ColorWarm,
		},
		{
			name:     "other landscape is cool",
			photo:    types.Photo{ID: "a", Category: types.CategoryLandscape, Filename: "lake.jpg"},
			expected: types.ColorCool,
		},
		{
			name:     "studio portrait is neutral",
			photo:    types.Photo{ID: "a", Category: types.CategoryPortraits, Filename: "studio_01.jpg"},
			expected: types.ColorNeutral,
		},
		{
			name:     "other portrait is warm",
			photo:    types.Photo{ID: "a", Category: types.CategoryPortraits, Filename: "street.jpg"},
			expected: types.ColorWarm,
		},
		{
			name:     "modern architecture is cool",
			photo:    types.Photo{ID: "a", Category: types.CategoryArchitecture, Filename: "modern_tower.jpg"},
			expected: types.ColorCool,
		},
		{
			name:     "other architecture is neutral",
			photo:    types.Photo{ID: "a", Category: types.CategoryArchitecture, Filename: "church.jpg"},
			expected: types.ColorNeutral,
		},
		{
			name:     "abstract is vibrant",
			photo:    types.Photo{ID: "a", Category: types.CategoryAbstract},
			expected: types.ColorVibrant,
		},
		{
			name:     "wildlife is muted",
			photo:    types.Photo{ID: "a", Category: "Wildlife"},
			expected: types.ColorMuted,
		},
		{
			// 'a' = 97, 97 % 5 = 2
			name:     "uncategorized hashes the id",
			photo:    types.Photo{ID: "a", Category: types.CategoryUncategorized},
			expected: types.ColorNeutral,
		},
		{
			// 'a' + 'b' = 195, 195 % 5 = 0
			name:     "hash uses every character",
			photo:    types.Photo{ID: "ab", Category: types.CategoryUncategorized},
			expected: types.ColorWarm,
		},
		{
			// surrogate pair 0xD83D + 0xDE00 = 112189, 112189 % 5 = 4
			name:     "hash sums utf-16 code units",
			photo:    types.Photo{ID: "\U0001F600", Category: types.CategoryUncategorized},
			expected: types.ColorMuted,
		},
		{
			// 'é' is one code unit, 0xE9 = 233, 233 % 5 = 3
			name:     "hash of a bmp character",
			photo:    types.Photo{ID: "é", Category: types.CategoryUncategorized},
			expected: types.ColorVibrant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferColorProfile(tt.photo))
		})
	}
}

func TestVisualWeight(t *testing.T) {
	tests := []struct {
		name     string
		category types.Category
		ratio    float64
		expected float64
	}{
		{"square landscape", types.CategoryLandscape, 1.0, 1.0},
		{"wide ratio landscape", types.CategoryLandscape, 2.0, 1.3},
		{"narrow ratio landscape", types.CategoryLandscape, 0.5, 1.2},
		{"square portrait", types.CategoryPortraits, 1.0, 1.4},
		{"wide portrait", types.CategoryPortraits, 1.6, 1.7},
		{"abstract", types.CategoryAbstract, 0.75, 1.5},
		{"wildlife", types.CategoryWildlife, 1.0, 1.2},
		{"architecture", types.CategoryArchitecture, 1.0, 1.1},
		{"uncategorized", types.CategoryUncategorized, 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := VisualWeight(types.Photo{Category: tt.category}, tt.ratio)
			assert.InDelta(t, tt.expected, w, 1e-9)
			assert.GreaterOrEqual(t, w, 1.0)
			assert.LessOrEqual(t, w, maxVisualWeight)
		})
	}
}

func TestAnalyzeIsPure(t *testing.T) {
	p := types.Photo{ID: "p1", Category: types.CategoryPortraits, Filename: "studio.jpg", Width: 400, Height: 300}

	first := Analyze(p)
	second := Analyze(p)

	assert.Equal(t, first, second)
	assert.InDelta(t, 4.0/3.0, first.AspectRatio, 1e-9)
	assert.Equal(t, AspectPortrait, first.AspectCategory)
	assert.Equal(t, types.ColorNeutral, first.ColorProfile)
	assert.Empty(t, p.ColorProfile)
}

func TestAnalyzeUsesExplicitAspectRatio(t *testing.T) {
	a := Analyze(types.Photo{ID: "p", Category: types.CategoryLandscape, Width: 100, Height: 100, AspectRatio: 2.5})
	assert.Equal(t, AspectUltraTall, a.AspectCategory)
	assert.InDelta(t, 1.3, a.VisualWeight, 1e-9)
}

func TestValidate(t *testing.T) {
	valid := types.Photo{ID: "ok", Category: types.CategoryLandscape, Width: 10, Height: 10}

	tests := []struct {
		name  string
		photo types.Photo
		field string
	}{
		{"missing id", types.Photo{Category: types.CategoryLandscape, Width: 1, Height: 1}, "id"},
		{"missing category", types.Photo{ID: "x", Width: 1, Height: 1}, "category"},
		{"zero width", types.Photo{ID: "x", Category: types.CategoryLandscape, Height: 1}, "width"},
		{"negative height", types.Photo{ID: "x", Category: types.CategoryLandscape, Width: 1, Height: -3}, "height"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]types.Photo{valid, tt.photo})
			require.Error(t, err)

			appErr := apperrors.ToAppError(err)
			assert.Equal(t, apperrors.CategoryValidation, appErr.Category)
			assert.Contains(t, err.Error(), "photo 1: "+tt.field)
		})
	}

	assert.NoError(t, Validate([]types.Photo{valid}))
	assert.NoError(t, Validate(nil))
}

func TestSummarize(t *testing.T) {
	analyzed := []AnalyzedPhoto{
		Analyze(types.Photo{ID: "1", Category: types.CategoryLandscape, Width: 400, Height: 400}),
		Analyze(types.Photo{ID: "2", Category: types.CategoryLandscape, Width: 400, Height: 400}),
		Analyze(types.Photo{ID: "3", Category: types.CategoryPortraits, Width: 400, Height: 400}),
	}

	s := Summarize(analyzed)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 3, s.AspectRatios[AspectSquare])
	assert.Equal(t, 2, s.Categories[types.CategoryLandscape])
	assert.Equal(t, 2, s.ColorProfiles[types.ColorCool])
	assert.Equal(t, 1, s.ColorProfiles[types.ColorWarm])
	assert.InDelta(t, 3.4/3, s.AverageWeight, 1e-9)

	empty := Summarize(nil)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.AverageWeight)
}
