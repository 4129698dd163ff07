package distribution

import (
	"strings"
	"unicode/utf16"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
)

const maxVisualWeight = 2.0

var (
	categoryBonus = map[types.Category]float64{
		types.CategoryPortraits:    0.4,
		types.CategoryAbstract:     0.3,
		types.CategoryWildlife:     0.2,
		types.CategoryArchitecture: 0.1,
		types.CategoryLandscape:    0,
	}
	hashedProfiles = []types.ColorProfile{
		types.ColorWarm,
		types.ColorCool,
		types.ColorNeutral,
		types.ColorVibrant,
		types.ColorMuted,
	}
)

// Validate fails on the first record missing a required field
func Validate(photos []types.Photo) error {
	for i, p := range photos {
		switch {
		case strings.TrimSpace(p.ID) == "":
			return errors.NewFieldValidationError(i, "id", "is required")
		case strings.TrimSpace(string(p.Category)) == "":
			return errors.NewFieldValidationError(i, "category", "is required")
		case p.Width <= 0:
			return errors.NewFieldValidationError(i, "width", "must be positive")
		case p.Height <= 0:
			return errors.NewFieldValidationError(i, "height", "must be positive")
		}
	}
	return nil
}

// Analyze derives the balancing attributes of one photo
func Analyze(p types.Photo) AnalyzedPhoto {
	ratio := p.Ratio()
	return AnalyzedPhoto{
		Photo:          p,
		AspectRatio:    ratio,
		AspectCategory: AspectCategoryFor(ratio),
		ColorProfile:   InferColorProfile(p),
		VisualWeight:   VisualWeight(p, ratio),
	}
}

// AspectCategoryFor buckets an aspect ratio (width/height)
func AspectCategoryFor(ratio float64) AspectCategory {
	switch {
	case ratio < 0.7:
		return AspectWide
	case ratio < 1.1:
		return AspectSquare
	case ratio < 1.5:
		return AspectPortrait
	case ratio < 2.0:
		return AspectTall
	default:
		return AspectUltraTall
	}
}

// InferColorProfile returns the explicit profile, a category heuristic, or an id hash
func InferColorProfile(p types.Photo) types.ColorProfile {
	if p.ColorProfile != "" {
		return p.ColorProfile
	}

	filename := strings.ToLower(p.Filename)
	switch types.Category(strings.ToLower(string(p.Category))) {
	case types.CategoryLandscape:
		if strings.Contains(filename, "sunset") || strings.Contains(filename, "golden") {
			return types.ColorWarm
		}
		return types.ColorCool
	case types.CategoryPortraits:
		if strings.Contains(filename, "studio") {
			return types.ColorNeutral
		}
		return types.ColorWarm
	case types.CategoryArchitecture:
		if strings.Contains(filename, "modern") {
			return types.ColorCool
		}
		return types.ColorNeutral
	case types.CategoryAbstract:
		return types.ColorVibrant
	case types.CategoryWildlife:
		return types.ColorMuted
	}

	// sum of UTF-16 code units, so a surrogate pair counts as two
	sum := 0
	for _, u := range utf16.Encode([]rune(p.ID)) {
		sum += int(u)
	}
	return hashedProfiles[sum%len(hashedProfiles)]
}

// VisualWeight scores how much a photo dominates its neighbours, in [1.0, 2.0]
func VisualWeight(p types.Photo, ratio float64) float64 {
	weight := 1.0
	if ratio > 1.5 {
		weight += 0.3
	}
	if ratio < 0.8 {
		weight += 0.2
	}
	weight += categoryBonus[types.Category(strings.ToLower(string(p.Category)))]
	if weight > maxVisualWeight {
		weight = maxVisualWeight
	}
	return weight
}

// Summarize counts photos per aspect category, color profile and category
func Summarize(analyzed []AnalyzedPhoto) Summary {
	s := Summary{
		Total:         len(analyzed),
		AspectRatios:  make(map[AspectCategory]int),
		ColorProfiles: make(map[types.ColorProfile]int),
		Categories:    make(map[types.Category]int),
	}
	if len(analyzed) == 0 {
		return s
	}

	total := 0.0
	for _, a := range analyzed {
		s.AspectRatios[a.AspectCategory]++
		s.ColorProfiles[a.ColorProfile]++
		s.Categories[a.Category]++
		total += a.VisualWeight
	}
	s.AverageWeight = total / float64(len(analyzed))
	return s
}
