package distribution

import "github.com/ZanzyTHEbar/dlm-gallery/internal/types"

// CycleLength is the number of slots in one diversity cycle
const CycleLength = 9

var (
	aspectPattern = [CycleLength]AspectCategory{
		AspectSquare, AspectTall, AspectWide, AspectPortrait,
		AspectSquare, AspectTall, AspectWide, AspectPortrait, AspectSquare,
	}
	colorPattern = [CycleLength]types.ColorProfile{
		types.ColorWarm, types.ColorCool, types.ColorNeutral, types.ColorVibrant, types.ColorMuted,
		types.ColorWarm, types.ColorCool, types.ColorNeutral, types.ColorVibrant,
	}
	categoryPattern = [CycleLength]types.Category{
		types.CategoryLandscape, types.CategoryPortraits, types.CategoryArchitecture,
		types.CategoryAbstract, types.CategoryWildlife, types.CategoryLandscape,
		types.CategoryPortraits, types.CategoryArchitecture, types.CategoryAbstract,
	}
)

// Score weights
const (
	scoreAspectMatch    = 30
	scoreColorMatch     = 25
	scoreCategoryMatch  = 20
	scoreLighter        = 15
	scoreColumnVariety  = 10
	recentWeightSamples = 3
)

// Bucket is one slot of the diversity cycle
type Bucket struct {
	Index          int                `json:"index"`
	Column         int                `json:"column"`
	Period         int                `json:"period"`
	TargetAspect   AspectCategory     `json:"targetAspect"`
	TargetColor    types.ColorProfile `json:"targetColor"`
	TargetCategory types.Category     `json:"targetCategory"`
}

// Buckets builds the nine slot cycle for a column count
func Buckets(columns int) []Bucket {
	if columns <= 0 {
		columns = DefaultOptions().Columns
	}
	buckets := make([]Bucket, CycleLength)
	for i := range buckets {
		buckets[i] = Bucket{
			Index:          i,
			Column:         i % columns,
			Period:         i / columns,
			TargetAspect:   aspectPattern[i],
			TargetColor:    colorPattern[i],
			TargetCategory: categoryPattern[i],
		}
	}
	return buckets
}

// Score rates how well a photo fits a bucket given the photos already placed
func Score(photo AnalyzedPhoto, bucket Bucket, placed []AnalyzedPhoto, columns int) int {
	score := 0
	if photo.AspectCategory == bucket.TargetAspect {
		score += scoreAspectMatch
	}
	if photo.ColorProfile == bucket.TargetColor {
		score += scoreColorMatch
	}
	if photo.Category == bucket.TargetCategory {
		score += scoreCategoryMatch
	}

	if len(placed) > 0 {
		recent := placed
		if len(recent) > recentWeightSamples {
			recent = recent[len(recent)-recentWeightSamples:]
		}
		sum := 0.0
		for _, p := range recent {
			sum += p.VisualWeight
		}
		if photo.VisualWeight < sum/float64(len(recent)) {
			score += scoreLighter
		}
	}

	if columns > 0 {
		var last *AnalyzedPhoto
		for i := range placed {
			if i%columns == bucket.Column {
				last = &placed[i]
			}
		}
		if last != nil && photo.Category != last.Category {
			score += scoreColumnVariety
		}
	}

	return score
}

// Interleave round-robins photos across aspect categories, keeping input order within a group
func Interleave(analyzed []AnalyzedPhoto) []AnalyzedPhoto {
	groups := make(map[AspectCategory][]AnalyzedPhoto, len(AspectOrder))
	for _, a := range analyzed {
		groups[a.AspectCategory] = append(groups[a.AspectCategory], a)
	}

	out := make([]AnalyzedPhoto, 0, len(analyzed))
	for round := 0; len(out) < len(analyzed); round++ {
		for _, aspect := range AspectOrder {
			if group := groups[aspect]; round < len(group) {
				out = append(out, group[round])
			}
		}
	}
	return out
}
