package distribution

import "github.com/ZanzyTHEbar/dlm-gallery/internal/types"

// AspectCategory is a coarse shape bucket derived from width/height
type AspectCategory string

const (
	AspectWide      AspectCategory = "wide"
	AspectSquare    AspectCategory = "square"
	AspectPortrait  AspectCategory = "portrait"
	AspectTall      AspectCategory = "tall"
	AspectUltraTall AspectCategory = "ultra-tall"
)

// AspectOrder is the round-robin order used by Interleave
var AspectOrder = []AspectCategory{AspectWide, AspectSquare, AspectPortrait, AspectTall, AspectUltraTall}

// AnalyzedPhoto lives only for the duration of one Distribute call
type AnalyzedPhoto struct {
	types.Photo
	AspectRatio       float64
	AspectCategory    AspectCategory
	ColorProfile      types.ColorProfile
	VisualWeight      float64
	DistributionScore int
}

// Options controls the balancer. Zero values fall back to DefaultOptions.
type Options struct {
	Columns      int
	ColumnWidth  float64
	Margin       float64
	TargetBuffer float64
	// Interleave round-robins aspect categories before balancing
	Interleave bool
}

// DefaultOptions matches the gallery's three column layout
func DefaultOptions() Options {
	return Options{
		Columns:      3,
		ColumnWidth:  300,
		Margin:       24,
		TargetBuffer: 1.05,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Columns <= 0 {
		o.Columns = d.Columns
	}
	if o.ColumnWidth <= 0 {
		o.ColumnWidth = d.ColumnWidth
	}
	if o.Margin <= 0 {
		o.Margin = d.Margin
	}
	if o.TargetBuffer <= 0 {
		o.TargetBuffer = d.TargetBuffer
	}
	return o
}

// Layout is the full result of a balancing pass
type Layout struct {
	Photos        []types.Photo `json:"-"`
	Columns       [][]string    `json:"columns"`
	ColumnHeights []float64     `json:"columnHeights"`
	TotalHeight   float64       `json:"totalHeight"`
	TargetHeight  float64       `json:"targetHeight"`
}

// HeightSpread is the difference between the tallest and shortest column
func (l *Layout) HeightSpread() float64 {
	if len(l.ColumnHeights) == 0 {
		return 0
	}
	lo, hi := l.ColumnHeights[0], l.ColumnHeights[0]
	for _, h := range l.ColumnHeights[1:] {
		if h < lo {
			lo = h
		}
		if h > hi {
			hi = h
		}
	}
	return hi - lo
}

// Summary counts a photo set along each analysis axis
type Summary struct {
	Total         int                        `json:"total"`
	AspectRatios  map[AspectCategory]int     `json:"aspectRatios"`
	ColorProfiles map[types.ColorProfile]int `json:"colorProfiles"`
	Categories    map[types.Category]int     `json:"categories"`
	AverageWeight float64                    `json:"averageWeight"`
	// DiversityScore is the mean bucket score of the balanced order
	DiversityScore float64 `json:"diversityScore"`
}
