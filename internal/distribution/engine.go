// Package distribution orders gallery photos so that a fixed number of masonry
// columns, filled in row-major order, end up with roughly equal heights.
//
// The engine is a pure transform: it never mutates its input, performs no I/O
// and keeps no state between calls, so one Engine can serve concurrent requests.
package distribution

import (
	"log/slog"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
)

// Engine applies the balancer with fixed options
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger uses slog.Default().
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options
func (e *Engine) Options() Options {
	return e.opts
}

// WithColumns returns an engine sharing this engine's settings with a different column count
func (e *Engine) WithColumns(columns int) *Engine {
	opts := e.opts
	opts.Columns = columns
	return NewEngine(opts, e.logger)
}

// Distribute returns the photos in balanced render order
func Distribute(photos []types.Photo) ([]types.Photo, error) {
	return NewEngine(DefaultOptions(), nil).Distribute(photos)
}

// Distribute returns the photos in balanced render order
func (e *Engine) Distribute(photos []types.Photo) ([]types.Photo, error) {
	layout, err := e.Layout(photos)
	if err != nil {
		return nil, err
	}
	return layout.Photos, nil
}

// Layout validates, analyzes and balances the photos
func (e *Engine) Layout(photos []types.Photo) (*Layout, error) {
	if err := Validate(photos); err != nil {
		return nil, err
	}

	analyzed := e.analyzeAll(photos)
	if e.opts.Interleave {
		analyzed = Interleave(analyzed)
	}

	layout := balance(analyzed, e.opts)
	e.logger.Debug("Photo distribution computed",
		"photos", len(photos),
		"columns", e.opts.Columns,
		"total_height", layout.TotalHeight,
		"target_height", layout.TargetHeight,
		"height_spread", layout.HeightSpread(),
	)
	return layout, nil
}

// Analysis summarizes the photo set and rates the diversity of its balanced order
func (e *Engine) Analysis(photos []types.Photo) (Summary, error) {
	layout, err := e.Layout(photos)
	if err != nil {
		return Summary{}, err
	}

	summary := Summarize(e.analyzeAll(photos))
	summary.DiversityScore = e.diversity(e.analyzeAll(layout.Photos))

	e.logger.Info("Photo distribution analysis",
		"total", summary.Total,
		"aspect_ratios", summary.AspectRatios,
		"color_profiles", summary.ColorProfiles,
		"categories", summary.Categories,
		"average_weight", summary.AverageWeight,
		"diversity_score", summary.DiversityScore,
	)
	return summary, nil
}

// diversity is the mean bucket score of an ordering against the repeating cycle
func (e *Engine) diversity(ordered []AnalyzedPhoto) float64 {
	if len(ordered) == 0 {
		return 0
	}
	buckets := Buckets(e.opts.Columns)
	total := 0
	for i := range ordered {
		ordered[i].DistributionScore = Score(ordered[i], buckets[i%CycleLength], ordered[:i], e.opts.Columns)
		total += ordered[i].DistributionScore
	}
	return float64(total) / float64(len(ordered))
}

func (e *Engine) analyzeAll(photos []types.Photo) []AnalyzedPhoto {
	analyzed := make([]AnalyzedPhoto, len(photos))
	for i, p := range photos {
		analyzed[i] = Analyze(p)
	}
	return analyzed
}
