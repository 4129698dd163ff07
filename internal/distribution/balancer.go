package distribution

import (
	"sort"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/types"
)

// EstimatedHeight is the rendered height of a photo in a column of the given width
func EstimatedHeight(ratio, columnWidth, margin float64) float64 {
	return columnWidth/ratio + margin
}

// balance places photos heaviest first into the currently shortest column
func balance(analyzed []AnalyzedPhoto, opts Options) *Layout {
	cols := opts.Columns
	columns := make([][]AnalyzedPhoto, cols)
	heights := make([]float64, cols)

	total := 0.0
	for _, a := range analyzed {
		total += EstimatedHeight(a.AspectRatio, opts.ColumnWidth, opts.Margin)
	}

	sorted := make([]AnalyzedPhoto, len(analyzed))
	copy(sorted, analyzed)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].VisualWeight > sorted[j].VisualWeight
	})

	for _, a := range sorted {
		shortest := 0
		for c := 1; c < cols; c++ {
			if heights[c] < heights[shortest] {
				shortest = c
			}
		}
		columns[shortest] = append(columns[shortest], a)
		heights[shortest] += EstimatedHeight(a.AspectRatio, opts.ColumnWidth, opts.Margin)
	}

	layout := &Layout{
		Photos:        flatten(columns, len(analyzed)),
		Columns:       make([][]string, cols),
		ColumnHeights: heights,
		TotalHeight:   total,
		TargetHeight:  total / float64(cols) * opts.TargetBuffer,
	}
	for c, column := range columns {
		ids := make([]string, 0, len(column))
		for _, a := range column {
			ids = append(ids, a.ID)
		}
		layout.Columns[c] = ids
	}
	return layout
}

// flatten reads columns row by row, skipping columns that ran out
func flatten(columns [][]AnalyzedPhoto, n int) []types.Photo {
	out := make([]types.Photo, 0, n)
	for row := 0; len(out) < n; row++ {
		for _, column := range columns {
			if row < len(column) {
				out = append(out, column[row].Photo)
			}
		}
	}
	return out
}
