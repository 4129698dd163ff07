package types

import (
	"strings"
	"time"
)

// Category is the gallery section a photo belongs to
type Category string

const (
	CategoryPortraits     Category = "portraits"
	CategoryLandscape     Category = "landscape"
	CategoryArchitecture  Category = "architecture"
	CategoryAbstract      Category = "abstract"
	CategoryWildlife      Category = "wildlife"
	CategoryUncategorized Category = "uncategorized"
)

// Categories lists the gallery categories in display order
var Categories = []Category{
	CategoryPortraits,
	CategoryLandscape,
	CategoryArchitecture,
	CategoryAbstract,
	CategoryWildlife,
}

// ParseCategory normalizes a category name. ok is false for names outside the closed set.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == CategoryUncategorized {
		return c, true
	}
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return c, false
}

// ColorProfile is the dominant color temperature used for layout diversity
type ColorProfile string

const (
	ColorWarm    ColorProfile = "warm"
	ColorCool    ColorProfile = "cool"
	ColorNeutral ColorProfile = "neutral"
	ColorVibrant ColorProfile = "vibrant"
	ColorMuted   ColorProfile = "muted"
)

// Photo is the record every photo source produces
type Photo struct {
	ID           string       `json:"id"`
	Category     Category     `json:"category"`
	Filename     string       `json:"filename"`
	Description  string       `json:"description"`
	BaseURL      string       `json:"baseUrl"`
	URL          string       `json:"url"`
	ThumbnailURL string       `json:"thumbnailUrl,omitempty"`
	LargeURL     string       `json:"largeUrl,omitempty"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	AspectRatio  float64      `json:"aspectRatio,omitempty"`
	ColorProfile ColorProfile `json:"colorProfile,omitempty"`
	CreationTime string       `json:"creationTime,omitempty"`
}

// Ratio returns the explicit aspect ratio or width/height
func (p Photo) Ratio() float64 {
	if p.AspectRatio > 0 {
		return p.AspectRatio
	}
	if p.Height == 0 {
		return 0
	}
	return float64(p.Width) / float64(p.Height)
}

// Created parses CreationTime. The zero time is returned when it is absent or malformed.
func (p Photo) Created() time.Time {
	if p.CreationTime == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, p.CreationTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ResponseConfig describes which source served a response
type ResponseConfig struct {
	Service    string                 `json:"service"`
	TotalCount int                    `json:"totalCount"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// PhotoResponse is the envelope returned by list operations
type PhotoResponse struct {
	Data   []Photo        `json:"data"`
	Config ResponseConfig `json:"config"`
}

// PhotoResult is the envelope returned by single-photo lookups. Data is nil when not found.
type PhotoResult struct {
	Data   *Photo         `json:"data"`
	Config ResponseConfig `json:"config"`
}

// SourceConfig reports the configuration and availability of a photo source
type SourceConfig struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	IsAvailable bool                   `json:"isAvailable"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
