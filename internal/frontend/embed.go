package frontend

import (
	"embed"
	"io/fs"
)

// dist holds index.html and the gallery assets
//
//go:embed dist
var dist embed.FS

// GetDistFS returns the gallery files rooted at dist/
func GetDistFS() (fs.FS, error) {
	return fs.Sub(dist, "dist")
}
