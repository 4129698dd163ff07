package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

var (
	scriptTag     = regexp.MustCompile(`<script([^>]*)>`)
	stylesheetTag = regexp.MustCompile(`<link([^>]*rel=["']stylesheet["'][^>]*)>`)
)

// page is what index.html is rendered with
type page struct {
	Nonce   string
	Columns int
}

// LoadIndexTemplate parses index.html, adding nonce attributes to scripts and stylesheets
func LoadIndexTemplate(distFS fs.FS) (*template.Template, error) {
	raw, err := fs.ReadFile(distFS, "index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read index.html: %w", err)
	}

	tmpl, err := template.New("index").Parse(addNonces(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse index.html: %w", err)
	}
	return tmpl, nil
}

func addNonces(html string) string {
	html = scriptTag.ReplaceAllString(html, `<script nonce="{{.Nonce}}"$1>`)
	return stylesheetTag.ReplaceAllString(html, `<link nonce="{{.Nonce}}"$1>`)
}

// RenderIndex writes the gallery shell. The shell is never cached since the nonce changes per request.
func RenderIndex(c *gin.Context, tmpl *template.Template, p page) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("failed to render index.html: %w", err)
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	return nil
}
