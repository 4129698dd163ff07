package frontend

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/ZanzyTHEbar/dlm-gallery/internal/security"
	"github.com/gin-gonic/gin"
)

// apiPrefixes never fall back to the SPA
var apiPrefixes = []string{"/api/", "/health", "/metrics", "/cache/", "/pools/", "/swagger/", "/debug/"}

// New loads the embedded gallery and returns its NoRoute handler. columns is the
// default column count the gallery lays photos out in.
func New(columns int) (gin.HandlerFunc, error) {
	distFS, err := GetDistFS()
	if err != nil {
		return nil, err
	}
	tmpl, err := LoadIndexTemplate(distFS)
	if err != nil {
		return nil, err
	}
	return NewSPAHandler(distFS, tmpl, columns), nil
}

// NewSPAHandler serves static assets and falls back to index.html for client routes
func NewSPAHandler(distFS fs.FS, indexTemplate *template.Template, columns int) gin.HandlerFunc {
	fileServer := http.FileServer(http.FS(distFS))

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, prefix := range apiPrefixes {
			if strings.HasPrefix(path, prefix) {
				errors.Respond(c, errors.NewNotFoundError("Route", path))
				return
			}
		}

		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.AbortWithStatus(http.StatusMethodNotAllowed)
			return
		}

		if strings.HasPrefix(path, "/assets/") {
			c.Header("Cache-Control", "public, max-age=31536000, immutable")
			fileServer.ServeHTTP(c.Writer, c.Request)
			return
		}

		cleanPath := strings.TrimPrefix(path, "/")
		if cleanPath != "" && cleanPath != "index.html" {
			if info, err := fs.Stat(distFS, cleanPath); err == nil && !info.IsDir() {
				c.Header("Cache-Control", "public, max-age=3600")
				fileServer.ServeHTTP(c.Writer, c.Request)
				return
			}
		}

		nonce := security.GetNonce(c)
		if nonce == "" {
			var err error
			nonce, err = security.GenerateNonce()
			if err != nil {
				slog.Error("Failed to generate nonce", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
		}

		if err := RenderIndex(c, indexTemplate, page{Nonce: nonce, Columns: columns}); err != nil {
			slog.Error("Failed to render index.html", "error", err, "path", path)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to render page"})
		}
	}
}
