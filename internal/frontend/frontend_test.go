package frontend

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessHTMLForNonce(t *testing.T) {
	out := addNonces(`<link rel="stylesheet" href="/a.css"><script src="/a.js"></script>`)
	assert.Contains(t, out, `<link nonce="{{.Nonce}}" rel="stylesheet" href="/a.css">`)
	assert.Contains(t, out, `<script nonce="{{.Nonce}}" src="/a.js">`)
}

func TestSPAHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler, err := New(4)
	require.NoError(t, err)

	sm := security.NewSecurityMiddleware(security.DefaultSecurityConfig())
	router := gin.New()
	router.Use(sm.CSPMiddleware())
	router.NoRoute(handler)

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	tests := []struct {
		name         string
		method       string
		path         string
		status       int
		contentType  string
		cacheControl string
		contains     string
	}{
		{"root renders index", http.MethodGet, "/", http.StatusOK, "text/html; charset=utf-8", "no-store", `data-columns="4"`},
		{"client route renders index", http.MethodGet, "/gallery/wildlife", http.StatusOK, "text/html; charset=utf-8", "no-store", "<script nonce="},
		{"asset", http.MethodGet, "/assets/gallery.js", http.StatusOK, "", "public, max-age=31536000, immutable", "render"},
		{"unknown api route", http.MethodGet, "/api/v1/nothing", http.StatusNotFound, "application/json; charset=utf-8", "", ""},
		{"post", http.MethodPost, "/somewhere", http.StatusMethodNotAllowed, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(tt.method, tt.path)
			assert.Equal(t, tt.status, w.Code)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			}
			if tt.cacheControl != "" {
				assert.Equal(t, tt.cacheControl, w.Header().Get("Cache-Control"))
			}
			if tt.contains != "" {
				assert.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}

	t.Run("nonce matches header", func(t *testing.T) {
		w := do(http.MethodGet, "/")
		body := w.Body.String()
		i := strings.Index(body, `nonce="`)
		require.GreaterOrEqual(t, i, 0)
		rest := body[i+len(`nonce="`):]
		value := rest[:strings.Index(rest, `"`)]
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "'nonce-"+value+"'")
	})
}
