package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSecurityConfig(t *testing.T) {
	config := DefaultSecurityConfig()

	assert.Equal(t, 1, config.MinQueryLength)
	assert.Equal(t, 100, config.MaxQueryLength)
	assert.Contains(t, config.AllowedOrigins, "http://localhost:5173")
	assert.Equal(t, 30*time.Second, config.RequestTimeout)

	sm := NewSecurityMiddleware(SecurityConfig{})
	assert.Equal(t, 100, sm.Config().MaxQueryLength)
	assert.Equal(t, 30*time.Second, sm.Config().RequestTimeout)
}

func TestValidateQuery(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "single character", input: "a"},
		{name: "exactly max length", input: strings.Repeat("a", 100)},
		{name: "multibyte counts runes", input: strings.Repeat("é", 100)},
		{name: "empty", input: "", errorMsg: "at least 1"},
		{name: "too long", input: strings.Repeat("a", 101), errorMsg: "maximum length"},
		{name: "null byte", input: "sun\x00set", errorMsg: "invalid characters"},
		{name: "invalid UTF-8", input: "sun\xff\xfeset", errorMsg: "invalid UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateQuery(tt.input)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	tests := []struct {
		input    string
		expected string
	}{
		{"  mountain lake  ", "mountain lake"},
		{"<b>bold</b> bird", "bold bird"},
		{"<script>alert('x')</script>owl", "owl"},
		{"tall\n\t  tower", "tall tower"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sm.SanitizeInput(tt.input))
		})
	}
}

func TestValidateSearchRequest(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	router := gin.New()
	router.GET("/search", sm.ValidateSearchRequest, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(SearchQueryKey))
	})

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"valid", "?q=sunset", http.StatusOK, "sunset"},
		{"sanitized", "?q=%3Cb%3Eowl%3C%2Fb%3E", http.StatusOK, "owl"},
		{"missing", "", http.StatusBadRequest, ""},
		{"only markup", "?q=%3Cb%3E%3C%2Fb%3E", http.StatusBadRequest, ""},
		{"too long", "?q=" + strings.Repeat("x", 101), http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search"+tt.query, nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name string
		hsts bool
	}{
		{"without hsts", false},
		{"with hsts", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewSecurityMiddleware(SecurityConfig{EnableHSTS: tt.hsts})
			router := gin.New()
			router.Use(sm.SecurityHeadersMiddleware())
			router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
			assert.Equal(t, "same-origin", w.Header().Get("Cross-Origin-Opener-Policy"))
			assert.Equal(t, tt.hsts, w.Header().Get("Strict-Transport-Security") != "")
		})
	}
}

func TestCSPImageOrigins(t *testing.T) {
	sm := NewSecurityMiddleware(SecurityConfig{ImageOrigins: []string{"https://cdn.example"}})
	policy := sm.policy("abc")

	assert.Contains(t, policy, "img-src 'self' data: blob: https://cdn.example;")
	assert.NotContains(t, policy, "loremflickr")
	assert.Contains(t, policy, "script-src 'self' 'nonce-abc'")
	assert.Contains(t, policy, "object-src 'none'")
}

func TestCSPMiddleware(t *testing.T) {
	sm := NewSecurityMiddleware(SecurityConfig{CSPReportURI: "/csp-report"})

	var seen []string
	router := gin.New()
	router.Use(sm.CSPMiddleware())
	router.GET("/", func(c *gin.Context) {
		seen = append(seen, GetNonce(c))
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		policy := w.Header().Get("Content-Security-Policy")
		assert.Contains(t, policy, "'nonce-"+seen[i]+"'")
		assert.Contains(t, policy, "img-src 'self' data: blob: https://lh3.googleusercontent.com https://loremflickr.com")
		assert.NotContains(t, policy, "unsafe-inline")
		assert.Contains(t, w.Header().Get("Content-Security-Policy-Report-Only"), "report-uri /csp-report")
	}

	require.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0])
	assert.NotEqual(t, seen[0], seen[1])
}

func TestValidateContentType(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())
	router := gin.New()
	router.POST("/rescan", sm.ValidateContentType, func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		contentType string
		status      int
	}{
		{"", http.StatusOK},
		{"application/json", http.StatusOK},
		{"application/json; charset=utf-8", http.StatusOK},
		{"text/plain", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/rescan", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		allowed string
	}{
		{"listed origin", []string{"https://gallery.example"}, "https://gallery.example", "https://gallery.example"},
		{"unlisted origin", []string{"https://gallery.example"}, "https://evil.example", ""},
		{"wildcard", []string{"*"}, "https://any.example", "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewSecurityMiddleware(SecurityConfig{AllowedOrigins: tt.origins})
			router := gin.New()
			router.Use(sm.CORS())
			router.GET("/api/v1/photos", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/api/v1/photos", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.allowed, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	t.Run("preflight", func(t *testing.T) {
		sm := NewSecurityMiddleware(SecurityConfig{AllowedOrigins: []string{"https://gallery.example"}})
		router := gin.New()
		router.Use(sm.CORS())
		router.GET("/api/v1/photos", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/photos", nil)
		req.Header.Set("Origin", "https://gallery.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
	})
}

func TestRequestTimeout(t *testing.T) {
	sm := NewSecurityMiddleware(SecurityConfig{RequestTimeout: 2 * time.Second})

	router := gin.New()
	router.Use(sm.RequestTimeout)
	router.GET("/", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "2", w.Header().Get("X-Timeout"))
}
