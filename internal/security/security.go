package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SearchQueryKey is the context key holding the validated search query
const SearchQueryKey = "search_query"

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MinQueryLength int           `json:"min_query_length" yaml:"min_query_length"`
	MaxQueryLength int           `json:"max_query_length" yaml:"max_query_length"`
	AllowedOrigins []string      `json:"allowed_origins" yaml:"allowed_origins"`
	TrustedProxies []string      `json:"trusted_proxies" yaml:"trusted_proxies"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	EnableHSTS     bool          `json:"enable_hsts" yaml:"enable_hsts"`
	CSPReportURI   string        `json:"csp_report_uri" yaml:"csp_report_uri"`
	// ImageOrigins are added to img-src
	ImageOrigins []string `json:"image_origins" yaml:"image_origins"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MinQueryLength: 1,
		MaxQueryLength: 100,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"},
		TrustedProxies: []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout: 30 * time.Second,
		ImageOrigins:   DefaultImageOrigins,
	}
}

// SecurityMiddleware groups the request hardening handlers
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	def := DefaultSecurityConfig()
	if config.MinQueryLength <= 0 {
		config.MinQueryLength = def.MinQueryLength
	}
	if config.MaxQueryLength <= 0 {
		config.MaxQueryLength = def.MaxQueryLength
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if config.ImageOrigins == nil {
		config.ImageOrigins = def.ImageOrigins
	}
	return &SecurityMiddleware{config: config}
}

// Config returns the effective configuration
func (sm *SecurityMiddleware) Config() SecurityConfig {
	return sm.config
}

// ValidateQuery checks a search query after sanitizing
func (sm *SecurityMiddleware) ValidateQuery(query string) error {
	if strings.Contains(query, "\x00") {
		return fmt.Errorf("query contains invalid characters")
	}
	if !utf8.ValidString(query) {
		return fmt.Errorf("query contains invalid UTF-8 encoding")
	}

	n := utf8.RuneCountInString(query)
	if n < sm.config.MinQueryLength {
		return fmt.Errorf("query must be at least %d characters", sm.config.MinQueryLength)
	}
	if n > sm.config.MaxQueryLength {
		return fmt.Errorf("query exceeds maximum length of %d characters", sm.config.MaxQueryLength)
	}
	return nil
}

var (
	scriptPattern     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeInput strips markup and collapses whitespace
func (sm *SecurityMiddleware) SanitizeInput(input string) string {
	input = scriptPattern.ReplaceAllString(input, "")
	input = htmlTagPattern.ReplaceAllString(input, "")
	input = whitespacePattern.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateSearchRequest sanitizes and validates the q parameter and stores it under
// SearchQueryKey
func (sm *SecurityMiddleware) ValidateSearchRequest(c *gin.Context) {
	query := sm.SanitizeInput(c.Query("q"))
	if err := sm.ValidateQuery(query); err != nil {
		errors.Respond(c, errors.NewValidationError(err.Error(), "q"))
		c.Abort()
		return
	}

	c.Set(SearchQueryKey, query)
	c.Next()
}

// ValidateContentType rejects request bodies that are not JSON or forms
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if contentType == "" {
		c.Next()
		return
	}

	allowedTypes := []string{
		"application/json",
		"application/x-www-form-urlencoded",
		"multipart/form-data",
	}
	for _, allowed := range allowedTypes {
		if strings.Contains(contentType, allowed) {
			c.Next()
			return
		}
	}

	c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
		"error": "unsupported content type",
	})
}

// RequestTimeout bounds the request context
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// CORS returns the gin-contrib/cors handler for the allowed origins. "*" allows any origin.
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Cache-Control", "X-Requested-With"},
		ExposeHeaders: []string{"X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	if slices.Contains(sm.config.AllowedOrigins, "*") || len(sm.config.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = sm.config.AllowedOrigins
		cfg.AllowCredentials = true
	}

	return cors.New(cfg)
}
