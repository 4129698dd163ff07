package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const nonceKey = "csp-nonce"

// DefaultImageOrigins are the CDNs photo sources link to directly
var DefaultImageOrigins = []string{
	"https://lh3.googleusercontent.com",
	"https://loremflickr.com",
	"https://*.staticflickr.com",
}

// GenerateNonce returns 16 random bytes, base64url encoded
func GenerateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CSPMiddleware generates a nonce per request and sets the Content-Security-Policy
func (sm *SecurityMiddleware) CSPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := GenerateNonce()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.Set(nonceKey, nonce)

		policy := sm.policy(nonce)
		c.Header("Content-Security-Policy", policy)
		if sm.config.CSPReportURI != "" {
			c.Header("Content-Security-Policy-Report-Only", policy+"; report-uri "+sm.config.CSPReportURI)
		}

		c.Next()
	}
}

// GetNonce retrieves the nonce from the Gin context
func GetNonce(c *gin.Context) string {
	if nonce, ok := c.Get(nonceKey); ok {
		if s, ok := nonce.(string); ok {
			return s
		}
	}
	return ""
}

// policy lets the gallery load thumbnails from the image origins and its own proxy, nothing else
func (sm *SecurityMiddleware) policy(nonce string) string {
	images := append([]string{"'self'", "data:", "blob:"}, sm.config.ImageOrigins...)

	directives := [][2]string{
		{"default-src", "'self'"},
		{"script-src", "'self' 'nonce-" + nonce + "'"},
		{"style-src", "'self' 'nonce-" + nonce + "'"},
		{"img-src", strings.Join(images, " ")},
		{"connect-src", "'self'"},
		{"object-src", "'none'"},
		{"frame-ancestors", "'none'"},
		{"base-uri", "'self'"},
		{"form-action", "'self'"},
	}

	parts := make([]string, len(directives))
	for i, d := range directives {
		parts[i] = d[0] + " " + d[1]
	}
	return strings.Join(parts, "; ")
}
