package security

import (
	"github.com/gin-gonic/gin"
)

var staticHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), interest-cohort=()"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
}

// SecurityHeadersMiddleware adds the hardening headers. HSTS is sent over TLS or when forced by config.
func (sm *SecurityMiddleware) SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range staticHeaders {
			c.Header(h[0], h[1])
		}
		if sm.config.EnableHSTS || c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
