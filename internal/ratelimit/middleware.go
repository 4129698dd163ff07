package ratelimit

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/errors"
	"github.com/gin-gonic/gin"
)

func retrySeconds(r *Result) int {
	return max(int(math.Ceil(r.RetryAfter.Seconds())), 1)
}

func reject(c *gin.Context, result *Result) {
	seconds := strconv.Itoa(retrySeconds(result))
	c.Header("Retry-After", seconds)
	errors.Abort(c, errors.NewRateLimitError(seconds))
}

// IPRateLimitMiddleware limits requests per client IP per minute
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
			}
			reject(c, result)
			return
		}

		c.Next()
	}
}

// EndpointRateLimitMiddleware applies the configured per-minute limit of endpoint
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowEndpoint(c.Request.Context(), endpoint, ip)
		if err != nil {
			slog.Error("Endpoint rate limit check failed", "endpoint", endpoint, "ip", ip, "error", err)
			c.Next()
			return
		}
		if result.Limit == 0 {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Endpoint-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Endpoint-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitEndpoint(endpoint)
			}
			reject(c, result)
			return
		}

		c.Next()
	}
}
