package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus reports the limits that apply to the requesting IP
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoints := gin.H{}
		for name, limit := range rl.config.EndpointLimits {
			endpoints[name] = gin.H{"limit": limit, "period": "1 minute"}
		}

		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute": gin.H{
					"limit":  rl.config.IPLimitPerMin,
					"period": "1 minute",
				},
				"endpoints": endpoints,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// HandleRateLimitStats returns limiter and metric counters
func (rl *RateLimiter) HandleRateLimitStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"limiter_stats": rl.GetStats(),
			"timestamp":     time.Now().Format(time.RFC3339),
		}
		if rl.metrics != nil {
			response["metrics"] = rl.metrics.GetRateLimitStats()
		}
		c.JSON(http.StatusOK, response)
	}
}
