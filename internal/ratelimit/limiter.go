// Package ratelimit limits API requests per client IP, in Redis when available and in
// memory otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/dlm-gallery/internal/monitoring"
	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"
)

// Endpoint names with their own limits
const (
	EndpointImage  = "image"
	EndpointSearch = "search"
)

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin int
	// EndpointLimits are per-minute limits per IP for expensive endpoints
	EndpointLimits  map[string]int
	BurstMultiplier int
	CleanupInterval time.Duration
	// IdleTimeout drops in-memory limiters not used for this long
	IdleTimeout time.Duration
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin: 120,
		EndpointLimits: map[string]int{
			EndpointImage:  60,
			EndpointSearch: 30,
		},
		BurstMultiplier: 1,
		CleanupInterval: 10 * time.Minute,
		IdleTimeout:     time.Hour,
	}
}

// Rate is a number of requests per period
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*fallbackEntry
	fallbackMutex    sync.Mutex

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter creates a rate limiter. A nil or disabled redisClient uses memory only.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	def := DefaultConfig()
	if config.IPLimitPerMin <= 0 {
		config.IPLimitPerMin = def.IPLimitPerMin
	}
	if config.EndpointLimits == nil {
		config.EndpointLimits = def.EndpointLimits
	}
	if config.BurstMultiplier <= 0 {
		config.BurstMultiplier = def.BurstMultiplier
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*fallbackEntry),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.stop)
		<-rl.done
	})
}

func ipKey(ip string) string {
	return fmt.Sprintf("ratelimit:ip:%s", ip)
}

func endpointKey(endpoint, ip string) string {
	return fmt.Sprintf("ratelimit:endpoint:%s:%s", endpoint, ip)
}

// AllowIP checks the per-minute limit of an IP address
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, ipKey(ip), Rate{Limit: rl.config.IPLimitPerMin, Period: time.Minute})
}

// AllowEndpoint checks the per-minute limit of an IP address on one endpoint.
// Endpoints without a configured limit are always allowed.
func (rl *RateLimiter) AllowEndpoint(ctx context.Context, endpoint, ip string) (*Result, error) {
	limit, ok := rl.config.EndpointLimits[endpoint]
	if !ok || limit <= 0 {
		return &Result{Allowed: true, Limit: 0, Remaining: 0, ResetAt: time.Now()}, nil
	}
	return rl.Allow(ctx, endpointKey(endpoint, ip), Rate{Limit: limit, Period: time.Minute})
}

// Allow checks key against r, in Redis when enabled and in memory otherwise or when
// Redis fails
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", r.Limit, r.Period)
	}

	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, r), nil
}

// allowRedis uses the GCRA limiter of redis_rate
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit * rl.config.BurstMultiplier,
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	retryAfter := res.RetryAfter
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: retryAfter,
	}, nil
}

// allowFallback uses an in-memory token bucket per key
func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := time.Now()
	burst := r.Limit * rl.config.BurstMultiplier

	rl.fallbackMutex.Lock()
	entry, exists := rl.fallbackLimiters[key]
	if !exists {
		entry = &fallbackEntry{limiter: rate.NewLimiter(rate.Limit(float64(r.Limit)/r.Period.Seconds()), burst)}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	limiter := entry.limiter
	rl.fallbackMutex.Unlock()

	result := &Result{
		Allowed: limiter.AllowN(now, 1),
		Limit:   r.Limit,
	}

	tokens := limiter.TokensAt(now)
	result.Remaining = max(int(tokens), 0)

	perToken := time.Duration(float64(r.Period) / float64(r.Limit))
	missing := float64(burst) - tokens
	result.ResetAt = now.Add(time.Duration(missing * float64(perToken)))

	if !result.Allowed {
		result.RetryAfter = time.Duration((1 - tokens) * float64(perToken))
		if result.RetryAfter <= 0 {
			result.RetryAfter = perToken
		}
	}

	return result
}

func (rl *RateLimiter) cleanupFallbackLimiters() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.removeIdle(now)
		}
	}
}

func (rl *RateLimiter) removeIdle(now time.Time) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key, entry := range rl.fallbackLimiters {
		if now.Sub(entry.lastSeen) > rl.config.IdleTimeout {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Removed idle fallback rate limiters", "count", removed)
	}
	return removed
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
		"ip_limit_per_min":  rl.config.IPLimitPerMin,
		"endpoint_limits":   rl.config.EndpointLimits,
	}
	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}
	return stats
}
