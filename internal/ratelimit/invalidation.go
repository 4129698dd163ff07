package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
)

// InvalidateIP resets every limit of an IP address, including its endpoint limits
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) error {
	keys := []string{ipKey(ip)}
	for endpoint := range rl.config.EndpointLimits {
		keys = append(keys, endpointKey(endpoint, ip))
	}

	rl.fallbackMutex.Lock()
	for _, key := range keys {
		delete(rl.fallbackLimiters, key)
	}
	rl.fallbackMutex.Unlock()

	if rl.redisLimiter != nil {
		for _, key := range keys {
			if err := rl.redisLimiter.Reset(ctx, key); err != nil {
				return fmt.Errorf("failed to reset %s: %w", key, err)
			}
		}
	}

	slog.Info("Invalidated IP rate limits", "ip", ip, "keys", len(keys))
	return nil
}

// GetKeyCount returns the number of in-memory limiters
func (rl *RateLimiter) GetKeyCount() int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()
	return len(rl.fallbackLimiters)
}
