package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exhaust(t *testing.T, rl *RateLimiter, endpoint, ip string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		var (
			result *Result
			err    error
		)
		if endpoint == "" {
			result, err = rl.AllowIP(ctx, ip)
		} else {
			result, err = rl.AllowEndpoint(ctx, endpoint, ip)
		}
		require.NoError(t, err)
		if !result.Allowed {
			return
		}
	}
	t.Fatalf("limit for %q %s never reached", endpoint, ip)
}

func TestInvalidateIP(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IPLimitPerMin = 2
	cfg.EndpointLimits = map[string]int{EndpointImage: 1}

	tests := []struct {
		name  string
		setup func(t *testing.T) *RateLimiter
	}{
		{
			name: "memory",
			setup: func(t *testing.T) *RateLimiter {
				rl, _ := newMemoryLimiter(t, cfg)
				return rl
			},
		},
		{
			name: "redis",
			setup: func(t *testing.T) *RateLimiter {
				rl, _, _ := newRedisLimiter(t, cfg)
				return rl
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := tt.setup(t)
			ctx := context.Background()

			exhaust(t, rl, "", "192.168.1.1")
			exhaust(t, rl, EndpointImage, "192.168.1.1")
			exhaust(t, rl, "", "192.168.1.2")

			require.NoError(t, rl.InvalidateIP(ctx, "192.168.1.1"))

			result, err := rl.AllowIP(ctx, "192.168.1.1")
			require.NoError(t, err)
			assert.True(t, result.Allowed)

			result, err = rl.AllowEndpoint(ctx, EndpointImage, "192.168.1.1")
			require.NoError(t, err)
			assert.True(t, result.Allowed)

			result, err = rl.AllowIP(ctx, "192.168.1.2")
			require.NoError(t, err)
			assert.False(t, result.Allowed, "other IPs keep their state")
		})
	}
}
