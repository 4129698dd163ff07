package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares cached responses between instances. Redis errors are logged
// and treated as misses.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewRedisStore creates a store whose keys are prefixed with prefix
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		timeout: 250 * time.Millisecond,
	}
}

func (r *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := r.ctx()
	defer cancel()

	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, false
	}
	if err != nil {
		r.errors.Add(1)
		r.misses.Add(1)
		slog.Warn("Redis cache get failed", "error", err)
		return nil, false
	}
	r.hits.Add(1)
	return data, true
}

func (r *RedisStore) Set(key string, data []byte) {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		r.errors.Add(1)
		slog.Warn("Redis cache set failed", "error", err)
	}
}

func (r *RedisStore) Delete(key string) {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.errors.Add(1)
		slog.Warn("Redis cache delete failed", "error", err)
	}
}

func (r *RedisStore) Stats() map[string]interface{} {
	return map[string]interface{}{
		"backend":     "redis",
		"prefix":      r.prefix,
		"hits":        r.hits.Load(),
		"misses":      r.misses.Load(),
		"errors":      r.errors.Load(),
		"ttl_seconds": r.ttl.Seconds(),
	}
}
