package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"limitd/internal/models"
)

// RedisCounters is a Redis-backed fixed-window counter store. Counts are kept
// with atomic INCR and window expiry with EXPIRE, so multiple instances
// sharing one Redis enforce a single aggregate limit. Expiry is handled by
// Redis itself; no sweep goroutine is needed.
type RedisCounters struct {
	client *redis.Client
	prefix string
}

// NewRedisCounters connects to Redis and verifies the connection.
func NewRedisCounters(ctx context.Context, cfg models.RedisConfig) (*RedisCounters, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisCounters{client: client, prefix: "limitd:rl:"}, nil
}

// Incr implements CounterStore. The first increment of a window sets the key
// expiry; later increments read the remaining TTL for the reset time.
func (r *RedisCounters) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := time.Now()
	full := r.prefix + key

	n, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incr %s: %w", key, err)
	}

	if n == 1 {
		if err := r.client.Expire(ctx, full, window).Err(); err != nil {
			return int(n), now.Add(window), fmt.Errorf("expire %s: %w", key, err)
		}
		return int(n), now.Add(window), nil
	}

	ttl, err := r.client.PTTL(ctx, full).Result()
	if err != nil || ttl <= 0 {
		// Key without expiry (lost between INCR and EXPIRE); reset it.
		r.client.Expire(ctx, full, window)
		ttl = window
	}
	return int(n), now.Add(ttl), nil
}

// Close releases the Redis connection pool.
func (r *RedisCounters) Close() {
	r.client.Close()
}
