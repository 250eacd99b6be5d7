package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares fixed-window counters across processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed counter store. All keys are
// namespaced under the given prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

// Incr counts one hit; the first hit of a window arms the TTL.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := s.key(key)
	count, err := s.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, full, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Get reports the current count and remaining TTL for the window.
func (s *RedisStore) Get(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	full := s.key(key)
	count, err := s.client.Get(ctx, full).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	ttl, err := s.client.PTTL(ctx, full).Result()
	if err != nil {
		return count, window, err
	}
	if ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}
