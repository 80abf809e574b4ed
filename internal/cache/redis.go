package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a shared Redis instance, for deployments
// with more than one API replica. Values are stored as JSON with a TTL.
type RedisStore[T any] struct {
	client *redis.Client
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore[T any](opts RedisOptions) *RedisStore[T] {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisStore[T]{
		client: client,
		ttl:    opts.TTL,
	}
}

// Ping verifies the connection, for readiness checks.
func (s *RedisStore[T]) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get retrieves and decodes a value. A Redis error counts as a miss: the
// caller recomputes, it never fails a request over a cold cache.
func (s *RedisStore[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		s.misses.Add(1)
		return zero, false
	}
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		s.misses.Add(1)
		return zero, false
	}
	s.hits.Add(1)
	return data, true
}

// Set encodes and stores a value with the configured TTL. Failures are
// swallowed for the same reason Get treats errors as misses.
func (s *RedisStore[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	s.client.Set(ctx, key, raw, s.ttl)
}

// Stats returns the hit/miss counters of this process. Size is not tracked
// for the shared backend.
func (s *RedisStore[T]) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}

// Close releases the underlying connection pool.
func (s *RedisStore[T]) Close() error {
	return s.client.Close()
}
