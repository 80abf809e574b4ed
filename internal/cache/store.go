package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
)

// Store is the result cache the calculation service talks to. The memory
// implementation ignores the context; the Redis one uses it for I/O.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, data T)
	Stats() Stats
}

// Key derives the cache key for a canonical request string.
func Key(canonical string) string {
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// memoryStore adapts an LRUCache to the Store interface.
type memoryStore[T any] struct {
	lru *LRUCache[T]
}

// NewMemoryStore creates an in-process Store backed by an LRU cache.
// The returned LRUCache can be registered with a Manager for cleanup.
func NewMemoryStore[T any](lru *LRUCache[T]) Store[T] {
	return &memoryStore[T]{lru: lru}
}

func (s *memoryStore[T]) Get(_ context.Context, key string) (T, bool) {
	return s.lru.Get(key)
}

func (s *memoryStore[T]) Set(_ context.Context, key string, data T) {
	s.lru.Set(key, data)
}

func (s *memoryStore[T]) Stats() Stats {
	return s.lru.Stats()
}
