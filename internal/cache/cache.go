// Package cache implements the process-local freshness cache.
//
// An entry is fresh while now - storedAt < ttl. Stale entries are not evicted on
// read; the next Set for the key overwrites them.
package cache

import (
	"sync"
	"time"
)

// Entry wraps a cached value with the time it was stored and its time-to-live.
type Entry[T any] struct {
	Value    T
	StoredAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still within its TTL at now.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Cache is a TTL-on-read key/value store. Safe for concurrent use.
type Cache[T any] struct {
	mu       sync.RWMutex
	entries  map[string]Entry[T]
	capacity int // 0 = unbounded
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	capacity int
	now      func() time.Time
}

// WithCapacity bounds the number of keys. Inserting a new key into a full cache
// evicts the entry with the oldest StoredAt.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithClock replaces the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates an empty cache.
func New[T any](opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[T]{
		entries:  make(map[string]Entry[T]),
		capacity: o.capacity,
		now:      o.now,
	}
}

// Get returns the value for key if it is present and fresh.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !e.Fresh(c.now()) {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Set stores value under key with a fresh timestamp, replacing any existing entry.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.capacity > 0 && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = Entry[T]{
		Value:    value,
		StoredAt: c.now(),
		TTL:      ttl,
	}
}

// Peek returns the raw entry for key regardless of freshness.
func (c *Cache[T]) Peek(key string) (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Len returns the number of stored entries, fresh or stale.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[T]) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true

	for k, e := range c.entries {
		if first || e.StoredAt.Before(oldest) {
			oldestKey, oldest, first = k, e.StoredAt, false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
