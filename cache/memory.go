package cache

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Option configures a TTLCache.
type Option[V any] func(*TTLCache[V])

// WithDefaultTTL sets the TTL used when Put is given ttl <= 0.
func WithDefaultTTL[V any](ttl time.Duration) Option[V] {
	return func(c *TTLCache[V]) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *TTLCache[V]) {
		if now != nil {
			c.now = now
		}
	}
}

// WithClone copies values on Put and Get. Use it for values holding slices,
// maps or pointers so callers never share mutable state through the cache.
func WithClone[V any](clone func(V) V) Option[V] {
	return func(c *TTLCache[V]) {
		c.clone = clone
	}
}

// WithOnEvict registers a callback for entries dropped on expiry.
func WithOnEvict[V any](fn func(key string)) Option[V] {
	return func(c *TTLCache[V]) {
		c.onEvict = fn
	}
}

// TTLCache is an in-memory Cache. A single mutex guards the map for every
// read, expiry check and write; the callback set with WithOnEvict runs
// after the lock is released.
type TTLCache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	defaultTTL time.Duration
	now        func() time.Time
	clone      func(V) V
	onEvict    func(key string)
}

// NewTTLCache creates an empty cache. The default TTL is TTLDefault.
func NewTTLCache[V any](opts ...Option[V]) *TTLCache[V] {
	c := &TTLCache[V]{
		entries:    make(map[string]*entry[V]),
		defaultTTL: TTLDefault,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if present and unexpired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.mu.Unlock()
		if c.onEvict != nil {
			c.onEvict(key)
		}
		return zero, false
	}
	value := e.value
	c.mu.Unlock()

	if c.clone != nil {
		value = c.clone(value)
	}
	return value, true
}

// Put stores value under key, replacing any existing entry.
func (c *TTLCache[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if c.clone != nil {
		value = c.clone(value)
	}

	c.mu.Lock()
	c.entries[key] = &entry[V]{
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
	}
	c.mu.Unlock()
}

// Invalidate removes key.
func (c *TTLCache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll removes every entry.
func (c *TTLCache[V]) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	clear(c.entries)
	return n
}

// InvalidatePattern removes every entry whose key matches pattern. A nil
// pattern removes nothing.
func (c *TTLCache[V]) InvalidatePattern(pattern *regexp.Regexp) int {
	if pattern == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if pattern.MatchString(key) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// InvalidatePatternString compiles pattern and removes matching entries.
func (c *TTLCache[V]) InvalidatePatternString(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return c.InvalidatePattern(re), nil
}

// Len returns the number of stored entries, including expired entries
// that have not been read since they expired.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Ensure TTLCache implements Cache
var _ Cache[[]byte] = (*TTLCache[[]byte])(nil)
