package resilience

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultKey is the bucket used when Acquire is called with an empty key.
const DefaultKey = "default"

// MinWait is the shortest pause between admission attempts.
const MinWait = 10 * time.Millisecond

// RateLimiter admits operations per key.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Acquire must return ctx.Err() when canceled while waiting and
//   must not consume a token in that case.
// - Errors: Acquire never fails for a healthy limiter; it only delays.
type RateLimiter interface {
	// Acquire blocks until one token for key is available and consumes it.
	Acquire(ctx context.Context, key string) error
}

// Execute acquires a token for key and then runs op outside of any limiter
// lock. Errors from op are returned unchanged; the token is not refunded.
func Execute[T any](ctx context.Context, rl RateLimiter, key string, op func(context.Context) (T, error)) (T, error) {
	if err := rl.Acquire(ctx, key); err != nil {
		var zero T
		return zero, err
	}
	return op(ctx)
}

// RateLimiterConfig configures a KeyedRateLimiter.
type RateLimiterConfig struct {
	// Capacity is the maximum number of tokens per key. Required.
	Capacity float64

	// RefillRate is the number of tokens added per second. Required.
	RefillRate float64

	// MinWait is the minimum pause before re-checking a bucket.
	// Default: 10ms. Values below 10ms are raised to 10ms.
	MinWait time.Duration

	// IdleTTL evicts buckets unused for this long once they have refilled.
	// Default: 0 (buckets live as long as the limiter)
	IdleTTL time.Duration

	// Now is the time source.
	// Default: time.Now
	Now func() time.Time

	// OnWait is called each time a caller has to wait for a token.
	OnWait func(key string, wait time.Duration)
}

// Validate checks the configuration.
func (c RateLimiterConfig) Validate() error {
	if !(c.Capacity > 0) || math.IsInf(c.Capacity, 0) {
		return ErrInvalidCapacity
	}
	if !(c.RefillRate > 0) || math.IsInf(c.RefillRate, 0) {
		return ErrInvalidRefillRate
	}
	return nil
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	lastUsed   time.Time
}

// KeyedRateLimiter is an in-memory token bucket limiter with one bucket
// per key. The mutex guards bucket state only; it is released before any
// wait and is never held while an operation runs.
type KeyedRateLimiter struct {
	config RateLimiterConfig

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewKeyedRateLimiter creates a limiter. It fails when Capacity or
// RefillRate are not positive.
func NewKeyedRateLimiter(config RateLimiterConfig) (*KeyedRateLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Apply defaults
	if config.MinWait < MinWait {
		config.MinWait = MinWait
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &KeyedRateLimiter{
		config:    config,
		buckets:   make(map[string]*bucket),
		lastSweep: config.Now(),
	}, nil
}

// Acquire blocks until a token for key is available, then consumes it.
func (rl *KeyedRateLimiter) Acquire(ctx context.Context, key string) error {
	if key == "" {
		key = DefaultKey
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		// Check context first
		if err := ctx.Err(); err != nil {
			return err
		}

		wait, ok := rl.tryAcquire(key)
		if ok {
			return nil
		}

		if rl.config.OnWait != nil {
			rl.config.OnWait(key, wait)
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire consumes a token if one is available. Otherwise it returns how
// long to wait before trying again.
func (rl *KeyedRateLimiter) tryAcquire(key string) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.config.Now()
	rl.sweepLocked(now)

	b := rl.bucketLocked(key, now)
	rl.refillLocked(b, now)
	b.lastUsed = now

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		return 0, true
	}

	missing := 1.0 - b.tokens
	waitMillis := math.Ceil(missing / rl.config.RefillRate * 1000)
	wait := time.Duration(waitMillis) * time.Millisecond
	if wait < rl.config.MinWait {
		wait = rl.config.MinWait
	}
	return wait, false
}

func (rl *KeyedRateLimiter) bucketLocked(key string, now time.Time) *bucket {
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     rl.config.Capacity,
			lastRefill: now,
			lastUsed:   now,
		}
		rl.buckets[key] = b
	}
	return b
}

func (rl *KeyedRateLimiter) refillLocked(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.lastRefill = now

	b.tokens += elapsed.Seconds() * rl.config.RefillRate
	if b.tokens > rl.config.Capacity {
		b.tokens = rl.config.Capacity
	}
}

// sweepLocked drops idle buckets that are full again. A full idle bucket
// behaves exactly like a freshly created one.
func (rl *KeyedRateLimiter) sweepLocked(now time.Time) {
	ttl := rl.config.IdleTTL
	if ttl <= 0 || now.Sub(rl.lastSweep) < ttl {
		return
	}
	rl.lastSweep = now

	for key, b := range rl.buckets {
		if now.Sub(b.lastUsed) < ttl {
			continue
		}
		rl.refillLocked(b, now)
		if b.tokens >= rl.config.Capacity {
			delete(rl.buckets, key)
		}
	}
}

// Tokens returns the currently available tokens for key. Unknown keys
// report full capacity.
func (rl *KeyedRateLimiter) Tokens(key string) float64 {
	if key == "" {
		key = DefaultKey
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		return rl.config.Capacity
	}
	rl.refillLocked(b, rl.config.Now())
	return b.tokens
}

// Len returns the number of tracked buckets.
func (rl *KeyedRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Reset restores key's bucket to full capacity.
func (rl *KeyedRateLimiter) Reset(key string) {
	if key == "" {
		key = DefaultKey
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Config returns the limiter configuration.
func (rl *KeyedRateLimiter) Config() RateLimiterConfig {
	return rl.config
}

// NoOpRateLimiter admits every call immediately.
type NoOpRateLimiter struct{}

// Acquire returns immediately unless ctx is already done.
func (NoOpRateLimiter) Acquire(ctx context.Context, _ string) error {
	return ctx.Err()
}

var (
	_ RateLimiter = (*KeyedRateLimiter)(nil)
	_ RateLimiter = NoOpRateLimiter{}
)
