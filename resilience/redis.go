package resilience

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes one token atomically.
//
// KEYS[1] bucket hash
// ARGV[1] capacity, ARGV[2] refill rate (tokens/s), ARGV[3] now (seconds),
// ARGV[4] idle ttl (ms)
//
// Returns {admitted, tokens, wait_ms}.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * rate)
  ts = now
end

local admitted = 0
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
  admitted = 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(ts))
redis.call("PEXPIRE", KEYS[1], ttl)
return {admitted, tostring(tokens), wait}
`)

// RedisRateLimiterConfig configures a RedisRateLimiter.
type RedisRateLimiterConfig struct {
	// Capacity is the maximum number of tokens per key. Required.
	Capacity float64

	// RefillRate is the number of tokens added per second. Required.
	RefillRate float64

	// Prefix namespaces bucket keys in Redis.
	// Default: "ratelimit"
	Prefix string

	// MinWait is the minimum pause before re-checking a bucket.
	// Default: 10ms
	MinWait time.Duration

	// OnWait is called each time a caller has to wait for a token.
	OnWait func(key string, wait time.Duration)
}

// RedisRateLimiter is a token bucket shared by every process using the same
// Redis. Bucket state is refilled and consumed by a single Lua script so
// accounting per key stays serialized across processes.
type RedisRateLimiter struct {
	client redis.UniversalClient
	config RedisRateLimiterConfig
	now    func() time.Time
}

// NewRedisRateLimiter creates a Redis-backed limiter.
func NewRedisRateLimiter(client redis.UniversalClient, config RedisRateLimiterConfig) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if err := (RateLimiterConfig{Capacity: config.Capacity, RefillRate: config.RefillRate}).Validate(); err != nil {
		return nil, err
	}

	// Apply defaults
	if config.Prefix == "" {
		config.Prefix = "ratelimit"
	}
	if config.MinWait < MinWait {
		config.MinWait = MinWait
	}

	return &RedisRateLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}, nil
}

// Acquire blocks until a token for key is available, then consumes it.
// Redis failures are returned as-is.
func (rl *RedisRateLimiter) Acquire(ctx context.Context, key string) error {
	if key == "" {
		key = DefaultKey
	}

	for {
		wait, ok, err := rl.tryAcquire(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if wait < rl.config.MinWait {
			wait = rl.config.MinWait
		}
		if rl.config.OnWait != nil {
			rl.config.OnWait(key, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (rl *RedisRateLimiter) tryAcquire(ctx context.Context, key string) (time.Duration, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	now := float64(rl.now().UnixMicro()) / 1e6
	idle := time.Duration(rl.config.Capacity/rl.config.RefillRate*float64(time.Second)) + time.Minute

	reply, err := tokenBucketScript.Run(ctx, rl.client,
		[]string{rl.bucketKey(key)},
		rl.config.Capacity,
		rl.config.RefillRate,
		now,
		idle.Milliseconds(),
	).Slice()
	if err != nil {
		return 0, false, fmt.Errorf("resilience: token script: %w", err)
	}
	if len(reply) != 3 {
		return 0, false, ErrUnexpectedReply
	}

	admitted, ok := reply[0].(int64)
	if !ok {
		return 0, false, ErrUnexpectedReply
	}
	waitMillis, ok := reply[2].(int64)
	if !ok {
		return 0, false, ErrUnexpectedReply
	}

	return time.Duration(waitMillis) * time.Millisecond, admitted == 1, nil
}

// Tokens returns the stored token count for key without refilling it.
// Unknown keys report full capacity.
func (rl *RedisRateLimiter) Tokens(ctx context.Context, key string) (float64, error) {
	if key == "" {
		key = DefaultKey
	}
	val, err := rl.client.HGet(ctx, rl.bucketKey(key), "tokens").Result()
	if errors.Is(err, redis.Nil) {
		return rl.config.Capacity, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(val, 64)
}

// Reset deletes key's bucket so it starts full again.
func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		key = DefaultKey
	}
	return rl.client.Del(ctx, rl.bucketKey(key)).Err()
}

func (rl *RedisRateLimiter) bucketKey(key string) string {
	return rl.config.Prefix + ":" + key
}

var _ RateLimiter = (*RedisRateLimiter)(nil)
