package cache

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey     = errors.New("cache: key is invalid")
	ErrKeyTooLong     = errors.New("cache: key exceeds max length")
	ErrInvalidPattern = errors.New("cache: pattern is invalid")
)

// Cache stores values of one type with a per-entry TTL.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Expiry: Get must never return an expired value.
// - Errors: Get never errors; it returns (zero, false) on miss.
type Cache[V any] interface {
	// Get returns the value for key if present and unexpired. An expired
	// entry is evicted.
	Get(key string) (V, bool)

	// Put stores value under key, replacing any existing entry. A ttl of
	// zero or less uses the cache default.
	Put(key string, value V, ttl time.Duration)

	// Invalidate removes key. Idempotent.
	Invalidate(key string)

	// InvalidateAll removes every entry and returns how many were removed.
	InvalidateAll() int

	// InvalidatePattern removes every entry whose key matches pattern and
	// returns how many were removed.
	InvalidatePattern(pattern *regexp.Regexp) int
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
