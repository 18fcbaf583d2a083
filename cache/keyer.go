package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Keyer derives cache keys from a remote operation and its request input.
//
// Contract:
// - Determinism: same inputs must produce the same key, regardless of map
//   iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key returns the cache key for operation called with input.
	Key(operation string, input any) (string, error)
}

// DefaultKeyer generates SHA-256 based keys of the form
// <operation>:<first 16 hex chars of sha256(json(input))>.
//
// encoding/json writes map keys in sorted order, so map inputs hash the
// same regardless of insertion order.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
func (k *DefaultKeyer) Key(operation string, input any) (string, error) {
	if strings.TrimSpace(operation) == "" || strings.ContainsAny(operation, ":\n\r") {
		return "", fmt.Errorf("%w: operation %q", ErrInvalidKey, operation)
	}

	canonical, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("cache: failed to encode input: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return operation + ":" + hex.EncodeToString(sum[:8]), nil
}

// OperationPattern matches every key a DefaultKeyer produces for operation.
func OperationPattern(operation string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(operation) + ":")
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
