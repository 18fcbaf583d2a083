package resilience

import "errors"

// Configuration errors.
var (
	// ErrInvalidCapacity is returned when a limiter capacity is not positive.
	ErrInvalidCapacity = errors.New("resilience: capacity must be positive")

	// ErrInvalidRefillRate is returned when a limiter refill rate is not positive.
	ErrInvalidRefillRate = errors.New("resilience: refill rate must be positive")

	// ErrNilClient is returned when a Redis limiter is built without a client.
	ErrNilClient = errors.New("resilience: redis client is nil")
)

// Runtime errors. These are wrapped in taxonomy errors by the patterns that
// produce them, so errors.Is and result.Classify both work.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrTimeout is returned when an attempt exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrUnexpectedReply is returned when Redis answers the token script
	// with an unexpected shape.
	ErrUnexpectedReply = errors.New("resilience: unexpected redis reply")
)
