package resilience

import (
	"context"
	"sync"
	"time"
)

// Executor composes the resilience patterns around one logical upstream.
type Executor struct {
	rateLimiter    RateLimiter
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor. Without options it runs
// operations directly.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateLimiter gates every attempt on the limiter.
func WithRateLimiter(rl RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
	}
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithTimeout adds a per-attempt timeout to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// WithTimeoutConfig adds a per-attempt timeout with custom config.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// Execute runs op through the configured patterns, using key as the rate
// limit bucket.
//
// The execution order is:
// 1. Retry (if configured) - repeats whole attempts
// 2. Rate Limiter (if configured) - every attempt spends one token
// 3. Circuit Breaker (if configured) - rejects attempts to a failing upstream
// 4. Timeout (if configured) - bounds a single attempt
func (e *Executor) Execute(ctx context.Context, key string, op func(context.Context) error) error {
	execute := op

	// Wrap with timeout (innermost)
	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	if e.rateLimiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			if err := e.rateLimiter.Acquire(ctx, key); err != nil {
				return err
			}
			return inner(ctx)
		}
	}

	// Wrap with retry (outermost)
	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Run is the value-returning form of Executor.Execute.
func Run[T any](ctx context.Context, e *Executor, key string, op func(context.Context) (T, error)) (T, error) {
	var (
		mu    sync.Mutex
		value T
	)

	err := e.Execute(ctx, key, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		value = v
		mu.Unlock()
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	mu.Lock()
	defer mu.Unlock()
	return value, nil
}
