package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonwraymond/remotegate/result"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential doubles the delay each attempt with jitter.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the maximum delay between retries, including delays
	// requested by an upstream Retry-After hint.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds up to 25% randomness to delays.
	Jitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: Retryable
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs failed attempts with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = Retryable
	}

	return &Retry{config: config}
}

// Retryable is result.IsRetryable minus open-circuit rejections, which
// stay rejected until the breaker's reset timeout elapses.
func Retryable(err error) bool {
	return result.IsRetryable(err) && !errors.Is(err, ErrCircuitOpen)
}

// Execute runs op until it succeeds, fails with a non-retryable error, or
// attempts are exhausted. The last error is returned unchanged.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		// Canceled callers are never retried
		if ctx.Err() != nil {
			return err
		}

		if !r.config.RetryIf(err) {
			return err
		}

		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt, err)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

// delay returns the pause before the next attempt. An upstream rate limit
// hint raises the computed backoff but never beyond MaxDelay.
func (r *Retry) delay(attempt int, err error) time.Duration {
	delay := r.calculateDelay(attempt)

	var rlErr *result.Error
	if errors.As(err, &rlErr) && rlErr.Kind == result.KindRateLimit && rlErr.RetryAfter > delay {
		delay = rlErr.RetryAfter
	}
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

func (r *Retry) calculateDelay(attempt int) time.Duration {
	// Capped in float64, before conversion to Duration.
	var raw float64

	switch r.config.Strategy {
	case BackoffConstant:
		raw = float64(r.config.InitialDelay)

	case BackoffLinear:
		raw = float64(r.config.InitialDelay) * float64(attempt)

	case BackoffExponential:
		raw = float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	}

	delay := r.config.MaxDelay
	if raw < float64(r.config.MaxDelay) {
		delay = time.Duration(raw)
	}

	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		jitter := time.Duration(rand.Int64N(int64(delay / 4)))
		delay += jitter
	}

	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
