package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/remotegate/result"
)

// countingLimiter records admissions.
type countingLimiter struct {
	acquired atomic.Int32
	lastKey  atomic.Value
}

func (l *countingLimiter) Acquire(ctx context.Context, key string) error {
	l.acquired.Add(1)
	l.lastKey.Store(key)
	return ctx.Err()
}

func TestExecutor_ExecuteNoPatterns(t *testing.T) {
	e := NewExecutor()

	executed := false
	err := e.Execute(context.Background(), "k", func(ctx context.Context) error {
		executed = true
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if !executed {
		t.Error("Operation was not executed")
	}
}

func TestExecutor_RateLimiterUsesKey(t *testing.T) {
	rl := &countingLimiter{}
	e := NewExecutor(WithRateLimiter(rl))

	_ = e.Execute(context.Background(), "search", func(ctx context.Context) error { return nil })

	if rl.acquired.Load() != 1 {
		t.Errorf("acquired = %d, want 1", rl.acquired.Load())
	}
	if got := rl.lastKey.Load(); got != "search" {
		t.Errorf("key = %v, want search", got)
	}
}

func TestExecutor_EveryAttemptSpendsToken(t *testing.T) {
	rl := &countingLimiter{}
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})),
		WithRateLimiter(rl),
	)

	attempts := 0
	err := e.Execute(context.Background(), "k", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return result.Network("reset", nil)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := rl.acquired.Load(); got != 3 {
		t.Errorf("acquired = %d, want one token per attempt (3)", got)
	}
}

func TestExecutor_ExecuteWithTimeout(t *testing.T) {
	e := NewExecutor(WithTimeout(10 * time.Millisecond))

	err := e.Execute(context.Background(), "k", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if result.KindOf(err) != result.KindTimeout {
		t.Errorf("Execute() error = %v, want timeout", err)
	}
}

func TestExecutor_ExecuteWithCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute})
	e := NewExecutor(WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		_ = e.Execute(context.Background(), "k", func(ctx context.Context) error {
			return result.HTTP(500, "")
		})
	}

	err := e.Execute(context.Background(), "k", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
}

func TestExecutor_LimiterCancellationSkipsOperation(t *testing.T) {
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 1, RefillRate: 0.01})
	e := NewExecutor(WithRateLimiter(rl))

	_ = e.Execute(context.Background(), "k", func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := e.Execute(ctx, "k", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want deadline exceeded", err)
	}
	if ran {
		t.Error("operation ran without admission")
	}
}

func TestRun_ReturnsValue(t *testing.T) {
	e := NewExecutor(
		WithRetry(NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})),
		WithTimeout(time.Second),
	)

	attempts := 0
	got, err := Run(context.Background(), e, "k", func(ctx context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", result.Timeout("slow", nil)
		}
		return "page", nil
	})

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "page" {
		t.Errorf("Run() = %q, want page", got)
	}
}

func TestRun_ErrorReturnsZero(t *testing.T) {
	e := NewExecutor()
	want := result.Parse("bad", nil)

	got, err := Run(context.Background(), e, "k", func(ctx context.Context) (int, error) {
		return 7, want
	})
	if err != want {
		t.Errorf("Run() error = %v, want %v", err, want)
	}
	if got != 0 {
		t.Errorf("Run() = %d, want zero value", got)
	}
}

func TestWithTimeoutConfig(t *testing.T) {
	to := NewTimeout(TimeoutConfig{Timeout: 5 * time.Second})
	e := NewExecutor(WithTimeoutConfig(to))

	if e.timeout != to {
		t.Error("WithTimeoutConfig did not set the timeout")
	}
}
