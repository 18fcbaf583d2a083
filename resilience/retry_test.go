package resilience

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonwraymond/remotegate/result"
)

func TestNewRetry(t *testing.T) {
	r := NewRetry(RetryConfig{})

	if r.config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", r.config.MaxAttempts)
	}
	if r.config.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", r.config.InitialDelay)
	}
	if r.config.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", r.config.MaxDelay)
	}
	if r.config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", r.config.Multiplier)
	}
	if r.config.RetryIf == nil {
		t.Error("RetryIf = nil, want Retryable")
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_SuccessOnRetry(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return result.Network("connection reset", nil)
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ExhaustedAttempts(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	attempts := 0
	lastErr := result.HTTP(503, "")
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return lastErr
	})

	if err != lastErr {
		t.Errorf("Execute() error = %v, want %v", err, lastErr)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_DefaultSkipsPermanentFailures(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	tests := []struct {
		name string
		err  error
	}{
		{"parse", result.Parse("bad payload", nil)},
		{"not found", result.HTTP(404, "")},
		{"unclassified", errors.New("selector mismatch")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			_ = r.Execute(context.Background(), func(ctx context.Context) error {
				attempts++
				return tt.err
			})
			if attempts != 1 {
				t.Errorf("attempts = %d, want 1", attempts)
			}
		})
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 10, InitialDelay: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Execute(ctx, func(ctx context.Context) error {
			attempts++
			return result.Timeout("slow upstream", nil)
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if result.KindOf(err) != result.KindTimeout {
			t.Errorf("Execute() error = %v, want last attempt error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Execute() did not return after cancellation")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_RetryIf(t *testing.T) {
	retryable := errors.New("retryable")
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		RetryIf: func(err error) bool {
			return errors.Is(err, retryable)
		},
	})

	attempts := 0
	_ = r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		return retryable
	})
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var calls []int
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			calls = append(calls, attempt)
		},
	})

	_ = r.Execute(context.Background(), func(ctx context.Context) error {
		return result.Network("down", nil)
	})

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", calls)
	}
}

func TestRetry_BackoffStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{"constant first", BackoffConstant, 1, 10 * time.Millisecond},
		{"constant third", BackoffConstant, 3, 10 * time.Millisecond},
		{"linear second", BackoffLinear, 2, 20 * time.Millisecond},
		{"linear third", BackoffLinear, 3, 30 * time.Millisecond},
		{"exponential first", BackoffExponential, 1, 10 * time.Millisecond},
		{"exponential third", BackoffExponential, 3, 40 * time.Millisecond},
		{"exponential capped", BackoffExponential, 10, 100 * time.Millisecond},
		{"exponential past Duration range", BackoffExponential, 200, 100 * time.Millisecond},
		{"exponential infinite", BackoffExponential, 5000, 100 * time.Millisecond},
		{"linear past Duration range", BackoffLinear, math.MaxInt, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{
				InitialDelay: 10 * time.Millisecond,
				MaxDelay:     100 * time.Millisecond,
				Strategy:     tt.strategy,
			})
			if got := r.calculateDelay(tt.attempt); got != tt.want {
				t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetry_JitterBounded(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: 100 * time.Millisecond, Strategy: BackoffConstant, Jitter: true})

	for i := 0; i < 50; i++ {
		got := r.calculateDelay(1)
		if got < 100*time.Millisecond || got >= 125*time.Millisecond {
			t.Fatalf("calculateDelay() = %v, want within [100ms, 125ms)", got)
		}
	}
}

func TestRetry_HonorsRetryAfterHint(t *testing.T) {
	r := NewRetry(RetryConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Strategy:     BackoffConstant,
	})

	if got := r.delay(1, result.RateLimited("slow down", 300*time.Millisecond)); got != 300*time.Millisecond {
		t.Errorf("delay() = %v, want retry-after 300ms", got)
	}
	if got := r.delay(1, result.RateLimited("slow down", time.Hour)); got != time.Second {
		t.Errorf("delay() = %v, want MaxDelay 1s", got)
	}
	if got := r.delay(1, result.Network("down", nil)); got != 10*time.Millisecond {
		t.Errorf("delay() = %v, want backoff 10ms", got)
	}
}

func TestRetry_Config(t *testing.T) {
	config := RetryConfig{MaxAttempts: 7, InitialDelay: time.Second}
	r := NewRetry(config)

	got := r.Config()
	if got.MaxAttempts != 7 || got.InitialDelay != time.Second {
		t.Errorf("Config() = %+v, want MaxAttempts 7 and InitialDelay 1s", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", result.Network("reset", nil), true},
		{"server error", result.HTTP(502, ""), true},
		{"not found", result.HTTP(404, ""), false},
		{"parse", result.Parse("bad json", nil), false},
		{"open circuit", result.Network("circuit breaker is open", ErrCircuitOpen), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
