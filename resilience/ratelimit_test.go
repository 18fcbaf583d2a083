package resilience

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func mustLimiter(t testing.TB, config RateLimiterConfig) *KeyedRateLimiter {
	t.Helper()
	rl, err := NewKeyedRateLimiter(config)
	if err != nil {
		t.Fatalf("NewKeyedRateLimiter() error = %v", err)
	}
	return rl
}

func TestNewKeyedRateLimiter_RejectsMisconfiguration(t *testing.T) {
	tests := []struct {
		name   string
		config RateLimiterConfig
		want   error
	}{
		{"zero capacity", RateLimiterConfig{Capacity: 0, RefillRate: 1}, ErrInvalidCapacity},
		{"negative capacity", RateLimiterConfig{Capacity: -1, RefillRate: 1}, ErrInvalidCapacity},
		{"nan capacity", RateLimiterConfig{Capacity: math.NaN(), RefillRate: 1}, ErrInvalidCapacity},
		{"zero rate", RateLimiterConfig{Capacity: 1, RefillRate: 0}, ErrInvalidRefillRate},
		{"negative rate", RateLimiterConfig{Capacity: 1, RefillRate: -5}, ErrInvalidRefillRate},
		{"infinite rate", RateLimiterConfig{Capacity: 1, RefillRate: math.Inf(1)}, ErrInvalidRefillRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, err := NewKeyedRateLimiter(tt.config)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewKeyedRateLimiter() error = %v, want %v", err, tt.want)
			}
			if rl != nil {
				t.Error("NewKeyedRateLimiter() returned a limiter on error")
			}
		})
	}
}

func TestNewKeyedRateLimiter_Defaults(t *testing.T) {
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 1, RefillRate: 1, MinWait: time.Millisecond})

	if rl.config.MinWait != MinWait {
		t.Errorf("MinWait = %v, want %v", rl.config.MinWait, MinWait)
	}
	if rl.config.Now == nil {
		t.Error("Now = nil, want time.Now")
	}
}

func TestKeyedRateLimiter_BurstAdmitsImmediately(t *testing.T) {
	clock := newFakeClock()
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 5, RefillRate: 1, Now: clock.Now})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := rl.Acquire(ctx, "api"); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i, err)
		}
	}

	if got := rl.Tokens("api"); got != 0 {
		t.Errorf("Tokens() = %v, want 0", got)
	}
}

func TestKeyedRateLimiter_ContinuousRefill(t *testing.T) {
	clock := newFakeClock()
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 4, RefillRate: 2, Now: clock.Now})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = rl.Acquire(ctx, "k")
	}

	clock.Advance(250 * time.Millisecond)
	if got := rl.Tokens("k"); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Tokens() after 250ms = %v, want 0.5", got)
	}

	clock.Advance(time.Hour)
	if got := rl.Tokens("k"); got != 4 {
		t.Errorf("Tokens() after long idle = %v, want capacity 4", got)
	}
}

func TestKeyedRateLimiter_WaitComputation(t *testing.T) {
	clock := newFakeClock()
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 1, RefillRate: 4, Now: clock.Now})

	if _, ok := rl.tryAcquire("k"); !ok {
		t.Fatal("first tryAcquire should admit")
	}

	wait, ok := rl.tryAcquire("k")
	if ok {
		t.Fatal("second tryAcquire should not admit")
	}
	if wait != 250*time.Millisecond {
		t.Errorf("wait = %v, want 250ms", wait)
	}

	clock.Advance(249 * time.Millisecond)
	wait, ok = rl.tryAcquire("k")
	if ok {
		t.Fatal("tryAcquire before refill should not admit")
	}
	if wait != MinWait {
		t.Errorf("wait = %v, want clamp to %v", wait, MinWait)
	}
}

func TestKeyedRateLimiter_TokenBounds(t *testing.T) {
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 3, RefillRate: 200})

	ctx := context.Background()
	var wg sync.WaitGroup
	var violations atomic.Int32

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if err := rl.Acquire(ctx, "k"); err != nil {
					t.Errorf("Acquire() error = %v", err)
					return
				}
				tokens := rl.Tokens("k")
				if tokens < 0 || tokens > 3 {
					violations.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if v := violations.Load(); v != 0 {
		t.Errorf("observed %d token counts outside [0, capacity]", v)
	}
}

func TestKeyedRateLimiter_AdmissionSerialization(t *testing.T) {
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 1, RefillRate: 1})

	ctx := context.Background()
	starts := make([]time.Time, 2)
	var wg sync.WaitGroup

	for i := range starts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = Execute(ctx, rl, "same", func(ctx context.Context) (struct{}, error) {
				starts[i] = time.Now()
				return struct{}{}, nil
			})
		}(i)
	}
	wg.Wait()

	gap := starts[0].Sub(starts[1])
	if gap < 0 {
		gap = -gap
	}
	if gap < 950*time.Millisecond {
		t.Errorf("operations started %v apart, want >= ~1s", gap)
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 1, RefillRate: 0.1})

	ctx := context.Background()
	if err := rl.Acquire(ctx, "a"); err != nil {
		t.Fatalf("Acquire(a) error = %v", err)
	}

	// "a" is now empty for ~10s; a waiter on "a" must not stall "b".
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = rl.Acquire(waitCtx, "a") }()

	start := time.Now()
	if err := rl.Acquire(ctx, "b"); err != nil {
		t.Fatalf("Acquire(b) error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Acquire(b) took %v while another key was waiting", elapsed)
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestKeyedRateLimiter_CancelWhileWaiting(t *testing.T) {
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 1, RefillRate: 0.5})

	ctx := context.Background()
	_ = rl.Acquire(ctx, "k")

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()

	err := rl.Acquire(waitCtx, "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want deadline exceeded", err)
	}

	tokens := rl.Tokens("k")
	if tokens < 0 || tokens >= 1 {
		t.Errorf("Tokens() after cancel = %v, want a partial refill in [0, 1)", tokens)
	}
}

func TestKeyedRateLimiter_CanceledBeforeAcquire(t *testing.T) {
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 1, RefillRate: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.Acquire(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want canceled", err)
	}
	if got := rl.Tokens("k"); got != 1 {
		t.Errorf("Tokens() = %v, want untouched capacity", got)
	}
}

func TestKeyedRateLimiter_EmptyKeyUsesDefault(t *testing.T) {
	clock := newFakeClock()
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 2, RefillRate: 1, Now: clock.Now})

	_ = rl.Acquire(context.Background(), "")
	if got := rl.Tokens(DefaultKey); got != 1 {
		t.Errorf("Tokens(default) = %v, want 1", got)
	}
}

func TestKeyedRateLimiter_OnWait(t *testing.T) {
	var waits atomic.Int32
	rl := mustLimiter(t, RateLimiterConfig{
		Capacity:   1,
		RefillRate: 50,
		OnWait: func(key string, wait time.Duration) {
			if key != "k" {
				t.Errorf("OnWait key = %q, want k", key)
			}
			waits.Add(1)
		},
	})

	ctx := context.Background()
	_ = rl.Acquire(ctx, "k")
	_ = rl.Acquire(ctx, "k")

	if waits.Load() == 0 {
		t.Error("OnWait was not called for a throttled acquire")
	}
}

func TestKeyedRateLimiter_IdleEviction(t *testing.T) {
	clock := newFakeClock()
	rl := mustLimiter(t, RateLimiterConfig{
		Capacity:   2,
		RefillRate: 1,
		IdleTTL:    time.Minute,
		Now:        clock.Now,
	})

	ctx := context.Background()
	_ = rl.Acquire(ctx, "idle")
	_ = rl.Acquire(ctx, "busy")

	clock.Advance(59 * time.Second)
	_ = rl.Acquire(ctx, "busy")

	clock.Advance(2 * time.Second)
	_ = rl.Acquire(ctx, "busy")

	if rl.Len() != 1 {
		t.Errorf("Len() = %d, want only the busy bucket", rl.Len())
	}
	if got := rl.Tokens("idle"); got != 2 {
		t.Errorf("Tokens(idle) = %v, want capacity", got)
	}
}

func TestKeyedRateLimiter_Reset(t *testing.T) {
	clock := newFakeClock()
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 1, RefillRate: 1, Now: clock.Now})

	_ = rl.Acquire(context.Background(), "k")
	rl.Reset("k")

	if got := rl.Tokens("k"); got != 1 {
		t.Errorf("Tokens() after Reset = %v, want 1", got)
	}
}

func TestExecute_PropagatesOperationError(t *testing.T) {
	clock := newFakeClock()
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 2, RefillRate: 1, Now: clock.Now})

	opErr := errors.New("upstream exploded")
	_, err := Execute(context.Background(), rl, "k", func(ctx context.Context) (int, error) {
		return 0, opErr
	})
	if err != opErr {
		t.Errorf("Execute() error = %v, want %v", err, opErr)
	}

	// Token is not refunded on failure
	if got := rl.Tokens("k"); got != 1 {
		t.Errorf("Tokens() = %v, want 1", got)
	}
}

func TestExecute_DoesNotRunWhenCanceled(t *testing.T) {
	ran := false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, NoOpRateLimiter{}, "k", func(ctx context.Context) (int, error) {
		ran = true
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want canceled", err)
	}
	if ran {
		t.Error("operation ran after cancellation")
	}
}

func TestNoOpRateLimiter_AdmitsImmediately(t *testing.T) {
	var rl NoOpRateLimiter
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if err := rl.Acquire(ctx, "k"); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("NoOp admission took %v", elapsed)
	}
}

func TestKeyedRateLimiter_EndToEndBurst(t *testing.T) {
	rl := mustLimiter(t, RateLimiterConfig{Capacity: 10, RefillRate: 10})
	ctx := context.Background()

	start := time.Now()
	for i := 1; i <= 15; i++ {
		_, err := Execute(ctx, rl, "api", func(ctx context.Context) (int, error) {
			return i, nil
		})
		if err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
		if i == 10 {
			if elapsed := time.Since(start); elapsed >= 50*time.Millisecond {
				t.Errorf("first 10 calls took %v, want < 50ms", elapsed)
			}
		}
	}

	total := time.Since(start)
	if total < 400*time.Millisecond || total > 600*time.Millisecond {
		t.Errorf("15 calls took %v, want 0.5s ± 100ms", total)
	}
}
