package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jonwraymond/remotegate/result"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means attempts flow normally.
	StateClosed State = iota
	// StateOpen means attempts are rejected without reaching the upstream.
	StateOpen
	// StateHalfOpen means a limited number of probe attempts are allowed.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the max probes allowed while half-open.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error counts against the upstream.
	// Default: UpstreamFailure
	IsFailure func(err error) bool

	// Now is the time source.
	// Default: time.Now
	Now func() time.Time
}

// UpstreamFailure reports whether err says the upstream itself is unhealthy:
// network and timeout failures and 5xx responses. Client errors, parse
// errors and throttling do not trip the breaker.
func UpstreamFailure(err error) bool {
	if err == nil {
		return false
	}
	e := result.Classify(err)
	switch e.Kind {
	case result.KindNetwork, result.KindTimeout:
		return !errors.Is(err, ErrCircuitOpen)
	case result.KindHTTP:
		return e.Code >= http.StatusInternalServerError
	default:
		return false
	}
}

// CircuitBreaker stops attempts to an upstream after repeated failures.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	halfOpenCount int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = UpstreamFailure
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs op unless the circuit is open. A rejected attempt returns a
// result.KindNetwork error wrapping ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset closes the circuit and clears failure counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	old := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCount = 0
	cb.notifyLocked(old, StateClosed)
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return result.Network("circuit breaker is open", ErrCircuitOpen)
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return result.Network("circuit breaker is probing", ErrCircuitOpen)
		}
		cb.halfOpenCount++
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Cancellation is no verdict: free the probe slot, keep state and failures.
	if errors.Is(err, context.Canceled) {
		if cb.state == StateHalfOpen && cb.halfOpenCount > 0 {
			cb.halfOpenCount--
		}
		return
	}

	failed := err != nil && cb.config.IsFailure(err)
	old := cb.state

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			break
		}
		cb.failures++
		cb.lastFailure = cb.config.Now()
		if cb.failures >= cb.config.MaxFailures {
			cb.state = StateOpen
		}

	case StateHalfOpen:
		if failed {
			cb.lastFailure = cb.config.Now()
			cb.state = StateOpen
		} else {
			cb.state = StateClosed
			cb.failures = 0
		}
		cb.halfOpenCount = 0
	}

	cb.notifyLocked(old, cb.state)
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
		cb.notifyLocked(StateOpen, StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) notifyLocked(from, to State) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// Metrics returns current circuit breaker statistics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:       cb.currentStateLocked(),
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	LastFailure time.Time
}
