package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/remotegate/resilience"
)

// BreakerChecker reports the state of a circuit breaker guarding an
// upstream.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker for cb.
func NewBreakerChecker(name string, cb *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: cb}
}

func (c *BreakerChecker) Name() string { return c.name }

// Check maps closed to healthy, half-open to degraded and open to unhealthy.
func (c *BreakerChecker) Check(ctx context.Context) Report {
	m := c.breaker.Metrics()
	details := map[string]any{
		"state":    m.State.String(),
		"failures": m.Failures,
	}
	if !m.LastFailure.IsZero() {
		details["last_failure"] = m.LastFailure
	}

	var r Report
	switch m.State {
	case resilience.StateClosed:
		r = Healthy("circuit closed")
	case resilience.StateHalfOpen:
		r = Degraded("circuit half-open, probing upstream")
	default:
		r = Unhealthy("circuit open", resilience.ErrCircuitOpen)
	}
	return r.WithDetails(details)
}

// RedisChecker pings the Redis server behind a distributed rate limiter.
type RedisChecker struct {
	name   string
	client redis.UniversalClient
}

// NewRedisChecker creates a checker for client.
func NewRedisChecker(name string, client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{name: name, client: client}
}

func (c *RedisChecker) Name() string { return c.name }

// Check is unhealthy when PING fails.
func (c *RedisChecker) Check(ctx context.Context) Report {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return Unhealthy(fmt.Sprintf("redis ping failed: %v", err), err)
	}
	return Healthy("redis reachable")
}

var (
	_ Checker = (*BreakerChecker)(nil)
	_ Checker = (*RedisChecker)(nil)
)
