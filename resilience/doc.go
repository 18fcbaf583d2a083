// Package resilience provides admission control and failure handling for
// outbound calls.
//
// # Patterns
//
//   - Rate Limiter: a token bucket per key. Tokens refill continuously at
//     RefillRate up to Capacity; a caller without a token waits (without
//     holding any lock) until one is available. KeyedRateLimiter keeps
//     buckets in memory, RedisRateLimiter shares them across processes and
//     NoOpRateLimiter admits everything.
//
//   - Retry: re-runs attempts that failed with a retryable error, honoring
//     upstream Retry-After hints.
//
//   - Circuit Breaker: stops attempts to an upstream after repeated
//     network, timeout or 5xx failures.
//
//   - Timeout: bounds a single attempt.
//
// # Usage
//
//	rl, err := resilience.NewKeyedRateLimiter(resilience.RateLimiterConfig{
//	    Capacity:   10,
//	    RefillRate: 10, // tokens per second
//	})
//	if err != nil {
//	    return err
//	}
//
//	page, err := resilience.Execute(ctx, rl, "search", func(ctx context.Context) (Page, error) {
//	    return client.Search(ctx, query)
//	})
//
// The patterns compose through an Executor. Every attempt, including
// retries, spends a token because the quota models outbound attempts:
//
//	executor := resilience.NewExecutor(
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{})),
//	    resilience.WithRateLimiter(rl),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithTimeout(5*time.Second),
//	)
package resilience
