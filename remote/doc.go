// Package remote composes the rate limiter, the TTL cache and the
// result pipeline into a read-through remote data source.
//
// A Source[T] answers Fetch from its cache when it can. On a miss it runs
// the caller's call through the attempt chain (retry, rate limiter,
// circuit breaker, per-attempt timeout, SafeCall) and writes a successful
// value back with the source TTL. Failures are returned as
// result.Result[T] errors and are never cached. Concurrent misses for the
// same key share one flight; each caller gets its own copy of the value
// when the source or its cache clones. FetchInput keys a call by its
// request input through a cache.Keyer.
//
// The HTTP boundary (HTTPGetter, GetJSON) turns responses into values or
// taxonomy errors so the chain can decide what to retry.
package remote
