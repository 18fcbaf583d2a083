package remote

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/remotegate/cache"
	"github.com/jonwraymond/remotegate/observe"
	"github.com/jonwraymond/remotegate/resilience"
	"github.com/jonwraymond/remotegate/result"
)

// Fetcher is the call a Source guards. It performs one attempt against the
// remote collaborator and must honor ctx.
type Fetcher[T any] func(ctx context.Context) (T, error)

// SourceConfig configures a Source.
type SourceConfig struct {
	// Name identifies the source. It namespaces cache keys, is the default
	// rate limit key and labels telemetry. Required; must not contain ':'.
	Name string

	// TTL is how long successful values stay cached.
	// Default: cache.TTLDefault
	TTL time.Duration

	// Policy, when set, replaces TTL: DefaultTTL becomes the source TTL
	// and MaxTTL clamps per-call TTLs. A policy that does not cache
	// (cache.NoCachePolicy) makes every Fetch call upstream; concurrent
	// misses are still coalesced.
	// Default: nil (TTL with no maximum)
	Policy *cache.Policy
}

// Validate checks the configuration.
func (c SourceConfig) Validate() error {
	if c.Name == "" {
		return ErrMissingName
	}
	if strings.ContainsAny(c.Name, ":\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidName, c.Name)
	}
	return nil
}

// SourceOption configures a Source.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	limiter  resilience.RateLimiter
	limitKey string
	cache    any
	clone    any
	keyer    cache.Keyer
	retry    *resilience.Retry
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	mw       *observe.Middleware
}

// WithRateLimiter gates every attempt on rl. Without it attempts are
// admitted immediately.
func WithRateLimiter(rl resilience.RateLimiter) SourceOption {
	return func(o *sourceOptions) { o.limiter = rl }
}

// WithRateLimitKey sets the limiter bucket. Sources sharing a key share a
// budget. Default: the source name.
func WithRateLimitKey(key string) SourceOption {
	return func(o *sourceOptions) { o.limitKey = key }
}

// WithCache stores values in c instead of a private TTLCache. The cache
// may be shared between sources of the same T; keys are namespaced by
// source name.
func WithCache[T any](c cache.Cache[T]) SourceOption {
	return func(o *sourceOptions) { o.cache = c }
}

// WithClone gives every caller its own copy of a fetched value. Use it
// for values holding slices, maps or pointers. The private cache clones
// with fn as well; a cache passed to WithCache keeps its own setting.
func WithClone[T any](fn func(T) T) SourceOption {
	return func(o *sourceOptions) { o.clone = fn }
}

// WithKeyer derives FetchInput keys with k.
// Default: cache.DefaultKeyer
func WithKeyer(k cache.Keyer) SourceOption {
	return func(o *sourceOptions) { o.keyer = k }
}

// WithRetry retries failed attempts. Each retry spends a token.
func WithRetry(r *resilience.Retry) SourceOption {
	return func(o *sourceOptions) { o.retry = r }
}

// WithCircuitBreaker rejects attempts while the upstream is failing.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) SourceOption {
	return func(o *sourceOptions) { o.breaker = cb }
}

// WithTimeout bounds each attempt. A fired deadline fails the attempt
// with a timeout error.
func WithTimeout(d time.Duration) SourceOption {
	return func(o *sourceOptions) { o.timeout = d }
}

// WithObserver reports fetches through mw.
func WithObserver(mw *observe.Middleware) SourceOption {
	return func(o *sourceOptions) { o.mw = mw }
}

// Source is a read-through, rate-limited remote data source for values of
// type T.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Fetch honors cancellation while waiting for a token, between
//   retries and while waiting on a shared flight.
// - Errors: Fetch never panics and never returns a Loading result.
type Source[T any] struct {
	name     string
	ttl      time.Duration
	policy   cache.Policy
	limitKey string
	cache    cache.Cache[T]
	clone    func(T) T
	keyer    cache.Keyer
	exec     *resilience.Executor
	mw       *observe.Middleware
	group    singleflight.Group
	ns       *regexp.Regexp
}

// NewSource creates a Source. WithCache and WithClone must be given the
// source's T; another value type is a construction error.
func NewSource[T any](cfg SourceConfig, opts ...SourceOption) (*Source[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := sourceOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Source[T]{
		name:     cfg.Name,
		ttl:      cfg.TTL,
		limitKey: o.limitKey,
		keyer:    o.keyer,
		mw:       o.mw,
		ns:       cache.OperationPattern(cfg.Name),
	}
	if s.ttl <= 0 {
		s.ttl = cache.TTLDefault
	}
	if cfg.Policy != nil {
		s.policy = *cfg.Policy
		s.ttl = s.policy.DefaultTTL
	} else {
		s.policy = cache.Policy{DefaultTTL: s.ttl}
	}
	if s.keyer == nil {
		s.keyer = cache.NewDefaultKeyer()
	}
	if s.limitKey == "" {
		s.limitKey = cfg.Name
	}
	if s.mw == nil {
		s.mw = observe.NewMiddleware(nil, nil, nil)
	}

	switch fn := o.clone.(type) {
	case nil:
	case func(T) T:
		s.clone = fn
	default:
		return nil, fmt.Errorf("%w: source %q got %T", ErrCloneType, cfg.Name, o.clone)
	}

	switch c := o.cache.(type) {
	case nil:
		copts := []cache.Option[T]{cache.WithDefaultTTL[T](s.ttl)}
		if s.clone != nil {
			copts = append(copts, cache.WithClone(s.clone))
		}
		s.cache = cache.NewTTLCache[T](copts...)
	case cache.Cache[T]:
		s.cache = c
	default:
		return nil, fmt.Errorf("%w: source %q got %T", ErrCacheType, cfg.Name, o.cache)
	}

	var execOpts []resilience.ExecutorOption
	if o.limiter != nil {
		execOpts = append(execOpts, resilience.WithRateLimiter(o.limiter))
	}
	if o.retry != nil {
		execOpts = append(execOpts, resilience.WithRetry(o.retry))
	}
	if o.breaker != nil {
		execOpts = append(execOpts, resilience.WithCircuitBreaker(o.breaker))
	}
	if o.timeout > 0 {
		execOpts = append(execOpts, resilience.WithTimeout(o.timeout))
	}
	s.exec = resilience.NewExecutor(execOpts...)

	return s, nil
}

// Name returns the source name.
func (s *Source[T]) Name() string { return s.name }

// Fetch returns the value for key, from the cache when it holds a live
// entry and from call otherwise.
func (s *Source[T]) Fetch(ctx context.Context, key string, call Fetcher[T]) result.Result[T] {
	return s.FetchWithTTL(ctx, key, s.ttl, call)
}

// FetchWithTTL is Fetch with a per-call TTL for the written-back value.
// ttl <= 0 uses the source TTL; the policy's MaxTTL caps it. A key that
// fails cache.ValidateKey is rejected before any lookup or token spend.
func (s *Source[T]) FetchWithTTL(ctx context.Context, key string, ttl time.Duration, call Fetcher[T]) result.Result[T] {
	if call == nil {
		return result.Failure[T](result.Unknown(ErrNilCall))
	}
	ck := s.cacheKey(key)
	if err := s.validateKey(key, ck); err != nil {
		return result.Failure[T](result.Unknown(err))
	}
	ttl = s.policy.EffectiveTTL(ttl)
	caching := s.policy.ShouldCache()

	meta := observe.CallMeta{Source: s.name, Operation: "fetch"}

	if caching {
		if v, ok := s.cache.Get(ck); ok {
			s.mw.Metrics().RecordCacheLookup(ctx, meta, true)
			return result.Success(v)
		}
	}
	s.mw.Metrics().RecordCacheLookup(ctx, meta, false)

	ch := s.group.DoChan(ck, func() (any, error) {
		var value T
		err := s.mw.Observe(ctx, meta, func(ctx context.Context) error {
			v, err := resilience.Run(ctx, s.exec, s.limitKey, func(ctx context.Context) (T, error) {
				return result.SafeCall[T](ctx, call).Unwrap()
			})
			value = v
			return err
		})
		if err != nil {
			return nil, err
		}
		if caching {
			s.cache.Put(ck, value, ttl)
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return result.FromError[T](ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return result.FromError[T](res.Err)
		}
		return result.Success(s.own(ck, res, caching))
	}
}

// FetchInput fetches the value of operation called with input. The key
// is derived by the source's Keyer, so equal inputs share a cache entry.
func (s *Source[T]) FetchInput(ctx context.Context, operation string, input any, call Fetcher[T]) result.Result[T] {
	key, err := s.keyer.Key(operation, input)
	if err != nil {
		return result.Failure[T](result.Unknown(err))
	}
	return s.FetchWithTTL(ctx, key, 0, call)
}

// own returns the caller's copy of a flight's value. With a clone
// function every caller gets a clone. Otherwise a shared value is read
// back through the cache, which copies on Get when built WithClone.
func (s *Source[T]) own(ck string, res singleflight.Result, caching bool) T {
	v, _ := res.Val.(T)
	if s.clone != nil {
		return s.clone(v)
	}
	if !res.Shared {
		return v
	}
	if caching {
		if cached, ok := s.cache.Get(ck); ok {
			return cached
		}
	}
	return v
}

func (s *Source[T]) validateKey(key, ck string) error {
	err := cache.ValidateKey(key)
	if err == nil {
		err = cache.ValidateKey(ck)
	}
	if err != nil {
		return fmt.Errorf("remote: source %q: %w", s.name, err)
	}
	return nil
}

// Invalidate drops the cached value for key.
func (s *Source[T]) Invalidate(key string) {
	s.cache.Invalidate(s.cacheKey(key))
}

// InvalidateAll drops every value this source cached and reports how many
// were removed. Entries of other sources sharing the cache are kept.
func (s *Source[T]) InvalidateAll() int {
	return s.cache.InvalidatePattern(s.ns)
}

// InvalidateOperation drops every value FetchInput cached for operation
// and reports how many were removed.
func (s *Source[T]) InvalidateOperation(operation string) int {
	return s.cache.InvalidatePattern(cache.OperationPattern(s.cacheKey(operation)))
}

func (s *Source[T]) cacheKey(key string) string {
	return s.name + ":" + key
}
