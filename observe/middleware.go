package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/remotegate/result"
)

// CallFunc is the signature Middleware wraps.
type CallFunc func(ctx context.Context, meta CallMeta) error

// Middleware wraps remote calls with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe CallFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	now     func() time.Time
}

// NewMiddleware creates a Middleware. Nil components are replaced with
// no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics returns the metrics recorder used by the middleware.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the base logger used by the middleware.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap wraps fn with a span, call metrics and one log line per call.
func (m *Middleware) Wrap(fn CallFunc) CallFunc {
	return func(ctx context.Context, meta CallMeta) error {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := m.now()
		err := fn(ctx, meta)
		duration := m.now().Sub(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordCall(ctx, meta, duration, err)

		callLogger := m.logger.WithCall(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields,
				Field{Key: "error", Value: err.Error()},
				Field{Key: "error.kind", Value: result.KindOf(err).String()},
			)
			callLogger.Error(ctx, "remote call failed", fields...)
		} else {
			callLogger.Info(ctx, "remote call completed", fields...)
		}

		return err
	}
}

// Observe runs fn once under Wrap.
func (m *Middleware) Observe(ctx context.Context, meta CallMeta, fn func(ctx context.Context) error) error {
	return m.Wrap(func(ctx context.Context, _ CallMeta) error {
		return fn(ctx)
	})(ctx, meta)
}

// LimiterWaitHook returns a callback suitable for a rate limiter's OnWait
// field. Each wait is recorded in ratelimit.wait_ms and logged at debug.
func (m *Middleware) LimiterWaitHook() func(key string, wait time.Duration) {
	return func(key string, wait time.Duration) {
		ctx := context.Background()
		m.metrics.RecordLimiterWait(ctx, key, wait)
		m.logger.Debug(ctx, "rate limit wait",
			Field{Key: "ratelimit.key", Value: key},
			Field{Key: "wait_ms", Value: float64(wait.Milliseconds())},
		)
	}
}
