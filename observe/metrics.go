package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/remotegate/result"
)

// Metrics records remote-access metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one completed call with its duration and outcome.
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordCacheLookup records a cache lookup made on behalf of meta.
	RecordCacheLookup(ctx context.Context, meta CallMeta, hit bool)

	// RecordLimiterWait records time a caller spent waiting for a token.
	RecordLimiterWait(ctx context.Context, key string, wait time.Duration)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheLookups metric.Int64Counter
	limiterWait  metric.Float64Histogram
}

// NewMetrics creates the remote-access instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"remote.call.total",
		metric.WithDescription("Total number of remote calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"remote.call.errors",
		metric.WithDescription("Total number of failed remote calls by error kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"remote.call.duration_ms",
		metric.WithDescription("Remote call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"remote.cache.lookups",
		metric.WithDescription("Cache lookups made before remote calls"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	limiterWait, err := meter.Float64Histogram(
		"ratelimit.wait_ms",
		metric.WithDescription("Time spent waiting for a rate limit token"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheLookups: cacheLookups,
		limiterWait:  limiterWait,
	}, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)

	if err != nil {
		attrs := append(meta.attributes(), attribute.String("error.kind", result.KindOf(err).String()))
		m.errorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, meta CallMeta, hit bool) {
	attrs := append(meta.attributes(), attribute.Bool("cache.hit", hit))
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordLimiterWait(ctx context.Context, key string, wait time.Duration) {
	m.limiterWait.Record(ctx, float64(wait)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("ratelimit.key", key)))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordCall(context.Context, CallMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheLookup(context.Context, CallMeta, bool)         {}
func (noopMetrics) RecordLimiterWait(context.Context, string, time.Duration)  {}
