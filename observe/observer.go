package observe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/remotegate/observe/exporters"
)

const defaultBatchTimeout = 5 * time.Second

// Observer hands out the telemetry primitives a Middleware is built from.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Shutdown honors ctx's deadline while flushing.
// - Errors: Shutdown is idempotent; later calls return the first result.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger

	// Shutdown flushes pending telemetry and stops the providers.
	Shutdown(ctx context.Context) error
}

// ObserverOption adjusts how NewObserver builds its providers.
type ObserverOption func(*observerOptions)

type observerOptions struct {
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
	local        bool
}

// WithSpanExporter sends spans to exp instead of the exporter named by
// TracingConfig.Exporter. Tracing must still be enabled.
func WithSpanExporter(exp sdktrace.SpanExporter) ObserverOption {
	return func(o *observerOptions) { o.spanExporter = exp }
}

// WithMetricReader collects metrics through r instead of the exporter
// named by MetricsConfig.Exporter. Metrics must still be enabled.
func WithMetricReader(r sdkmetric.Reader) ObserverOption {
	return func(o *observerOptions) { o.metricReader = r }
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() ObserverOption {
	return func(o *observerOptions) { o.local = true }
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	stops []func(context.Context) error

	once    sync.Once
	stopErr error
}

// NewObserver builds an Observer from cfg. Disabled subsystems get no-op
// primitives, so callers never check for nil. Unless WithoutGlobal is
// given, enabled providers are installed as the otel globals.
func NewObserver(ctx context.Context, cfg Config, opts ...ObserverOption) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o observerOptions
	for _, opt := range opts {
		opt(&o)
	}

	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	obs := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  noop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		tp, err := tracerProvider(ctx, cfg.Tracing, res, o.spanExporter)
		if err != nil {
			return nil, fmt.Errorf("observe: tracing: %w", err)
		}
		if !o.local {
			otel.SetTracerProvider(tp)
		}
		obs.tracer = tp.Tracer(cfg.ServiceName)
		obs.stops = append(obs.stops, tp.Shutdown)
	}

	if cfg.Metrics.Enabled {
		mp, err := meterProvider(ctx, cfg.Metrics, res, o.metricReader)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics: %w", err)
		}
		if !o.local {
			otel.SetMeterProvider(mp)
		}
		obs.meter = mp.Meter(cfg.ServiceName)
		obs.stops = append(obs.stops, mp.Shutdown)
	}

	switch {
	case !cfg.Logging.Enabled:
	case cfg.Logging.Output != nil:
		obs.logger = NewLoggerWithWriter(cfg.Logging.Level, cfg.Logging.Output)
	default:
		obs.logger = NewLogger(cfg.Logging.Level)
	}

	return obs, nil
}

func serviceResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	}
	keys := make([]string, 0, len(cfg.Attributes))
	for k := range cfg.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, cfg.Attributes[k]))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

func tracerProvider(ctx context.Context, cfg TracingConfig, res *resource.Resource, exp sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	if exp == nil {
		var err error
		if exp, err = exporters.NewTracingExporter(ctx, cfg.Exporter); err != nil {
			return nil, err
		}
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(rootSampler(cfg.SamplePct))),
	}
	if exp != nil {
		timeout := cfg.BatchTimeout
		if timeout <= 0 {
			timeout = defaultBatchTimeout
		}
		opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(timeout)))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func rootSampler(pct float64) sdktrace.Sampler {
	switch {
	case pct >= MaxSamplePct:
		return sdktrace.AlwaysSample()
	case pct <= MinSamplePct:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(pct)
	}
}

func meterProvider(ctx context.Context, cfg MetricsConfig, res *resource.Resource, reader sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	if reader == nil {
		var err error
		if reader, err = exporters.NewMetricsReader(ctx, cfg.Exporter); err != nil {
			return nil, err
		}
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }

func (o *observer) Meter() metric.Meter { return o.meter }

func (o *observer) Logger() Logger { return o.logger }

// Shutdown stops providers in reverse start order.
func (o *observer) Shutdown(ctx context.Context) error {
	o.once.Do(func() {
		var errs []error
		for _, stop := range slices.Backward(o.stops) {
			if err := stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		o.stopErr = errors.Join(errs...)
	})
	return o.stopErr
}

var _ Observer = (*observer)(nil)
