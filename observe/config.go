package observe

import (
	"fmt"
	"io"
	"slices"
	"time"
)

// Config selects what an Observer exports and where.
type Config struct {
	// ServiceName is the service.name resource attribute and the
	// instrumentation scope of the tracer and meter. Required.
	ServiceName string

	// Version is the service.version resource attribute.
	Version string

	// Attributes are extra resource attributes, such as
	// deployment.environment.
	Attributes map[string]string

	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool

	// Exporter is one of ValidTracingExporters.
	Exporter string

	// SamplePct is the share of root spans sampled, in [0.0, 1.0]. Child
	// spans follow their parent.
	SamplePct float64

	// BatchTimeout is the longest a finished span waits before export.
	// Default: 5s
	BatchTimeout time.Duration
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled bool

	// Exporter is one of ValidMetricsExporters.
	Exporter string
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Enabled bool

	// Level is one of ValidLogLevels.
	// Default: info
	Level string

	// Output receives log lines.
	// Default: os.Stderr
	Output io.Writer
}

// Validate checks the configuration. Disabled subsystems are not checked.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if c.Tracing.Enabled {
		if err := oneOf(c.Tracing.Exporter, ValidTracingExporters, ErrInvalidTracingExporter); err != nil {
			return err
		}
		if p := c.Tracing.SamplePct; p < MinSamplePct || p > MaxSamplePct {
			return fmt.Errorf("%w: got %v", ErrInvalidSamplePct, p)
		}
	}
	if c.Metrics.Enabled {
		if err := oneOf(c.Metrics.Exporter, ValidMetricsExporters, ErrInvalidMetricsExporter); err != nil {
			return err
		}
	}
	if c.Logging.Enabled {
		return oneOf(c.Logging.Level, ValidLogLevels, ErrInvalidLogLevel)
	}
	return nil
}

func oneOf(v string, allowed []string, sentinel error) error {
	if slices.Contains(allowed, v) {
		return nil
	}
	return fmt.Errorf("%w: %q", sentinel, v)
}
