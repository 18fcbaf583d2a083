package health

import (
	"context"
	"time"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component is usable but recovering.
	StatusDegraded
	// StatusUnhealthy indicates calls to the component will fail.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Report is the outcome of one health check.
type Report struct {
	Status   Status
	Message  string
	Details  map[string]any
	Duration time.Duration
	Checked  time.Time
	Err      error
}

// Healthy creates a healthy report.
func Healthy(message string) Report {
	return Report{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded report.
func Degraded(message string) Report {
	return Report{Status: StatusDegraded, Message: message}
}

// Unhealthy creates an unhealthy report.
func Unhealthy(message string, err error) Report {
	return Report{Status: StatusUnhealthy, Message: message, Err: err}
}

// WithDetails returns r with details attached.
func (r Report) WithDetails(details map[string]any) Report {
	r.Details = details
	return r
}

// Checker reports the health of one component.
//
// Contract:
// - Concurrency: Check may be called concurrently.
// - Context: Check must return promptly once ctx is done.
type Checker interface {
	Name() string
	Check(ctx context.Context) Report
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Report
}

// NewCheckerFunc creates a Checker named name that calls fn.
func NewCheckerFunc(name string, fn func(context.Context) Report) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Report { return f.fn(ctx) }

var _ Checker = (*CheckerFunc)(nil)
