package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Timeout bounds one CheckAll run.
	// Default: 10s
	Timeout time.Duration

	// Now is the time source for report timestamps.
	// Default: time.Now
	Now func() time.Time
}

// Aggregator runs a set of checkers and combines their reports.
type Aggregator struct {
	config AggregatorConfig

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates an Aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Aggregator{
		config:   cfg,
		checkers: make(map[string]Checker),
	}
}

// Register adds c under c.Name(), replacing any checker of the same name.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := c.Name()
	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = c
}

// Unregister removes the checker registered under name.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	a.order = slices.DeleteFunc(a.order, func(n string) bool { return n == name })
}

// Names returns registered checker names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs the checker registered under name.
func (a *Aggregator) Check(ctx context.Context, name string) (Report, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Report{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return a.run(ctx, c), nil
}

// CheckAll runs every registered checker in parallel and returns their
// reports keyed by name. Checkers still running at the deadline are
// reported unhealthy with ErrCheckTimeout.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Report {
	a.mu.RLock()
	checkers := make(map[string]Checker, len(a.checkers))
	for name, c := range a.checkers {
		checkers[name] = c
	}
	a.mu.RUnlock()

	reports := make(map[string]Report, len(checkers))
	if len(checkers) == 0 {
		return reports
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := a.run(ctx, c)
			mu.Lock()
			reports[name] = r
			mu.Unlock()
		}()
	}
	wg.Wait()

	return reports
}

func (a *Aggregator) run(ctx context.Context, c Checker) Report {
	start := a.config.Now()
	ch := make(chan Report, 1)

	go func() {
		ch <- c.Check(ctx)
	}()

	var r Report
	select {
	case r = <-ch:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Checked = start
	r.Duration = a.config.Now().Sub(start)
	return r
}

// Overall folds reports into one status: unhealthy if any report is,
// otherwise degraded if any report is, otherwise healthy. No reports is
// healthy.
func Overall(reports map[string]Report) Status {
	status := StatusHealthy
	for _, r := range reports {
		if r.Status > status {
			status = r.Status
		}
	}
	return status
}
