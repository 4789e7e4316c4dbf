package health

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const defaultCheckTimeout = 5 * time.Second

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

// CheckFunc adapts a probe function to a named Checker.
type CheckFunc func(ctx context.Context) error

type funcChecker struct {
	name string
	fn   CheckFunc
}

func (c funcChecker) Name() string                    { return c.name }
func (c funcChecker) Check(ctx context.Context) error { return c.fn(ctx) }

func NewChecker(name string, fn CheckFunc) Checker {
	return funcChecker{name: name, fn: fn}
}

type Health struct {
	Status    Status                 `json:"status" yaml:"status"`
	Timestamp time.Time              `json:"timestamp" yaml:"timestamp"`
	Checks    map[string]CheckResult `json:"checks" yaml:"checks"`
}

type CheckResult struct {
	Status    Status        `json:"status" yaml:"status"`
	Message   string        `json:"message,omitempty" yaml:"message,omitempty"`
	Optional  bool          `json:"optional,omitempty" yaml:"optional,omitempty"`
	Latency   time.Duration `json:"latency" yaml:"latency"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
}

type registration struct {
	checker  Checker
	optional bool
}

// CheckerRegistry runs a set of checks, each bounded by its own timeout.
type CheckerRegistry struct {
	checkers []registration
	timeout  time.Duration
}

// NewCheckerRegistry gives every check timeout to finish, or five seconds
// when timeout is zero.
func NewCheckerRegistry(timeout time.Duration) *CheckerRegistry {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &CheckerRegistry{timeout: timeout}
}

// Register adds a checker whose failure makes the overall status unhealthy.
func (r *CheckerRegistry) Register(checkers ...Checker) {
	for _, c := range checkers {
		r.checkers = append(r.checkers, registration{checker: c})
	}
}

// RegisterOptional adds a checker whose failure only degrades the overall
// status.
func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.checkers = append(r.checkers, registration{checker: checker, optional: true})
}

func (r *CheckerRegistry) Names() []string {
	names := make([]string, 0, len(r.checkers))
	for _, reg := range r.checkers {
		names = append(names, reg.checker.Name())
	}
	sort.Strings(names)
	return names
}

// Check runs every checker concurrently and folds the results: any
// required failure is unhealthy, an optional failure only degraded.
func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make([]CheckResult, len(r.checkers))

	var g errgroup.Group
	for i, reg := range r.checkers {
		g.Go(func() error {
			results[i] = r.run(ctx, reg)
			return nil
		})
	}
	_ = g.Wait()

	h := Health{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(results)),
	}
	for i, result := range results {
		h.Checks[r.checkers[i].checker.Name()] = result
		switch {
		case result.Status == StatusHealthy:
		case !result.Optional:
			h.Status = StatusUnhealthy
		case h.Status == StatusHealthy:
			h.Status = StatusDegraded
		}
	}
	return h
}

func (r *CheckerRegistry) run(ctx context.Context, reg registration) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := reg.checker.Check(ctx)
	result := CheckResult{
		Status:    StatusHealthy,
		Optional:  reg.optional,
		Latency:   time.Since(start),
		Timestamp: time.Now(),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
