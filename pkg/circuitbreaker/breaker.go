package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"injectionfilter/internal/config"
	"injectionfilter/pkg/metrics"
)

const (
	defaultMaxRequests  = 3
	defaultInterval     = time.Minute
	defaultTimeout      = 30 * time.Second
	defaultMinRequests  = 3
	defaultFailureRatio = 0.5
)

// ErrOpen is returned instead of calling through while the breaker is
// open or its half-open probe quota is used up.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker guards calls to one backend.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New returns a breaker named name, or nil when cfg disables it. Every
// method of Call accepts a nil *Breaker and calls straight through.
func New(name string, cfg config.CircuitBreakerConfig) *Breaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:         name,
		MaxRequests:  orDefault(cfg.MaxRequests, defaultMaxRequests),
		Interval:     orDefault(cfg.Interval, defaultInterval),
		Timeout:      orDefault(cfg.Timeout, defaultTimeout),
		ReadyToTrip:  FailureRatioTrip(orDefault(cfg.MinRequests, defaultMinRequests), orDefault(cfg.FailureRatio, defaultFailureRatio)),
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, stateValue(to))
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	metrics.SetCircuitBreakerState(name, stateValue(cb.State()))
	return &Breaker{cb: cb}
}

// FailureRatioTrip trips once at least minRequests were seen in the current
// interval and the failure ratio reached ratio.
func FailureRatioTrip(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 || counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// A cancelled caller says nothing about backend health.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Call runs fn through b. A context that is already done is returned
// without touching the breaker.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	metrics.IncCircuitBreakerRequest(b.cb.Name(), b.cb.State().String(), err)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, errors.Join(ErrOpen, err)
	}
	if err != nil {
		return zero, err
	}
	v, _ := result.(T)
	return v, nil
}

func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.cb.Name()
}

// State is "closed", "half-open" or "open", or "disabled" for a nil breaker.
func (b *Breaker) State() string {
	if b == nil {
		return "disabled"
	}
	return b.cb.State().String()
}

func (b *Breaker) IsOpen() bool {
	return b != nil && b.cb.State() == gobreaker.StateOpen
}

func (b *Breaker) Counts() gobreaker.Counts {
	if b == nil {
		return gobreaker.Counts{}
	}
	return b.cb.Counts()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
