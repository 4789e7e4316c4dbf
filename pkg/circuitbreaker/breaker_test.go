package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"injectionfilter/internal/config"
	"injectionfilter/pkg/metrics"
)

func enabled() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
}

func TestCall_TripsOnFailureRatio(t *testing.T) {
	b := New("test-trip", enabled())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), b, func(context.Context) (int, error) {
			return 0, boom
		})
		require.ErrorIs(t, err, boom)
	}

	assert.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-trip")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CircuitBreakerFailures.WithLabelValues("test-trip")))

	called := false
	_, err := Call(context.Background(), b, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
}

func TestCall_CancellationDoesNotCount(t *testing.T) {
	b := New("test-cancel", enabled())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Call(ctx, b, func(context.Context) (int, error) {
		t.Fatal("must not run")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	for i := 0; i < 4; i++ {
		_, _ = Call(context.Background(), b, func(context.Context) (int, error) {
			return 0, context.Canceled
		})
	}
	assert.False(t, b.IsOpen())
	assert.Equal(t, uint32(4), b.Counts().TotalSuccesses)
}

func TestCall_PassesResult(t *testing.T) {
	b := New("test-result", enabled())

	got, err := Call(context.Background(), b, func(context.Context) ([]string, error) {
		return []string{"a"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, "test-result", b.Name())
	assert.Equal(t, "closed", b.State())
}

func TestNew_Disabled(t *testing.T) {
	b := New("test-disabled", config.CircuitBreakerConfig{})
	assert.Nil(t, b)
	assert.Equal(t, "disabled", b.State())
	assert.False(t, b.IsOpen())

	calls := 0
	for i := 0; i < 5; i++ {
		_, err := Call(context.Background(), b, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("down")
		})
		assert.Error(t, err)
	}
	assert.Equal(t, 5, calls)
}

func TestFailureRatioTrip(t *testing.T) {
	trip := FailureRatioTrip(4, 0.5)

	assert.False(t, trip(gobreaker.Counts{}))
	assert.False(t, trip(gobreaker.Counts{Requests: 3, TotalFailures: 3}))
	assert.False(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 1}))
	assert.True(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
}
