package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"injectionfilter/internal/config"
	apperrors "injectionfilter/pkg/errors"
	"injectionfilter/pkg/metrics"
)

type failingStore struct {
	err   error
	calls int
}

func (s *failingStore) Get(context.Context, string) ([]byte, bool, error) {
	s.calls++
	return nil, false, s.err
}

func (s *failingStore) Put(context.Context, string, []byte) error {
	s.calls++
	return s.err
}

func (s *failingStore) Delete(context.Context, string) error {
	s.calls++
	return s.err
}

func (s *failingStore) FindAllWithKeyPrefix(context.Context, string) (map[string][]byte, error) {
	s.calls++
	return nil, s.err
}

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}
}

func TestCircuitBreakerStore_Conformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		return NewCircuitBreakerStore(NewMemoryStore(), "conformance-"+t.Name(), breakerConfig())
	})
}

func TestCircuitBreakerStore_OpensAfterFailures(t *testing.T) {
	down := errors.New("connection refused")
	inner := &failingStore{err: down}
	s := NewCircuitBreakerStore(inner, "test-store-open", breakerConfig())
	ctx := context.Background()

	assert.ErrorIs(t, s.Put(ctx, "k", []byte("v")), down)
	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, down)
	require.True(t, s.IsOpen())
	assert.Equal(t, "open", s.State())

	_, err = s.FindAllWithKeyPrefix(ctx, "p")
	assert.True(t, apperrors.IsStoreUnavailable(err))
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitBreakerStore_CancellationDoesNotTrip(t *testing.T) {
	inner := &failingStore{err: context.Canceled}
	s := NewCircuitBreakerStore(inner, "test-store-cancel", breakerConfig())

	for i := 0; i < 5; i++ {
		_ = s.Delete(context.Background(), "k")
	}
	assert.False(t, s.IsOpen())
}

func TestCircuitBreakerStore_Disabled(t *testing.T) {
	inner := &failingStore{err: errors.New("down")}
	s := NewCircuitBreakerStore(inner, "test-store-disabled", config.CircuitBreakerConfig{})

	for i := 0; i < 5; i++ {
		assert.Error(t, s.Put(context.Background(), "k", nil))
	}
	assert.Equal(t, "disabled", s.State())
	assert.False(t, s.IsOpen())
	assert.Equal(t, 5, inner.calls)
}

func TestInstrumentedStore_RecordsMetrics(t *testing.T) {
	backend := "instrumented-test"
	s := NewInstrumentedStore(NewMemoryStore(), backend)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "p#1", []byte("a")))
	require.NoError(t, s.Put(ctx, "p#2", []byte("b")))
	_, _, err := s.Get(ctx, "p#1")
	require.NoError(t, err)
	entries, err := s.FindAllWithKeyPrefix(ctx, "p#")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues(backend, "put", metrics.StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues(backend, "get", metrics.StatusSuccess)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.StoreEntriesScanned.WithLabelValues(backend)))

	failing := NewInstrumentedStore(&failingStore{err: errors.New("x")}, backend)
	assert.Error(t, failing.Delete(ctx, "k"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues(backend, "delete", metrics.StatusError)))
}
