package kvstore

import (
	"context"
	"errors"

	"injectionfilter/internal/config"
	"injectionfilter/pkg/circuitbreaker"
	apperrors "injectionfilter/pkg/errors"
)

// CircuitBreakerStore stops calling a failing backend for a while and
// reports STORE_UNAVAILABLE instead.
type CircuitBreakerStore struct {
	next    Store
	breaker *circuitbreaker.Breaker
}

func NewCircuitBreakerStore(next Store, name string, cfg config.CircuitBreakerConfig) *CircuitBreakerStore {
	return &CircuitBreakerStore{
		next:    next,
		breaker: circuitbreaker.New(name, cfg),
	}
}

func guard[T any](ctx context.Context, s *CircuitBreakerStore, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := circuitbreaker.Call(ctx, s.breaker, fn)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return v, apperrors.ErrStoreUnavailable.
			WithCause(err).
			WithMessage("circuit breaker is open for %s", s.breaker.Name())
	}
	return v, err
}

type getResult struct {
	value []byte
	found bool
}

func (s *CircuitBreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := guard(ctx, s, func(ctx context.Context) (getResult, error) {
		v, found, err := s.next.Get(ctx, key)
		return getResult{value: v, found: found}, err
	})
	return r.value, r.found, err
}

func (s *CircuitBreakerStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := guard(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Put(ctx, key, value)
	})
	return err
}

func (s *CircuitBreakerStore) Delete(ctx context.Context, key string) error {
	_, err := guard(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Delete(ctx, key)
	})
	return err
}

func (s *CircuitBreakerStore) FindAllWithKeyPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	return guard(ctx, s, func(ctx context.Context) (map[string][]byte, error) {
		return s.next.FindAllWithKeyPrefix(ctx, prefix)
	})
}

func (s *CircuitBreakerStore) State() string {
	return s.breaker.State()
}

func (s *CircuitBreakerStore) IsOpen() bool {
	return s.breaker.IsOpen()
}
