package kvstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"injectionfilter/pkg/metrics"
	"injectionfilter/pkg/tracing"
)

// InstrumentedStore records a metric sample and a span for every call.
type InstrumentedStore struct {
	next    Store
	backend string
	tracer  trace.Tracer
}

func NewInstrumentedStore(next Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{
		next:    next,
		backend: backend,
		tracer:  tracing.GetTracer("kvstore"),
	}
}

func (s *InstrumentedStore) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "kvstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("kvstore.backend", s.backend))...),
	)
	start := time.Now()

	return ctx, func(err error) {
		metrics.ObserveStoreOperation(s.backend, op, time.Since(start), err)
		tracing.End(span, err)
	}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, done := s.observe(ctx, "get", attribute.String("kvstore.key", key))
	v, found, err := s.next.Get(ctx, key)
	done(err)
	return v, found, err
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, done := s.observe(ctx, "put", attribute.String("kvstore.key", key), attribute.Int("kvstore.value_size", len(value)))
	err := s.next.Put(ctx, key, value)
	done(err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	ctx, done := s.observe(ctx, "delete", attribute.String("kvstore.key", key))
	err := s.next.Delete(ctx, key)
	done(err)
	return err
}

func (s *InstrumentedStore) FindAllWithKeyPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	ctx, done := s.observe(ctx, "find_prefix", attribute.String("kvstore.prefix", prefix))
	entries, err := s.next.FindAllWithKeyPrefix(ctx, prefix)
	if err == nil {
		metrics.AddEntriesScanned(s.backend, len(entries))
	}
	done(err)
	return entries, err
}
