package management

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"injectionfilter/internal/filter"
	"injectionfilter/internal/kvstore"
	"injectionfilter/internal/logger"
	"injectionfilter/pkg/metrics"
	"injectionfilter/pkg/retry"
)

// ErrNotAFilter is returned by Load when a key holds data that does not
// decode as a filter.
var ErrNotAFilter = errors.New("stored value is not an injection filter")

type Repository interface {
	Save(ctx context.Context, key string, e *filter.Entity) error
	Load(ctx context.Context, key string) (*filter.Entity, bool, error)
	List(ctx context.Context) ([]StoredFilter, error)
	Delete(ctx context.Context, key string) error
	KeyFor(ref string) string
	IDOf(key string) string
}

// KVRepository keeps one serialized filter per key under a common prefix.
type KVRepository struct {
	store      kvstore.Store
	serializer *filter.Serializer
	prefix     string
	logger     logger.Logger
}

func NewRepository(store kvstore.Store, prefix string, log logger.Logger) *KVRepository {
	if log == nil {
		log = logger.NopLogger()
	}
	return &KVRepository{
		store:      store,
		serializer: filter.NewSerializer(),
		prefix:     prefix,
		logger:     log,
	}
}

func (r *KVRepository) Prefix() string {
	return r.prefix
}

// KeyFor accepts either a full key or a bare id and returns the full key.
func (r *KVRepository) KeyFor(ref string) string {
	if strings.HasPrefix(ref, r.prefix) {
		return ref
	}
	return r.prefix + ref
}

// IDOf strips the prefix from key.
func (r *KVRepository) IDOf(key string) string {
	return strings.TrimPrefix(key, r.prefix)
}

func (r *KVRepository) Save(ctx context.Context, key string, e *filter.Entity) error {
	data, err := r.serializer.Serialize(e)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to serialize filter %s: %w", key, err))
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to save filter %s: %w", key, err)
	}
	return nil
}

func (r *KVRepository) Load(ctx context.Context, key string) (*filter.Entity, bool, error) {
	data, found, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load filter %s: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}

	e, ok := r.serializer.Deserialize(data)
	if !ok {
		metrics.IncDecodeFailure()
		return nil, false, fmt.Errorf("key %s: %w", key, ErrNotAFilter)
	}
	return e, true, nil
}

// List returns every decodable filter under the prefix, ordered by key.
// Entries that do not decode are skipped.
func (r *KVRepository) List(ctx context.Context) ([]StoredFilter, error) {
	entries, err := r.store.FindAllWithKeyPrefix(ctx, r.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}

	filters := make([]StoredFilter, 0, len(entries))
	for key, data := range entries {
		e, ok := r.serializer.Deserialize(data)
		if !ok {
			metrics.IncDecodeFailure()
			r.logger.DebugwCtx(ctx, "Skipping entry that is not a filter",
				"key", key,
				"size", len(data),
			)
			continue
		}
		filters = append(filters, StoredFilter{Key: key, ID: r.IDOf(key), Filter: e})
	}

	sort.Slice(filters, func(i, j int) bool {
		return filters[i].Key < filters[j].Key
	})

	metrics.SetFiltersLoaded(len(filters))
	return filters, nil
}

func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete filter %s: %w", key, err)
	}
	return nil
}
