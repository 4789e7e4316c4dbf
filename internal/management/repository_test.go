package management

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"injectionfilter/internal/filter"
	"injectionfilter/internal/kvstore"
	"injectionfilter/internal/logger"
	"injectionfilter/pkg/metrics"
)

const testPrefix = "injection-filter#"

func newTestRepository(t *testing.T) (*KVRepository, *kvstore.MemoryStore) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	return NewRepository(store, testPrefix, logger.NopLogger()), store
}

func namedEntity(name string, patterns ...string) *filter.Entity {
	e := filter.NewEntity()
	e.Name = name
	for _, p := range patterns {
		e.AddPattern(filter.Pattern{Name: p, Expression: p, Enabled: true})
	}
	return e
}

func TestKVRepository_KeyFor(t *testing.T) {
	repo, _ := newTestRepository(t)

	assert.Equal(t, testPrefix+"abc", repo.KeyFor("abc"))
	assert.Equal(t, testPrefix+"abc", repo.KeyFor(testPrefix+"abc"))
	assert.Equal(t, "abc", repo.IDOf(testPrefix+"abc"))
	assert.Equal(t, testPrefix, repo.Prefix())
}

func TestKVRepository_SaveLoad(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	e := namedEntity("sql", "a", "b")
	require.NoError(t, repo.Save(ctx, repo.KeyFor("f1"), e))

	got, found, err := repo.Load(ctx, repo.KeyFor("f1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "sql", got.Name)
	assert.Equal(t, e.Patterns(), got.Patterns())

	_, found, err = repo.Load(ctx, repo.KeyFor("missing"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKVRepository_LoadUndecodable(t *testing.T) {
	repo, store := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testPrefix+"junk", []byte("not msgpack at all")))

	_, found, err := repo.Load(ctx, testPrefix+"junk")
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrNotAFilter)
}

// Two valid filters and one corrupt entry under the prefix list as two.
func TestKVRepository_ListSkipsUndecodable(t *testing.T) {
	repo, store := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testPrefix+"b", namedEntity("second", "x")))
	require.NoError(t, repo.Save(ctx, testPrefix+"a", namedEntity("first")))
	require.NoError(t, store.Put(ctx, testPrefix+"corrupt", []byte{0xc1, 0x00, 0xff}))
	require.NoError(t, store.Put(ctx, "other#a", []byte("ignored")))

	before := testutil.ToFloat64(metrics.FilterDecodeFailuresTotal)

	filters, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, filters, 2)

	assert.Equal(t, testPrefix+"a", filters[0].Key)
	assert.Equal(t, "a", filters[0].ID)
	assert.Equal(t, "first", filters[0].Filter.Name)
	assert.Equal(t, "second", filters[1].Filter.Name)
	assert.Equal(t, 1, filters[1].Filter.PatternCount())

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.FilterDecodeFailuresTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.FiltersLoaded))
}

func TestKVRepository_ListEmpty(t *testing.T) {
	repo, _ := newTestRepository(t)

	filters, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, filters)
}

func TestKVRepository_Delete(t *testing.T) {
	repo, store := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testPrefix+"f1", namedEntity("x")))
	require.NoError(t, repo.Delete(ctx, testPrefix+"f1"))
	assertEmptyStore(t, store)
}

func TestKVRepository_StoreErrorsPropagate(t *testing.T) {
	down := errors.New("connection refused")
	repo := NewRepository(&flakyStore{Store: kvstore.NewMemoryStore(), err: down, failures: 100}, testPrefix, nil)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Save(ctx, testPrefix+"f1", namedEntity("x")), down)
	_, _, err := repo.Load(ctx, testPrefix+"f1")
	assert.ErrorIs(t, err, down)
	_, err = repo.List(ctx)
	assert.ErrorIs(t, err, down)
	assert.ErrorIs(t, repo.Delete(ctx, testPrefix+"f1"), down)
}

func TestKVRepository_SaveNilIsFatal(t *testing.T) {
	repo, store := newTestRepository(t)

	err := repo.Save(context.Background(), testPrefix+"f1", nil)
	require.Error(t, err)
	assertEmptyStore(t, store)
}

func assertEmptyStore(t *testing.T, store kvstore.Store) {
	t.Helper()
	all, err := store.FindAllWithKeyPrefix(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}
