package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runConformance checks the Store contract against a fresh, empty store.
func runConformance(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		v, found, err := s.Get(context.Background(), "injection-filter#missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, v)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		value := []byte{0x00, 0x81, 0xff, 'a'}
		require.NoError(t, s.Put(ctx, "injection-filter#f1", value))

		got, found, err := s.Get(ctx, "injection-filter#f1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, value, got)
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "k", []byte("v1")))
		require.NoError(t, s.Put(ctx, "k", []byte("v2")))

		got, found, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("empty value", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "empty", []byte{}))

		got, found, err := s.Get(ctx, "empty")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "k", []byte("v")))
		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "k"))

		_, found, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("find by prefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		entries := map[string]string{
			"injection-filter#f1": "one",
			"injection-filter#f2": "two",
			"injection-filterX":   "near miss",
			"INJECTION-FILTER#f3": "case differs",
			"other#f1":            "other",
		}
		for k, v := range entries {
			require.NoError(t, s.Put(ctx, k, []byte(v)))
		}

		got, err := s.FindAllWithKeyPrefix(ctx, "injection-filter#")
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{
			"injection-filter#f1": []byte("one"),
			"injection-filter#f2": []byte("two"),
		}, got)
	})

	t.Run("find by prefix with pattern characters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "a_b%*?.k1", []byte("1")))
		require.NoError(t, s.Put(ctx, "aXbYZZ.k2", []byte("2")))
		require.NoError(t, s.Put(ctx, "a_b%*?xk3", []byte("3")))

		got, err := s.FindAllWithKeyPrefix(ctx, "a_b%*?.")
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"a_b%*?.k1": []byte("1")}, got)
	})

	t.Run("find with no match", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "x", []byte("1")))

		got, err := s.FindAllWithKeyPrefix(ctx, "injection-filter#")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
