package kvstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStore_Conformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		s, _ := newRedisStore(t)
		return s
	})
}

func TestRedisStore_FindAcrossBatches(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	const n = 450
	for i := 0; i < n; i++ {
		require.NoError(t, s.Put(ctx, fmt.Sprintf("injection-filter#%03d", i), []byte{byte(i)}))
	}
	require.NoError(t, s.Put(ctx, "unrelated", []byte("x")))

	got, err := s.FindAllWithKeyPrefix(ctx, "injection-filter#")
	require.NoError(t, err)
	assert.Len(t, got, n)
	assert.Equal(t, []byte{byte(17)}, got["injection-filter#017"])
}

func TestRedisStore_SkipsNonStringKeys(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "injection-filter#f1", []byte("v")))
	mr.HSet("injection-filter#hash", "field", "value")

	got, err := s.FindAllWithKeyPrefix(ctx, "injection-filter#")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"injection-filter#f1": []byte("v")}, got)
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, _, err := s.Get(context.Background(), "k")
	assert.Error(t, err)

	_, err = s.FindAllWithKeyPrefix(context.Background(), "injection-filter#")
	assert.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "injection-filter#", escapeGlob("injection-filter#"))
	assert.Equal(t, `a\*b\?c\[d\]\\`, escapeGlob(`a*b?c[d]\`))
}
