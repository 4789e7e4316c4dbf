// Package kvstore is the keyed byte store filters are persisted in.
//
// Values are opaque. Keys are namespaced by prefix and enumeration is by
// prefix scan only. Backends: memory, Redis, MongoDB, PostgreSQL, SQLite.
package kvstore

import (
	"context"
)

type Store interface {
	// Get returns the value under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// FindAllWithKeyPrefix returns every entry whose key starts with prefix.
	FindAllWithKeyPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
