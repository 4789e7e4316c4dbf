package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"injectionfilter/internal/constants"
)

// Dialect holds the statements SQLStore runs against the kv_entries table.
type Dialect struct {
	Name        string
	getQuery    string
	putQuery    string
	deleteQuery string
	scanQuery   string
	scanArgs    func(prefix string) []any
}

var PostgresDialect = Dialect{
	Name:        constants.StoreTypePostgres,
	getQuery:    `SELECT value FROM ` + constants.SQLTableName + ` WHERE key = $1`,
	putQuery: `INSERT INTO ` + constants.SQLTableName + ` (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
	deleteQuery: `DELETE FROM ` + constants.SQLTableName + ` WHERE key = $1`,
	scanQuery:   `SELECT key, value FROM ` + constants.SQLTableName + ` WHERE key LIKE $1 ESCAPE '\'`,
	scanArgs: func(prefix string) []any {
		return []any{escapeLike(prefix) + "%"}
	},
}

// SQLiteDialect compares prefixes with substr because LIKE is case
// insensitive for ASCII in SQLite.
var SQLiteDialect = Dialect{
	Name:     constants.StoreTypeSQLite,
	getQuery: `SELECT value FROM ` + constants.SQLTableName + ` WHERE key = ?`,
	putQuery: `INSERT INTO ` + constants.SQLTableName + ` (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
	deleteQuery: `DELETE FROM ` + constants.SQLTableName + ` WHERE key = ?`,
	scanQuery:   `SELECT key, value FROM ` + constants.SQLTableName + ` WHERE substr(key, 1, length(?)) = ?`,
	scanArgs: func(prefix string) []any {
		return []any{prefix, prefix}
	},
}

type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func NewPostgresStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db, PostgresDialect)
}

func NewSQLiteStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db, SQLiteDialect)
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.dialect.getQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: failed to get entry %s: %w", s.dialect.Name, key, err)
	}
	return cloneBytes(value), true, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.putQuery, key, value); err != nil {
		return fmt.Errorf("%s: failed to put entry %s: %w", s.dialect.Name, key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.deleteQuery, key); err != nil {
		return fmt.Errorf("%s: failed to delete entry %s: %w", s.dialect.Name, key, err)
	}
	return nil
}

func (s *SQLStore) FindAllWithKeyPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.scanQuery, s.dialect.scanArgs(prefix)...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to scan prefix %s: %w", s.dialect.Name, prefix, err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", s.dialect.Name, err)
		}
		result[key] = cloneBytes(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to iterate rows: %w", s.dialect.Name, err)
	}

	return result, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
