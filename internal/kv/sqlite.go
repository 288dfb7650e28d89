package kv

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/glyco/internal/db"
)

// SQLite stores payloads in the kv table created by db.Init.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an initialized database handle. The store owns the handle.
func NewSQLite(database *sql.DB) *SQLite {
	return &SQLite{db: database}
}

func (s *SQLite) Driver() Driver { return DriverSQLite }

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, found, err := db.GetValue(ctx, s.db, key)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return payload, found, nil
}

func (s *SQLite) Put(ctx context.Context, key string, payload []byte) error {
	if err := db.PutValue(ctx, s.db, key, payload); err != nil {
		return fmt.Errorf("sqlite put %s: %w", key, err)
	}
	return nil
}

// DB exposes the underlying handle for tests.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
