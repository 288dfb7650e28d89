// Package kv is the durable key-value layer behind the record store and
// user preferences. Each backend stores opaque payloads under string keys.
package kv

import (
	"context"
	"fmt"

	"github.com/hpungsan/glyco/internal/config"
	"github.com/hpungsan/glyco/internal/db"
)

// Driver identifies a concrete key-value backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file (default)
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
)

// Store is a minimal durable key-value store.
type Store interface {
	// Get returns the payload under key; found is false if the key was never written.
	Get(ctx context.Context, key string) (payload []byte, found bool, err error)
	// Put replaces the payload under key.
	Put(ctx context.Context, key string, payload []byte) error
	// Close releases underlying resources.
	Close() error
	// Driver reports the backend kind.
	Driver() Driver
}

// Open selects a backend from config. baseDir is the sqlite home (~/.glyco).
func Open(ctx context.Context, cfg *config.Config, baseDir string) (Store, error) {
	driver := Driver(cfg.StorageDriver)
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, err
		}
		db.ConfigurePool(database, cfg)
		return NewSQLite(database), nil
	case DriverPostgres:
		return NewPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
