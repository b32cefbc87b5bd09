package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"themesync/internal/config"
)

// NewStoreFromConfig creates a store based on the database config type.
// An in-memory store starts empty, so its schema is applied here; file and
// Postgres stores are migrated explicitly with Migrate.
func NewStoreFromConfig(ctx context.Context, cfg config.DatabaseConfig, instanceID string) (*SQLStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(SQLitePath(cfg, instanceID))
	case "memory":
		store, err := NewSQLiteStore(":memory:")
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		return store, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres database")
		}
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// SQLitePath returns the database file an instance uses under data_dir.
func SQLitePath(cfg config.DatabaseConfig, instanceID string) string {
	return filepath.Join(cfg.DataDir, instanceID+".db")
}
