package app

import (
	"context"
	"fmt"

	"themesync/internal/config"
	"themesync/internal/database"
)

// MigrateDatabase brings the configured store's schema up to date. It runs
// outside NewThemeApp, which refuses to start on an outdated schema.
func MigrateDatabase(ctx context.Context, cfg *config.Config) error {
	store, err := database.NewStoreFromConfig(ctx, cfg.Database, cfg.InstanceID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}
