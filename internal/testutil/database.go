package testutil

import (
	"context"
	"testing"

	"themesync/internal/config"
	"themesync/internal/database"
)

// NewTestStore creates a new in-memory SQLite store with schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *database.SQLStore {
	t.Helper()

	store, err := database.NewStoreFromConfig(context.Background(), config.DatabaseConfig{Type: "memory"}, "test")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
