// Package dbtest opens throwaway stores for tests in other packages.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"botpulse/internal/config"
	"botpulse/internal/db"
)

// Open returns a migrated pure-Go SQLite store in t.TempDir, closed on cleanup.
func Open(t testing.TB) *db.Store {
	t.Helper()
	ctx := context.Background()
	store, err := db.Open(ctx, config.StorageConfig{
		Backend: "sqlite",
		Path:    filepath.Join(t.TempDir(), "botpulse.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return store
}
