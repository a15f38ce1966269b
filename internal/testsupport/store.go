package testsupport

import (
	"context"
	"testing"

	"framealign/internal/config"
	"framealign/internal/overlay"
	"framealign/internal/statstore"
)

// MustOpenStore opens the config's stat store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *statstore.SQLite {
	t.Helper()

	store, err := statstore.OpenSQLite(context.Background(), cfg.Paths.StatFile)
	if err != nil {
		t.Fatalf("statstore.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedStore writes transforms into store.
func SeedStore(t testing.TB, store statstore.Store, transforms ...overlay.Transform) {
	t.Helper()

	for _, tr := range transforms {
		if err := store.Put(context.Background(), tr); err != nil {
			t.Fatalf("seed frame %d: %v", tr.Frame, err)
		}
	}
}
