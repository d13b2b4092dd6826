package testsupport

import (
	"context"
	"testing"

	"reel/internal/config"
	"reel/internal/store"
)

// MustOpenStore opens a store.Store for tests, syncs the configured catalog,
// and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	if err := st.SyncCatalog(context.Background(), cfg.Encoders, cfg.Profiles); err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	return st
}
