package testsupport

import (
	"testing"

	"retag/internal/changelog"
	"retag/internal/config"
)

// MustOpenChangelog opens a changelog.Store for tests and registers cleanup.
func MustOpenChangelog(t testing.TB, cfg *config.Config) *changelog.Store {
	t.Helper()

	store, err := changelog.Open(cfg.ChangelogDBPath())
	if err != nil {
		t.Fatalf("changelog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
