package testsupport

import (
	"path/filepath"
	"testing"

	"retag/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.BackupDir = filepath.Join(base, "backup")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithStrategy overrides the backup strategy on the test config.
func WithStrategy(strategy string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backup.Strategy = strategy
	}
}

// WithConflictMode overrides the conflict resolution mode.
func WithConflictMode(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Conflicts.Mode = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
