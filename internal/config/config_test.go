package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"retag/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("file should not exist at %s", path)
	}
	if cfg.Backup.Strategy != "changelog" {
		t.Fatalf("expected default strategy, got %q", cfg.Backup.Strategy)
	}
	if cfg.Matching.MinConfidence != 0.8 {
		t.Fatalf("expected default min confidence, got %v", cfg.Matching.MinConfidence)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[tags]
protected = [" Comment ", "RATING"]

[backup]
strategy = "In_Memory"
max_memory_mb = 64

[conflicts]
mode = "INTERACTIVE"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected file to be found")
	}
	if cfg.Backup.Strategy != "in_memory" {
		t.Fatalf("strategy not normalized: %q", cfg.Backup.Strategy)
	}
	if cfg.Conflicts.Mode != "interactive" {
		t.Fatalf("mode not normalized: %q", cfg.Conflicts.Mode)
	}
	if len(cfg.Tags.Protected) != 2 || cfg.Tags.Protected[0] != "comment" || cfg.Tags.Protected[1] != "rating" {
		t.Fatalf("protected tags not normalized: %v", cfg.Tags.Protected)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bad strategy", "[backup]\nstrategy = \"tape\"\n", "backup.strategy"},
		{"bad mode", "[conflicts]\nmode = \"yolo\"\n", "conflicts.mode"},
		{"bad confidence", "[matching]\nmin_confidence = 1.5\n", "matching.min_confidence"},
		{"bad merge policy", "[conflicts]\nstring_merge = \"shuffle\"\n", "conflicts.string_merge"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
	if !exists {
		t.Fatal("sample config should exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = "/tmp/retag-test/state"
	cfg.Paths.BackupDir = "/tmp/retag-test/backups"
	if got := cfg.PreferencesPath(); got != "/tmp/retag-test/state/preferences.json" {
		t.Fatalf("PreferencesPath = %q", got)
	}
	if got := cfg.ChangelogDBPath(); got != "/tmp/retag-test/backups/changelog.db" {
		t.Fatalf("ChangelogDBPath = %q", got)
	}
}
