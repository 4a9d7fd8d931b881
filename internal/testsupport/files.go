package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"retag/internal/metadata"
	"retag/internal/tagstore"
)

// WriteAudioFile creates a small placeholder audio file and seeds it
// with the given tags when any are provided.
func WriteAudioFile(t testing.TB, path string, fields metadata.Fields) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("audio payload"), 0o644); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if len(fields) == 0 {
		return
	}
	store := tagstore.New(nil)
	if err := store.WriteFields(path, fields); err != nil {
		t.Fatalf("seed tags for %s: %v", path, err)
	}
}
