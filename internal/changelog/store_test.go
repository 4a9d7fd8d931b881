package changelog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"retag/internal/metadata"
	"retag/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "changelog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func sampleEntry(resource string) Entry {
	return Entry{
		Resource:    resource,
		Operation:   "enrich",
		OldFields:   metadata.Fields{"title": metadata.String("Old"), "year": metadata.Int(1999)},
		NewFields:   metadata.Fields{"title": metadata.String("New"), "year": metadata.Int(2001)},
		Fingerprint: "abcd1234",
	}
}

func TestAppendAndLatest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Append(ctx, sampleEntry("/music/a.mp3"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := store.Append(ctx, sampleEntry("/music/a.mp3"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second <= first {
		t.Fatalf("ids must increase: %d then %d", first, second)
	}

	latest, err := store.Latest(ctx, "/music/a.mp3")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != second {
		t.Fatalf("Latest id = %d, want %d", latest.ID, second)
	}
	if latest.OldFields["title"].Text() != "Old" || latest.NewFields["title"].Text() != "New" {
		t.Fatalf("fields did not round trip: %+v", latest)
	}
	if latest.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not populated")
	}
}

func TestLatestMissingResourceIsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Latest(context.Background(), "/missing.mp3")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for range 3 {
		if _, err := store.Append(ctx, sampleEntry("/music/a.mp3")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := store.Append(ctx, sampleEntry("/music/b.mp3")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.History(ctx, "/music/a.mp3", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID < entries[1].ID {
		t.Fatalf("expected newest first, got ids %d, %d", entries[0].ID, entries[1].ID)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := sampleEntry("/music/a.mp3")
	old.CreatedAt = time.Now().UTC().Add(-40 * 24 * time.Hour)
	if _, err := store.Append(ctx, old); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.Append(ctx, sampleEntry("/music/a.mp3")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	pending, err := store.CountOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("CountOlderThan: %v", err)
	}
	if pending != 1 {
		t.Fatalf("CountOlderThan = %d, want 1", pending)
	}

	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	remaining, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("remaining = %d, want 1", remaining)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "changelog.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Append(context.Background(), sampleEntry("/music/a.mp3")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	count, err := reopened.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count after reopen = %d, want 1", count)
	}
}
