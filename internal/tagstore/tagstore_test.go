package tagstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"retag/internal/metadata"
	"retag/internal/services"
)

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/music/song.mp3", true},
		{"/music/song.MP3", true},
		{"/music/song.flac", true},
		{"/music/song.m4a", true},
		{"/music/song.ogg", true},
		{"/music/cover.jpg", false},
		{"/music/notes.txt", false},
		{"/music/song", false},
	}
	for _, tt := range tests {
		if got := IsAudioFile(tt.path); got != tt.want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCanWrite(t *testing.T) {
	if !CanWrite("/music/song.mp3") {
		t.Error("mp3 must be writable")
	}
	if CanWrite("/music/song.flac") {
		t.Error("flac writes are not supported")
	}
}

func TestWriteRejectsUnsupportedContainer(t *testing.T) {
	store := New(nil)
	path := filepath.Join(t.TempDir(), "song.flac")
	if err := os.WriteFile(path, []byte("fLaC"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	err := store.WriteFields(path, metadata.Fields{"title": metadata.String("x")})
	if !errors.Is(err, services.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}

func TestReadMissingFileIsNotFound(t *testing.T) {
	store := New(nil)
	_, err := store.ReadFields(filepath.Join(t.TempDir(), "missing.mp3"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := New(nil)
	path := filepath.Join(t.TempDir(), "song.mp3")
	// A tagless file: the writer prepends an ID3v2 block.
	if err := os.WriteFile(path, []byte("audio payload"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	fields := metadata.Fields{
		metadata.FieldArtist: metadata.String("Big Star"),
		metadata.FieldTitle:  metadata.String("Thirteen"),
		metadata.FieldAlbum:  metadata.String("#1 Record"),
		metadata.FieldGenre:  metadata.List("Rock", "Power Pop"),
		metadata.FieldYear:   metadata.Int(1972),
		"youtube_views":      metadata.Int(120000),
		"spotify_id":         metadata.String("3KmUfszvVeXilnPAIqlg96"),
	}
	if err := store.WriteFields(path, fields); err != nil {
		t.Fatalf("WriteFields: %v", err)
	}

	got, err := store.ReadFields(path)
	if err != nil {
		t.Fatalf("ReadFields: %v", err)
	}
	if got[metadata.FieldArtist].Text() != "Big Star" {
		t.Fatalf("artist = %q", got[metadata.FieldArtist].Text())
	}
	if got[metadata.FieldTitle].Text() != "Thirteen" {
		t.Fatalf("title = %q", got[metadata.FieldTitle].Text())
	}
	if got[metadata.FieldGenre].Text() != "Rock, Power Pop" {
		t.Fatalf("genre = %q", got[metadata.FieldGenre].Text())
	}
	if got[metadata.FieldYear].Text() != "1972" {
		t.Fatalf("year = %q", got[metadata.FieldYear].Text())
	}
	if got["youtube_views"].Text() != "120000" {
		t.Fatalf("youtube_views = %q", got["youtube_views"].Text())
	}
	if got["spotify_id"].Text() != "3KmUfszvVeXilnPAIqlg96" {
		t.Fatalf("spotify_id = %q", got["spotify_id"].Text())
	}

	// Writing again must not duplicate custom frames.
	if err := store.WriteFields(path, got); err != nil {
		t.Fatalf("second WriteFields: %v", err)
	}
	again, err := store.ReadFields(path)
	if err != nil {
		t.Fatalf("second ReadFields: %v", err)
	}
	if again["youtube_views"].Text() != "120000" {
		t.Fatalf("youtube_views after rewrite = %q", again["youtube_views"].Text())
	}
}

func TestReadTaglessFileReturnsEmptyFields(t *testing.T) {
	store := New(nil)
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("no tags here"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	fields, err := store.ReadFields(path)
	if err != nil {
		t.Fatalf("ReadFields: %v", err)
	}
	if len(fields) != 0 {
		t.Fatalf("expected no fields, got %+v", fields)
	}
}
