package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"retag/internal/aggregate"
	"retag/internal/metadata"
)

type stubSource struct {
	name    string
	results []aggregate.SourceResult
	err     error
	delay   time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Query(ctx context.Context, q Query) ([]aggregate.SourceResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestQueryAllCollectsInSourceOrder(t *testing.T) {
	a := &stubSource{name: "a", results: []aggregate.SourceResult{{Source: "a", Confidence: 0.9}}, delay: 20 * time.Millisecond}
	b := &stubSource{name: "b", results: []aggregate.SourceResult{{Source: "b", Confidence: 0.8}}}
	results := QueryAll(context.Background(), []Source{a, b}, Query{}, time.Second, nil)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Source != "a" || results[1].Source != "b" {
		t.Fatalf("results out of source order: %s, %s", results[0].Source, results[1].Source)
	}
}

func TestQueryAllSkipsFailingSource(t *testing.T) {
	bad := &stubSource{name: "bad", err: errors.New("connection refused")}
	good := &stubSource{name: "good", results: []aggregate.SourceResult{{Source: "good", Confidence: 0.7}}}
	results := QueryAll(context.Background(), []Source{bad, good}, Query{}, time.Second, nil)
	if len(results) != 1 || results[0].Source != "good" {
		t.Fatalf("expected only the good source, got %+v", results)
	}
}

func TestQueryAllEnforcesTimeout(t *testing.T) {
	slow := &stubSource{name: "slow", results: []aggregate.SourceResult{{Source: "slow"}}, delay: 500 * time.Millisecond}
	start := time.Now()
	results := QueryAll(context.Background(), []Source{slow}, Query{}, 20*time.Millisecond, nil)
	if len(results) != 0 {
		t.Fatalf("timed-out source must contribute nothing, got %+v", results)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		path   string
		artist string
		title  string
		ok     bool
	}{
		{"/music/Big Star - Thirteen.mp3", "Big Star", "Thirteen", true},
		{"/music/01 - Big Star - Thirteen.mp3", "Big Star", "Thirteen", true},
		{"/music/03. Nick Drake - Pink Moon.mp3", "Nick Drake", "Pink Moon", true},
		{"/music/just-a-name.mp3", "", "", false},
		{"/music/ - .mp3", "", "", false},
	}
	for _, tt := range tests {
		artist, title, ok := ParseFilename(tt.path)
		if ok != tt.ok || artist != tt.artist || title != tt.title {
			t.Errorf("ParseFilename(%q) = %q, %q, %v; want %q, %q, %v",
				tt.path, artist, title, ok, tt.artist, tt.title, tt.ok)
		}
	}
}

func TestPathSourceScoresAgainstQuery(t *testing.T) {
	src := PathSource{}
	results, err := src.Query(context.Background(), Query{
		Path:   "/music/Big Star - Thirteen.mp3",
		Artist: "Big Star",
		Title:  "Thirteen",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Confidence < 0.99 {
		t.Fatalf("exact match confidence = %v", results[0].Confidence)
	}
	if results[0].Fields[metadata.FieldArtist].Text() != "Big Star" {
		t.Fatalf("artist = %q", results[0].Fields[metadata.FieldArtist].Text())
	}
}

func TestPathSourceFlatConfidenceWithoutQuery(t *testing.T) {
	src := PathSource{}
	results, err := src.Query(context.Background(), Query{Path: "/music/Big Star - Thirteen.mp3"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Confidence != pathGuessConfidence {
		t.Fatalf("results = %+v", results)
	}
}

func TestStaticSourceMatchesAndScales(t *testing.T) {
	src := NewStaticSource("library", 0.9, []StaticEntry{
		{Artist: "Big Star", Title: "Thirteen", Fields: metadata.Fields{
			"album": metadata.String("#1 Record"),
			"year":  metadata.Int(1972),
		}},
		{Artist: "Slint", Title: "Breadcrumb Trail"},
	})
	results, err := src.Query(context.Background(), Query{Artist: "Big Star", Title: "Thirteen"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 match, got %d", len(results))
	}
	r := results[0]
	if r.Confidence < 0.89 || r.Confidence > 0.9 {
		t.Fatalf("confidence = %v, want about 0.9", r.Confidence)
	}
	if r.Fields["album"].Text() != "#1 Record" {
		t.Fatalf("album = %q", r.Fields["album"].Text())
	}
	if r.Fields[metadata.FieldArtist].Text() != "Big Star" {
		t.Fatalf("artist not filled from entry: %+v", r.Fields)
	}
}
