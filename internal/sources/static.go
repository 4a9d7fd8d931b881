package sources

import (
	"context"
	"encoding/json"
	"os"

	"retag/internal/aggregate"
	"retag/internal/metadata"
	"retag/internal/services"
	"retag/internal/textutil"
)

// matchFloor is the weakest artist/title similarity a library entry may
// have and still be offered as a candidate.
const matchFloor = 0.5

// StaticEntry is one record in a local metadata library.
type StaticEntry struct {
	Artist string          `json:"artist"`
	Title  string          `json:"title"`
	Fields metadata.Fields `json:"fields"`
}

// StaticSource serves candidates from a local library file. It exists
// for offline enrichment and as the seam tests plug fixtures into.
type StaticSource struct {
	name       string
	confidence float64
	entries    []StaticEntry
}

// NewStaticSource builds a source over in-memory entries. The base
// confidence is scaled by how well an entry matches the query.
func NewStaticSource(name string, confidence float64, entries []StaticEntry) *StaticSource {
	return &StaticSource{name: name, confidence: confidence, entries: entries}
}

// LoadStaticSource reads a JSON library file.
func LoadStaticSource(name string, confidence float64, path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrSource, "sources", "load library", path, err)
	}
	var entries []StaticEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, services.Wrap(services.ErrSource, "sources", "load library", "decode "+path, err)
	}
	return NewStaticSource(name, confidence, entries), nil
}

func (s *StaticSource) Name() string { return s.name }

// Query scores every entry against the query and returns those above
// the match floor, tagged with scaled confidence.
func (s *StaticSource) Query(ctx context.Context, q Query) ([]aggregate.SourceResult, error) {
	var results []aggregate.SourceResult
	for _, entry := range s.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		similarity := textutil.MatchArtistTitle(entry.Artist, entry.Title, q.Artist, q.Title)
		if similarity < matchFloor {
			continue
		}
		fields := entry.Fields.Clone()
		if fields == nil {
			fields = metadata.Fields{}
		}
		if _, ok := fields[metadata.FieldArtist]; !ok && entry.Artist != "" {
			fields[metadata.FieldArtist] = metadata.String(entry.Artist)
		}
		if _, ok := fields[metadata.FieldTitle]; !ok && entry.Title != "" {
			fields[metadata.FieldTitle] = metadata.String(entry.Title)
		}
		results = append(results, aggregate.SourceResult{
			Source:     s.name,
			Confidence: s.confidence * similarity,
			Fields:     fields,
		})
	}
	return results, nil
}
