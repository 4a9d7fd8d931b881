package sources

import (
	"context"
	"path/filepath"
	"strings"

	"retag/internal/aggregate"
	"retag/internal/metadata"
	"retag/internal/textutil"
)

// pathGuessConfidence is used when the query has nothing to compare the
// parsed name against. Filename guesses are weak evidence on their own.
const pathGuessConfidence = 0.4

// PathSource derives candidate artist and title from the file name,
// expecting the common "Artist - Title" layout.
type PathSource struct{}

func (PathSource) Name() string { return "filename" }

// Query parses the base name. When the query already carries an artist
// or title, the guess is scored against them; otherwise it gets a flat
// low confidence.
func (PathSource) Query(ctx context.Context, q Query) ([]aggregate.SourceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	artist, title, ok := ParseFilename(q.Path)
	if !ok {
		return nil, nil
	}
	confidence := pathGuessConfidence
	if q.Artist != "" || q.Title != "" {
		confidence = textutil.MatchArtistTitle(artist, title, q.Artist, q.Title)
	}
	return []aggregate.SourceResult{{
		Source:     "filename",
		Confidence: confidence,
		Fields: metadata.Fields{
			metadata.FieldArtist: metadata.String(artist),
			metadata.FieldTitle:  metadata.String(title),
		},
	}}, nil
}

// ParseFilename splits "Artist - Title.ext" into its parts. Track
// number prefixes like "01 - " or "01. " are stripped first.
func ParseFilename(path string) (artist, title string, ok bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = stripTrackNumber(base)
	artist, title, found := strings.Cut(base, " - ")
	if !found {
		return "", "", false
	}
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" || title == "" {
		return "", "", false
	}
	return artist, title, true
}

func stripTrackNumber(name string) string {
	trimmed := strings.TrimSpace(name)
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i == 0 || i > 3 {
		return trimmed
	}
	rest := trimmed[i:]
	for _, prefix := range []string{" - ", ". ", " ", "."} {
		if cut, ok := strings.CutPrefix(rest, prefix); ok {
			// "01 - Artist - Title" keeps "Artist - Title"; a bare
			// number followed by the artist keeps the split intact.
			if strings.Contains(cut, " - ") {
				return strings.TrimSpace(cut)
			}
			return trimmed
		}
	}
	return trimmed
}
