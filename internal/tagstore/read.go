package tagstore

import (
	"os"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"

	"retag/internal/logging"
	"retag/internal/metadata"
	"retag/internal/services"
)

// ReadFields extracts the metadata fields from an audio file. Standard
// fields come from the generic parser; for ID3v2 carriers the custom
// TXXX frames are read as well so extended fields survive a round trip.
func (s *Store) ReadFields(path string) (metadata.Fields, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "tagstore", "read", path, err)
	}
	defer f.Close()

	fields := metadata.Fields{}
	m, err := tag.ReadFrom(f)
	if err != nil {
		// A file without any tag block is still enrichable; it simply
		// starts with no current fields.
		s.logger.Debug("no parseable tag block",
			logging.String("path", path))
		return fields, nil
	}

	setText(fields, metadata.FieldArtist, m.Artist())
	setText(fields, metadata.FieldTitle, m.Title())
	setText(fields, metadata.FieldAlbum, m.Album())
	setText(fields, "album_artist", m.AlbumArtist())
	setText(fields, "composer", m.Composer())
	setText(fields, metadata.FieldGenre, m.Genre())
	setText(fields, metadata.FieldComment, m.Comment())
	setText(fields, "lyrics", m.Lyrics())
	if year := m.Year(); year > 0 {
		fields[metadata.FieldYear] = metadata.Int(int64(year))
	}
	if track, _ := m.Track(); track > 0 {
		fields["track"] = metadata.Int(int64(track))
	}

	if CanWrite(path) {
		if err := readUserFrames(path, fields); err != nil {
			s.logger.Warn("failed to read extended frames", logging.String("path", path), logging.Error(err))
		}
	}
	return fields, nil
}

func setText(fields metadata.Fields, name, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fields[name] = metadata.String(value)
}

// readUserFrames pulls TXXX frames into lowercased field names. Numeric
// payloads become numeric values so comparisons stay semantic.
func readUserFrames(path string, fields metadata.Fields) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer t.Close()

	for _, frame := range t.GetFrames("TXXX") {
		udt, ok := frame.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		name := normalizeFieldName(udt.Description)
		if name == "" {
			continue
		}
		if n, err := strconv.ParseFloat(strings.TrimSpace(udt.Value), 64); err == nil {
			fields[name] = metadata.Number(n)
			continue
		}
		fields[name] = metadata.String(udt.Value)
	}
	return nil
}

func normalizeFieldName(description string) string {
	name := strings.ToLower(strings.TrimSpace(description))
	return strings.ReplaceAll(name, " ", "_")
}
