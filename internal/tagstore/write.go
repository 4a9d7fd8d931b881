package tagstore

import (
	"github.com/bogem/id3v2/v2"

	"retag/internal/logging"
	"retag/internal/metadata"
	"retag/internal/services"
)

// standardFrames maps field names to their dedicated text frame ids.
// Fields outside this map and the setter-backed ones are written as
// TXXX user frames.
var standardFrames = map[string]string{
	"album_artist": "TPE2",
	"composer":     "TCOM",
	"track":        "TRCK",
	"duration":     "TLEN",
}

// managedFrames are every frame id a write may touch, including the
// setter-backed ones.
var managedFrames = []string{
	"TXXX", "TIT2", "TPE1", "TALB", "TCON", "TYER", "TDRC", "COMM", "USLT",
	"TPE2", "TCOM", "TRCK", "TLEN",
}

// WriteFields replaces the file's metadata with the given field set.
// The caller is responsible for opening a backup transaction first.
func (s *Store) WriteFields(path string, fields metadata.Fields) error {
	return s.WriteFieldsDirect(path, fields)
}

// WriteFieldsDirect writes fields without any backup involvement. The
// backup manager calls this during rollback and restore.
func (s *Store) WriteFieldsDirect(path string, fields metadata.Fields) error {
	if !CanWrite(path) {
		return services.Wrap(services.ErrWrite, "tagstore", "write", "unsupported container: "+path, nil)
	}
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return services.Wrap(services.ErrWrite, "tagstore", "write", "open tag: "+path, err)
	}
	defer t.Close()
	t.SetDefaultEncoding(id3v2.EncodingUTF8)

	// The field set is the complete desired state. Every frame this
	// store manages is dropped before rewriting so restores remove
	// fields that were absent in the snapshot.
	for _, frameID := range managedFrames {
		t.DeleteFrames(frameID)
	}

	for _, name := range fields.Names() {
		value := fields[name]
		if value.IsEmpty() {
			continue
		}
		text := value.Text()
		switch name {
		case metadata.FieldArtist:
			t.SetArtist(text)
		case metadata.FieldTitle:
			t.SetTitle(text)
		case metadata.FieldAlbum:
			t.SetAlbum(text)
		case metadata.FieldGenre:
			t.SetGenre(text)
		case metadata.FieldYear:
			// Both the 2.3 and 2.4 year frames, so any reader finds it.
			t.SetYear(text)
			t.AddTextFrame("TDRC", id3v2.EncodingUTF8, text)
		case metadata.FieldComment:
			t.AddCommentFrame(id3v2.CommentFrame{
				Encoding: id3v2.EncodingUTF8,
				Language: "eng",
				Text:     text,
			})
		case "lyrics":
			t.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
				Encoding: id3v2.EncodingUTF8,
				Language: "eng",
				Lyrics:   text,
			})
		default:
			if frameID, ok := standardFrames[name]; ok {
				t.AddTextFrame(frameID, id3v2.EncodingUTF8, text)
				continue
			}
			t.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
				Encoding:    id3v2.EncodingUTF8,
				Description: name,
				Value:       text,
			})
		}
	}

	if err := t.Save(); err != nil {
		return services.Wrap(services.ErrWrite, "tagstore", "write", "save tag: "+path, err)
	}
	s.logger.Debug("wrote metadata fields",
		logging.String(logging.FieldResource, path),
		logging.Int("fields", len(fields)))
	return nil
}
