package tagstore

import (
	"log/slog"
	"path/filepath"
	"strings"

	"retag/internal/logging"
)

// Store reads and writes audio file metadata. Reading understands every
// container the generic tag parser does; writing is limited to ID3v2
// carriers.
type Store struct {
	logger *slog.Logger
}

// New builds a tag store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{logger: logger}
}

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".m4a":  {},
	".mp4":  {},
	".ogg":  {},
}

// IsAudioFile reports whether the path looks like a supported audio
// container.
func IsAudioFile(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// CanWrite reports whether metadata writes are supported for the path.
func CanWrite(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".mp3"
}
