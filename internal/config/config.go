package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	BackupDir string `toml:"backup_dir"`
	LogDir    string `toml:"log_dir"`
}

// Tags controls which fields the conflict engine may touch.
type Tags struct {
	// Protected fields are never overwritten, whatever the confidence.
	Protected []string `toml:"protected"`
	// AutoUpdate fields are always overwritten without prompting.
	// Entries support a trailing-asterisk prefix wildcard ("youtube_*").
	AutoUpdate []string `toml:"auto_update"`
	// Processable limits which candidate fields are considered at all.
	// Empty means every field is processable.
	Processable []string `toml:"processable"`
}

// Matching contains candidate acceptance thresholds and field classes.
type Matching struct {
	MinConfidence    float64  `toml:"min_confidence"`
	MaxGenres        int      `toml:"max_genres"`
	PopularityFields []string `toml:"popularity_fields"`
	GenreFields      []string `toml:"genre_fields"`
	DateFields       []string `toml:"date_fields"`
}

// Conflicts contains resolution behavior settings.
type Conflicts struct {
	// Mode is "automatic" or "interactive".
	Mode string `toml:"mode"`
	// StringMerge decides what merging two delimiter-less strings does:
	// "concat" joins as "existing; new", "prefer_new" takes the candidate.
	StringMerge string `toml:"string_merge"`
	// BatchOfferThreshold is the number of similar pending conflicts at
	// which an interactive session offers a grouped batch action.
	BatchOfferThreshold int `toml:"batch_offer_threshold"`
}

// Backup contains snapshot strategy configuration.
type Backup struct {
	Strategy       string   `toml:"strategy"`
	RetentionDays  int      `toml:"retention_days"`
	MaxMemoryMB    int      `toml:"max_memory_mb"`
	CriticalFields []string `toml:"critical_fields"`
	// Strict aborts a file's enrichment when its snapshot cannot be taken.
	// Default is best-effort: log and write uninsured.
	Strict bool `toml:"strict"`
}

// Sources contains settings for metadata source fan-out.
type Sources struct {
	TimeoutSeconds int  `toml:"timeout_seconds"`
	FilenameGuess  bool `toml:"filename_guess"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for retag.
//
// Sections by subsystem:
//   - Paths: state, backup, and log directories
//   - Tags: protected / auto-update / processable field sets
//   - Matching: confidence thresholds and field classes
//   - Conflicts: resolution mode and merge policy
//   - Backup: snapshot strategy, retention, memory cap
//   - Sources: metadata source fan-out settings
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Tags      Tags      `toml:"tags"`
	Matching  Matching  `toml:"matching"`
	Conflicts Conflicts `toml:"conflicts"`
	Backup    Backup    `toml:"backup"`
	Sources   Sources   `toml:"sources"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/retag/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return is
// the resolved path, the third whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("retag.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, backup, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.BackupDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PreferencesPath returns the location of the persisted user preferences file.
func (c *Config) PreferencesPath() string {
	return filepath.Join(c.Paths.StateDir, "preferences.json")
}

// RulesPath returns the location of the persisted batch rules file.
func (c *Config) RulesPath() string {
	return filepath.Join(c.Paths.StateDir, "batch_rules.json")
}

// ChangelogDBPath returns the location of the changelog database.
func (c *Config) ChangelogDBPath() string {
	return filepath.Join(c.Paths.BackupDir, "changelog.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
