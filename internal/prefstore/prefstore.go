package prefstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"retag/internal/conflict"
	"retag/internal/logging"
	"retag/internal/services"
)

// Store persists remembered conflict decisions and batch rules as JSON
// files. All mutations write through to disk; a file lock guards
// against concurrent processes.
type Store struct {
	prefsPath string
	rulesPath string
	lock      *flock.Flock
	logger    *slog.Logger

	mu    sync.Mutex
	prefs map[string]conflict.Action
	rules []conflict.BatchRule
}

// Open loads the store from the given paths, creating parent
// directories as needed. Corrupt files are logged and treated as empty
// rather than failing the run.
func Open(prefsPath, rulesPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, path := range []string{prefsPath, rulesPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "prefstore", "open", "create state directory", err)
		}
	}
	s := &Store{
		prefsPath: prefsPath,
		rulesPath: rulesPath,
		lock:      flock.New(prefsPath + ".lock"),
		logger:    logger,
		prefs:     map[string]conflict.Action{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	if err := s.lock.Lock(); err != nil {
		return services.Wrap(services.ErrCorruptState, "prefstore", "load", "acquire lock", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := readJSON(s.prefsPath, &s.prefs); err != nil {
		s.logger.Warn("preferences file unreadable, starting empty",
			logging.String("path", s.prefsPath), logging.Error(err))
		s.prefs = map[string]conflict.Action{}
	}
	if s.prefs == nil {
		s.prefs = map[string]conflict.Action{}
	}
	if err := readJSON(s.rulesPath, &s.rules); err != nil {
		s.logger.Warn("batch rules file unreadable, starting empty",
			logging.String("path", s.rulesPath), logging.Error(err))
		s.rules = nil
	}
	return nil
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}

// writeJSON writes atomically via a temp file rename in the same
// directory.
func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *Store) savePrefs() error {
	if err := s.lock.Lock(); err != nil {
		return services.Wrap(services.ErrCorruptState, "prefstore", "save", "acquire lock", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	if err := writeJSON(s.prefsPath, s.prefs); err != nil {
		return services.Wrap(services.ErrCorruptState, "prefstore", "save", "write preferences", err)
	}
	return nil
}

func (s *Store) saveRules() error {
	if err := s.lock.Lock(); err != nil {
		return services.Wrap(services.ErrCorruptState, "prefstore", "save", "acquire lock", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	if err := writeJSON(s.rulesPath, s.rules); err != nil {
		return services.Wrap(services.ErrCorruptState, "prefstore", "save", "write batch rules", err)
	}
	return nil
}

func preferenceKey(field, source string) string {
	return strings.ToLower(strings.TrimSpace(field)) + ":" + strings.ToLower(strings.TrimSpace(source))
}

// Preference returns the remembered action for a field and source pair.
func (s *Store) Preference(field, source string) (conflict.Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action, ok := s.prefs[preferenceKey(field, source)]
	return action, ok
}

// SetPreference remembers an action for a field and source pair.
func (s *Store) SetPreference(field, source string, action conflict.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[preferenceKey(field, source)] = action
	return s.savePrefs()
}

// Preferences returns a copy of every remembered decision keyed by
// "field:source".
func (s *Store) Preferences() map[string]conflict.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]conflict.Action, len(s.prefs))
	for key, action := range s.prefs {
		out[key] = action
	}
	return out
}

// ClearPreferences drops every remembered decision.
func (s *Store) ClearPreferences() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = map[string]conflict.Action{}
	return s.savePrefs()
}

// Rules returns a copy of the persisted batch rules in stored order.
func (s *Store) Rules() []conflict.BatchRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conflict.BatchRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// AddRule appends a batch rule, replacing any existing rule with the
// same selector and pattern.
func (s *Store) AddRule(rule conflict.BatchRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	for i, existing := range s.rules {
		if existing.AppliesTo == rule.AppliesTo && strings.EqualFold(existing.Pattern, rule.Pattern) {
			s.rules[i] = rule
			return s.saveRules()
		}
	}
	s.rules = append(s.rules, rule)
	return s.saveRules()
}

// RecordRuleUse increments the usage counter of the identified rule.
// Unknown rules are ignored.
func (s *Store) RecordRuleUse(selector conflict.RuleSelector, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].AppliesTo == selector && strings.EqualFold(s.rules[i].Pattern, pattern) {
			s.rules[i].UsageCount++
			return s.saveRules()
		}
	}
	return nil
}

// RemoveRule deletes the identified rule. It reports whether a rule was
// removed.
func (s *Store) RemoveRule(selector conflict.RuleSelector, pattern string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].AppliesTo == selector && strings.EqualFold(s.rules[i].Pattern, pattern) {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return true, s.saveRules()
		}
	}
	return false, nil
}

// ClearRules drops every batch rule.
func (s *Store) ClearRules() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
	return s.saveRules()
}

var _ conflict.PreferenceStore = (*Store)(nil)

// String describes the store for diagnostics.
func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("prefstore(%d preferences, %d rules)", len(s.prefs), len(s.rules))
}
