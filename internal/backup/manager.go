package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"retag/internal/changelog"
	"retag/internal/config"
	"retag/internal/logging"
	"retag/internal/metadata"
	"retag/internal/services"
)

// ErrTransactionOpen is returned when Begin is called for a file that
// already has an active transaction.
var ErrTransactionOpen = errors.New("transaction already open for file")

// TagWriter restores field values without triggering another backup.
// The tag store implements it; the indirection keeps restore from
// recursing into Begin.
type TagWriter interface {
	ReadFields(path string) (metadata.Fields, error)
	WriteFieldsDirect(path string, fields metadata.Fields) error
}

// Transaction tracks one file between Begin and Commit or Rollback.
type Transaction struct {
	ID        string
	Resource  string
	Strategy  Strategy
	StartedAt time.Time

	oldFields   metadata.Fields
	newFields   metadata.Fields
	fingerprint string
	raw         []byte
	copyPath    string
	size        int64
	finalized   bool
}

// Manager coordinates per-file backup transactions across the
// configured strategy. At most one transaction may be active per file.
type Manager struct {
	strategy  Strategy
	backupDir string
	critical  map[string]struct{}
	memoryCap int64
	retention time.Duration

	log    *changelog.Store
	writer TagWriter
	logger *slog.Logger

	mu         sync.Mutex
	active     map[string]*Transaction
	memoryUsed int64
}

// NewManager validates the configured strategy and prepares the backup
// directories. The changelog store may be nil only when the strategy
// does not record changes.
func NewManager(cfg *config.Config, log *changelog.Store, writer TagWriter, logger *slog.Logger) (*Manager, error) {
	strategy, err := ParseStrategy(cfg.Backup.Strategy)
	if err != nil {
		return nil, err
	}
	if (strategy == StrategyChangelog || strategy == StrategySelective) && log == nil {
		return nil, services.Wrap(services.ErrConfiguration, "backup", "new",
			fmt.Sprintf("%s strategy requires a changelog store", strategy), nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		strategy:  strategy,
		backupDir: cfg.Paths.BackupDir,
		critical:  make(map[string]struct{}, len(cfg.Backup.CriticalFields)),
		memoryCap: int64(cfg.Backup.MaxMemoryMB) * 1024 * 1024,
		retention: time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour,
		log:       log,
		writer:    writer,
		logger:    logger,
		active:    make(map[string]*Transaction),
	}
	for _, field := range cfg.Backup.CriticalFields {
		m.critical[field] = struct{}{}
	}
	if strategy == StrategyFullCopy {
		if err := os.MkdirAll(m.copyDir(), 0o755); err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "new", "create backup directory", err)
		}
	}
	return m, nil
}

// Strategy returns the active strategy.
func (m *Manager) Strategy() Strategy {
	return m.strategy
}

func (m *Manager) copyDir() string {
	return filepath.Join(m.backupDir, string(m.strategy))
}

// Begin opens a transaction for the file and captures whatever the
// strategy needs to undo the upcoming write.
func (m *Manager) Begin(ctx context.Context, path string) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if _, open := m.active[path]; open {
		m.mu.Unlock()
		return nil, services.Wrap(services.ErrBackup, "backup", "begin", path, ErrTransactionOpen)
	}
	// Reserve the slot before snapshotting so a concurrent Begin for
	// the same file fails instead of double-snapshotting.
	placeholder := &Transaction{Resource: path}
	m.active[path] = placeholder
	m.mu.Unlock()

	tx, err := m.snapshot(path)
	if err != nil {
		m.mu.Lock()
		delete(m.active, path)
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	m.active[path] = tx
	if tx.Strategy == StrategyInMemory {
		m.memoryUsed += tx.size
	}
	m.mu.Unlock()

	m.logger.Debug("backup transaction started",
		logging.String(logging.FieldResource, path),
		logging.String(logging.FieldStrategy, string(tx.Strategy)),
		logging.String("transaction", tx.ID))
	return tx, nil
}

func (m *Manager) snapshot(path string) (*Transaction, error) {
	tx := &Transaction{
		ID:        uuid.NewString(),
		Resource:  path,
		Strategy:  m.strategy,
		StartedAt: time.Now().UTC(),
	}
	switch m.strategy {
	case StrategyDisabled:
		return tx, nil

	case StrategyChangelog:
		fields, err := m.writer.ReadFields(path)
		if err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "begin", "read current fields", err)
		}
		fingerprint, err := Fingerprint(path)
		if err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "begin", "fingerprint file", err)
		}
		tx.oldFields = fields
		tx.fingerprint = fingerprint
		return tx, nil

	case StrategySelective:
		fields, err := m.writer.ReadFields(path)
		if err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "begin", "read current fields", err)
		}
		fingerprint, err := Fingerprint(path)
		if err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "begin", "fingerprint file", err)
		}
		tx.oldFields = m.criticalSubset(fields)
		tx.fingerprint = fingerprint
		return tx, nil

	case StrategyInMemory:
		info, err := os.Stat(path)
		if err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "begin", "stat file", err)
		}
		m.mu.Lock()
		used := m.memoryUsed
		m.mu.Unlock()
		if m.memoryCap > 0 && used+info.Size() > m.memoryCap {
			return nil, services.Wrap(services.ErrBackup, "backup", "begin",
				fmt.Sprintf("memory cap exceeded: %d bytes held, %d requested, cap %d", used, info.Size(), m.memoryCap), nil)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "begin", "read file", err)
		}
		tx.raw = raw
		tx.size = int64(len(raw))
		return tx, nil

	case StrategyFullCopy:
		copyPath := filepath.Join(m.copyDir(), resourceKey(path)+"-"+tx.ID[:8]+filepath.Ext(path))
		size, err := copyFile(path, copyPath)
		if err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "begin", "copy file", err)
		}
		tx.copyPath = copyPath
		tx.size = size
		return tx, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "backup", "begin", fmt.Sprintf("unhandled strategy %q", m.strategy), nil)
}

// criticalSubset filters a field map down to the configured critical
// fields.
func (m *Manager) criticalSubset(fields metadata.Fields) metadata.Fields {
	subset := metadata.Fields{}
	for name, value := range fields {
		if _, ok := m.critical[name]; ok {
			subset[name] = value
		}
	}
	return subset
}

// Finalize records the new field values on the transaction. The
// changelog and selective strategies append their durable record here;
// selective entries carry only the critical subset. The write itself
// has already happened.
func (m *Manager) Finalize(ctx context.Context, tx *Transaction, newFields metadata.Fields) error {
	if tx == nil {
		return services.Wrap(services.ErrBackup, "backup", "finalize", "nil transaction", nil)
	}
	tx.newFields = newFields.Clone()
	switch tx.Strategy {
	case StrategyChangelog, StrategySelective:
		recordedNew := tx.newFields
		if tx.Strategy == StrategySelective {
			recordedNew = m.criticalSubset(tx.newFields)
		}
		_, err := m.log.Append(ctx, changelog.Entry{
			Resource:    tx.Resource,
			Operation:   "enrich",
			OldFields:   tx.oldFields,
			NewFields:   recordedNew,
			Fingerprint: tx.fingerprint,
		})
		if err != nil {
			return services.Wrap(services.ErrBackup, "backup", "finalize", "append changelog entry", err)
		}
	}
	tx.finalized = true
	return nil
}

// Commit closes the transaction and releases its resources. Committed
// full copies are kept on disk until retention cleanup removes them.
func (m *Manager) Commit(ctx context.Context, path string) error {
	m.mu.Lock()
	tx, open := m.active[path]
	if !open {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "backup", "commit", path, nil)
	}
	delete(m.active, path)
	if tx.Strategy == StrategyInMemory {
		m.memoryUsed -= tx.size
		tx.raw = nil
	}
	m.mu.Unlock()

	m.logger.Debug("backup transaction committed",
		logging.String(logging.FieldResource, path),
		logging.String("transaction", tx.ID))
	return nil
}

// Rollback undoes the pending write from the transaction's snapshot and
// closes it.
func (m *Manager) Rollback(ctx context.Context, path string) error {
	m.mu.Lock()
	tx, open := m.active[path]
	if !open {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "backup", "rollback", path, nil)
	}
	delete(m.active, path)
	if tx.Strategy == StrategyInMemory {
		m.memoryUsed -= tx.size
	}
	m.mu.Unlock()

	var err error
	switch tx.Strategy {
	case StrategyDisabled:
		m.logger.Warn("rollback requested with backups disabled; file left as written",
			logging.String(logging.FieldResource, path))
	case StrategyChangelog, StrategySelective:
		err = m.writer.WriteFieldsDirect(path, tx.oldFields)
	case StrategyInMemory:
		err = os.WriteFile(path, tx.raw, 0o644)
	case StrategyFullCopy:
		// The copy stays on disk as a durable record until retention
		// cleanup removes it.
		_, err = copyFile(tx.copyPath, path)
	}
	if err != nil {
		return services.Wrap(services.ErrBackup, "backup", "rollback", path, err)
	}
	m.logger.Info("rolled back pending write",
		logging.String(logging.FieldResource, path),
		logging.String(logging.FieldStrategy, string(tx.Strategy)))
	return nil
}

// RestoreResult names the durable record a restore was served from.
type RestoreResult struct {
	// Entry is set for changelog and selective restores.
	Entry *changelog.Entry
	// CopyPath is set when raw bytes were rewritten from a full copy.
	CopyPath string
}

// Restore rewinds the file to its most recent durable record, or to the
// changelog entry named by entryID when non-zero. Changelog restores
// rewrite the full recorded field map, selective restores re-apply only
// the recorded critical fields, and full-copy restores rewrite the raw
// bytes of the newest copy. The in-memory and disabled strategies keep
// no durable records.
func (m *Manager) Restore(ctx context.Context, path string, entryID int64) (*RestoreResult, error) {
	m.mu.Lock()
	_, open := m.active[path]
	m.mu.Unlock()
	if open {
		return nil, services.Wrap(services.ErrBackup, "backup", "restore", path, ErrTransactionOpen)
	}

	switch m.strategy {
	case StrategyChangelog, StrategySelective:
		return m.restoreFromChangelog(ctx, path, entryID)
	case StrategyFullCopy:
		if entryID != 0 {
			return nil, services.Wrap(services.ErrConfiguration, "backup", "restore",
				"entry selection requires a changelog-backed strategy", nil)
		}
		return m.restoreFromCopy(path)
	default:
		return nil, services.Wrap(services.ErrNotFound, "backup", "restore",
			fmt.Sprintf("the %s strategy keeps no durable records", m.strategy), nil)
	}
}

func (m *Manager) restoreFromChangelog(ctx context.Context, path string, entryID int64) (*RestoreResult, error) {
	var (
		entry *changelog.Entry
		err   error
	)
	if entryID != 0 {
		entry, err = m.log.At(ctx, entryID)
		if err == nil && entry.Resource != path {
			return nil, services.Wrap(services.ErrNotFound, "backup", "restore",
				fmt.Sprintf("entry %d does not belong to %s", entryID, path), nil)
		}
	} else {
		entry, err = m.log.Latest(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	restored := entry.OldFields
	if m.strategy == StrategySelective {
		// The record holds only critical fields; everything else keeps
		// its current value.
		current, err := m.writer.ReadFields(path)
		if err != nil {
			return nil, services.Wrap(services.ErrBackup, "backup", "restore", "read current fields", err)
		}
		restored = current.Clone()
		for name := range m.critical {
			if value, ok := entry.OldFields[name]; ok {
				restored[name] = value
			} else {
				delete(restored, name)
			}
		}
	}
	if err := m.writer.WriteFieldsDirect(path, restored); err != nil {
		return nil, services.Wrap(services.ErrBackup, "backup", "restore", "write previous fields", err)
	}
	m.logger.Info("restored previous metadata",
		logging.String(logging.FieldResource, path),
		logging.String(logging.FieldStrategy, string(m.strategy)),
		logging.Int64("entry", entry.ID))
	return &RestoreResult{Entry: entry}, nil
}

func (m *Manager) restoreFromCopy(path string) (*RestoreResult, error) {
	prefix := resourceKey(path) + "-"
	entries, err := os.ReadDir(m.copyDir())
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "backup", "restore", path, err)
	}
	var (
		newest     string
		newestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(m.copyDir(), entry.Name())
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return nil, services.Wrap(services.ErrNotFound, "backup", "restore",
			"no backup copy for "+path, nil)
	}
	if _, err := copyFile(newest, path); err != nil {
		return nil, services.Wrap(services.ErrBackup, "backup", "restore", "rewrite from copy", err)
	}
	m.logger.Info("restored raw bytes from copy",
		logging.String(logging.FieldResource, path),
		logging.String("copy", newest))
	return &RestoreResult{CopyPath: newest}, nil
}

// CleanupResult summarizes a retention pass.
type CleanupResult struct {
	ChangelogEntries int64
	CopyFiles        int
	BytesFreed       int64
	DryRun           bool
}

// Cleanup removes changelog entries and orphaned copy files older than
// the retention window. Files belonging to active transactions are
// never touched. With dryRun set nothing is deleted.
func (m *Manager) Cleanup(ctx context.Context, dryRun bool) (CleanupResult, error) {
	cutoff := time.Now().UTC().Add(-m.retention)
	result := CleanupResult{DryRun: dryRun}

	if m.log != nil {
		var (
			count int64
			err   error
		)
		if dryRun {
			count, err = m.log.CountOlderThan(ctx, cutoff)
		} else {
			count, err = m.log.DeleteOlderThan(ctx, cutoff)
		}
		if err != nil {
			return result, services.Wrap(services.ErrBackup, "backup", "cleanup", "prune changelog", err)
		}
		result.ChangelogEntries = count
	}

	m.mu.Lock()
	held := make(map[string]struct{}, len(m.active))
	for _, tx := range m.active {
		if tx.copyPath != "" {
			held[tx.copyPath] = struct{}{}
		}
	}
	m.mu.Unlock()

	entries, err := os.ReadDir(m.copyDir())
	if errors.Is(err, os.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return result, services.Wrap(services.ErrBackup, "backup", "cleanup", "list backup directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(m.copyDir(), entry.Name())
		if _, active := held[path]; active {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		result.CopyFiles++
		result.BytesFreed += info.Size()
		if !dryRun {
			if err := os.Remove(path); err != nil {
				m.logger.Warn("failed to remove expired backup copy",
					logging.String("path", path), logging.Error(err))
			}
		}
	}
	return result, nil
}

// Stats describes the manager's current footprint.
type Stats struct {
	Strategy           Strategy
	ActiveTransactions int
	MemoryUsedBytes    int64
	MemoryCapBytes     int64
	ChangelogEntries   int64
	CopyFiles          int
	CopyBytes          int64
}

// Stats reports active transactions, held memory, and stored history.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	stats := Stats{
		Strategy:           m.strategy,
		ActiveTransactions: len(m.active),
		MemoryUsedBytes:    m.memoryUsed,
		MemoryCapBytes:     m.memoryCap,
	}
	m.mu.Unlock()

	if m.log != nil {
		count, err := m.log.Count(ctx)
		if err != nil {
			return stats, err
		}
		stats.ChangelogEntries = count
	}
	entries, err := os.ReadDir(m.copyDir())
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if info, err := entry.Info(); err == nil {
				stats.CopyFiles++
				stats.CopyBytes += info.Size()
			}
		}
	}
	return stats, nil
}

// Active returns the open transactions sorted by start time.
func (m *Manager) Active() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, 0, len(m.active))
	for _, tx := range m.active {
		out = append(out, *tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}
