package changelog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"retag/internal/metadata"
	"retag/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; older databases are rejected rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Entry is one recorded field rewrite for a resource.
type Entry struct {
	ID          int64
	Resource    string
	Operation   string
	OldFields   metadata.Fields
	NewFields   metadata.Fields
	Fingerprint string
	CreatedAt   time.Time
}

// Store persists change history in SQLite so any write can be undone
// later without keeping file copies around.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the changelog database.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create changelog directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Append records one change and returns its row id.
func (s *Store) Append(ctx context.Context, entry Entry) (int64, error) {
	oldJSON, err := json.Marshal(entry.OldFields)
	if err != nil {
		return 0, fmt.Errorf("marshal old fields: %w", err)
	}
	newJSON, err := json.Marshal(entry.NewFields)
	if err != nil {
		return 0, fmt.Errorf("marshal new fields: %w", err)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO change_log (resource, operation, old_fields, new_fields, fingerprint, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Resource,
		entry.Operation,
		string(oldJSON),
		string(newJSON),
		entry.Fingerprint,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert change: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const entryColumns = "id, resource, operation, old_fields, new_fields, fingerprint, created_at"

// Latest returns the most recent entry for a resource.
func (s *Store) Latest(ctx context.Context, resource string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM change_log WHERE resource = ? ORDER BY id DESC LIMIT 1", resource)
	return scanEntry(row)
}

// At returns the entry with the given id.
func (s *Store) At(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM change_log WHERE id = ?", id)
	return scanEntry(row)
}

// History returns the entries for a resource, newest first, capped at
// limit when positive.
func (s *Store) History(ctx context.Context, resource string, limit int) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM change_log WHERE resource = ? ORDER BY id DESC"
	args := []any{resource}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes entries created before the cutoff and returns
// how many were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM change_log WHERE created_at < ?", cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("delete old changes: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the total number of recorded changes.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM change_log").Scan(&count); err != nil {
		return 0, fmt.Errorf("count changes: %w", err)
	}
	return count, nil
}

// CountOlderThan returns how many entries a cleanup with this cutoff
// would remove.
func (s *Store) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM change_log WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count old changes: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry     Entry
		oldJSON   string
		newJSON   string
		createdAt string
	)
	err := row.Scan(&entry.ID, &entry.Resource, &entry.Operation, &oldJSON, &newJSON, &entry.Fingerprint, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "changelog", "scan", "no matching entry", err)
	}
	if err != nil {
		return nil, fmt.Errorf("scan change: %w", err)
	}
	if err := json.Unmarshal([]byte(oldJSON), &entry.OldFields); err != nil {
		return nil, services.Wrap(services.ErrCorruptState, "changelog", "scan", "decode old fields", err)
	}
	if err := json.Unmarshal([]byte(newJSON), &entry.NewFields); err != nil {
		return nil, services.Wrap(services.ErrCorruptState, "changelog", "scan", "decode new fields", err)
	}
	entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, services.Wrap(services.ErrCorruptState, "changelog", "scan", "decode timestamp", err)
	}
	return &entry, nil
}
