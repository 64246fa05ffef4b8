// ABOUTME: SQLite storage engine using modernc.org/sqlite
// ABOUTME: Owns the database file, WAL configuration, schema creation and the per-operation transaction helper

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Connection pragmas. journal_mode is persistent in the file; the rest
// apply per connection, so they ride on the DSN and reach every pooled
// handle.
const dsnPragmas = "?_pragma=journal_mode(WAL)" +
	"&_pragma=foreign_keys(1)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(FULL)"

const (
	// busyAttempts bounds the internal retry loop for lock contention.
	busyAttempts = 3
	// busyBackoff is the initial sleep between retries; it doubles per
	// attempt.
	busyBackoff = 50 * time.Millisecond
)

// SQLiteStore owns the on-disk database file. All repository methods
// hang off it; nothing else touches the file. Concurrent writers are
// serialized by SQLite's WAL discipline plus the busy timeout — there
// is no application-level write mutex.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if absent) the database at path and
// initializes the schema. Construction completes before any handle is
// handed out, which is the one-time gate serializing schema init
// against all other access.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w: %v", ErrUnavailable, err)
	}

	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w: %v", ErrUnavailable, err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w: %v", ErrUnavailable, err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the tables if they don't exist. Safe to run
// repeatedly.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			user_id    TEXT PRIMARY KEY,
			attributes TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS profiles (
			profile_id TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			config     TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_profiles_user ON profiles(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (profile_id) REFERENCES profiles(profile_id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_profile ON messages(profile_id, seq);

		CREATE TABLE IF NOT EXISTS stats (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			category   TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_stats_created ON stats(created_at);

		CREATE TABLE IF NOT EXISTS progress (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id TEXT NOT NULL,
			category   TEXT NOT NULL,
			item       TEXT NOT NULL,
			status     TEXT NOT NULL,
			completion INTEGER NOT NULL DEFAULT 0,
			notes      TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (profile_id, category, item),
			FOREIGN KEY (profile_id) REFERENCES profiles(profile_id)
		);

		CREATE TABLE IF NOT EXISTS summaries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id TEXT NOT NULL,
			period     TEXT NOT NULL,
			content    TEXT NOT NULL,
			key_topics TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (profile_id) REFERENCES profiles(profile_id)
		);

		CREATE INDEX IF NOT EXISTS idx_summaries_profile ON summaries(profile_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Checkpoint merges the write-ahead log into the main database file and
// truncates it. The backup manager calls this so a plain file copy of
// Path() is a complete database. Blocks writers only for the
// checkpoint itself, never for the copy that follows.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("wal checkpoint: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Healthy runs the trivial read-only probe backing the /health
// endpoint and reports row counts per entity.
func (s *SQLiteStore) Healthy(ctx context.Context) (*Health, error) {
	var h Health
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM profiles),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM stats)
	`)
	if err := row.Scan(&h.Users, &h.Profiles, &h.Messages, &h.Stats); err != nil {
		return nil, fmt.Errorf("health probe: %w: %v", ErrUnavailable, err)
	}
	return &h, nil
}

// withTx runs fn inside a single transaction — the atomicity unit for
// every repository operation. The transaction is rolled back on every
// failing exit path. Lock contention is retried up to busyAttempts
// with doubling backoff before surfacing ErrBusy; the retries are
// invisible to callers except as latency.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	backoff := busyBackoff
	var lastErr error
	for attempt := 1; attempt <= busyAttempts; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil || !isBusy(err) {
			return err
		}
		lastErr = err
		s.logger.Debug("database busy, retrying", "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", ErrBusy, lastErr)
}

func (s *SQLiteStore) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// classify maps raw driver errors to the store's error taxonomy so
// callers never see low-level driver errors. Sentinel errors pass
// through untouched.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isSentinel(err):
		return err
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, ErrForeignKey)
	case isBusy(err):
		return fmt.Errorf("%s: %w: %v", op, ErrBusy, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
}

func isSentinel(err error) bool {
	for _, sentinel := range []error{ErrNotFound, ErrForeignKey, ErrBusy, ErrUnavailable} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// isForeignKeyViolation checks for a SQLite FOREIGN KEY constraint error.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// isBusy checks for SQLite lock contention (SQLITE_BUSY / SQLITE_LOCKED).
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "SQLITE_LOCKED")
}

// marshalDoc encodes an opaque attribute document for storage. A nil
// map stores as the empty document.
func marshalDoc(doc map[string]any) (string, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	return string(data), nil
}

func unmarshalDoc(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return t, nil
}

// formatTime stores timestamps as fixed-width UTC RFC3339 so
// lexicographic comparison in SQL matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// nowUTC truncates to seconds so returned structs round-trip exactly
// through the stored RFC3339 representation.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
