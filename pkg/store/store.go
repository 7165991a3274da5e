// Package store persists captured events to an embedded SQLite database with
// one table per modality.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// DatabaseFileName is the store file inside the private data directory.
const DatabaseFileName = "activity.db"

// TimeLayout is fixed width so timestamp columns sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// ErrUnknownPayload is returned for events whose payload has no table.
var ErrUnknownPayload = errors.New("no table for event payload")

// Store wraps the database handle. Only the persistence worker writes to it.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// DataDir returns the private data directory under an install root.
func DataDir(installDir string) string {
	return filepath.Join(installDir, "data")
}

// EnsureDataDir creates the data directory with owner-only permissions.
func EnsureDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return fmt.Errorf("restrict data dir: %w", err)
	}
	return nil
}

// Open opens or creates the database at path and applies pending migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := EnsureDataDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps writes serialized and pragmas applied once.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Version reports the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int, error) {
	return currentVersion(ctx, s.db)
}

// Count returns the number of rows in a table.
func (s *Store) Count(ctx context.Context, t event.Table) (int64, error) {
	if !knownTable(t) {
		return 0, fmt.Errorf("unknown table %q", t)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t, err)
	}
	return n, nil
}

// Counts returns row counts for every managed table.
func (s *Store) Counts(ctx context.Context) (map[event.Table]int64, error) {
	out := make(map[event.Table]int64, len(event.Tables()))
	for _, t := range event.Tables() {
		n, err := s.Count(ctx, t)
		if err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, nil
}

func knownTable(t event.Table) bool {
	for _, known := range event.Tables() {
		if known == t {
			return true
		}
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
