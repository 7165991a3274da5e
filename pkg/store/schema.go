package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// SchemaVersion is recorded in schema_version after a successful open.
// v1: per-modality tables
// v2: window context columns on every table
// v3: raw_data on screen_captures, sample_count on pointer_events
const SchemaVersion = 3

// common columns shared by every event table. Modality specific columns follow.
const commonColumns = `
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp      TEXT    NOT NULL,
	session_id     TEXT    NOT NULL,
	modality       TEXT    NOT NULL,
	app_name       TEXT    NOT NULL DEFAULT 'Unknown',
	window_title   TEXT    NOT NULL DEFAULT 'Unknown',`

var tableColumns = map[event.Table]string{
	event.TableScreen: `
	width           INTEGER NOT NULL,
	height          INTEGER NOT NULL,
	quality         REAL    NOT NULL,
	compressed_data BLOB    NOT NULL,
	raw_data        BLOB,`,
	event.TableKeystroke: `
	key_name TEXT    NOT NULL,
	char     TEXT,
	special  INTEGER NOT NULL DEFAULT 0,`,
	event.TablePointerEvent: `
	x            INTEGER,
	y            INTEGER,
	button       TEXT,
	pressed      INTEGER,
	dx           INTEGER,
	dy           INTEGER,
	samples      TEXT,
	sample_count INTEGER NOT NULL DEFAULT 0,`,
	event.TableAppUsage: `
	action      TEXT    NOT NULL CHECK (action IN ('start','end')),
	duration_ms INTEGER NOT NULL DEFAULT 0,`,
	event.TableFileActivity: `
	action    TEXT    NOT NULL CHECK (action IN ('created','modified','deleted','moved')),
	path      TEXT    NOT NULL,
	dest_path TEXT,
	size      INTEGER NOT NULL DEFAULT 0,
	is_dir    INTEGER NOT NULL DEFAULT 0,`,
	event.TableSpreadsheetCell: `
	workbook TEXT NOT NULL,
	sheet    TEXT,
	cell     TEXT NOT NULL,
	value    TEXT,
	formula  TEXT,`,
	event.TableBrowserInteraction: `
	kind       TEXT NOT NULL CHECK (kind IN ('navigate','click','keypress')),
	url        TEXT,
	title      TEXT,
	x          INTEGER,
	y          INTEGER,
	key_name   TEXT,
	screenshot BLOB,`,
	event.TableDocumentState: `
	document TEXT NOT NULL,
	viewer   TEXT NOT NULL,
	page     INTEGER,`,
}

// activity_patterns is filled by downstream analysers and has no modality.
const activityPatternsDDL = `
CREATE TABLE IF NOT EXISTS activity_patterns (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp      TEXT NOT NULL,
	session_id     TEXT NOT NULL,
	pattern_type   TEXT NOT NULL,
	description    TEXT,
	data_json      TEXT CHECK (data_json IS NULL OR json_valid(data_json)),
	confidence     REAL,
	encrypted_blob BLOB
);`

// Column is an additive migration for stores created by older versions.
type Column struct {
	Table  event.Table
	Name   string
	Def    string
	AddsIn int
}

var columnMigrations = []Column{
	{event.TableScreen, "raw_data", "BLOB", 3},
	{event.TablePointerEvent, "sample_count", "INTEGER NOT NULL DEFAULT 0", 3},
}

func init() {
	for _, t := range eventTables() {
		columnMigrations = append(columnMigrations,
			Column{t, "app_name", "TEXT NOT NULL DEFAULT 'Unknown'", 2},
			Column{t, "window_title", "TEXT NOT NULL DEFAULT 'Unknown'", 2},
		)
	}
}

// eventTables lists the tables written by the pipeline.
func eventTables() []event.Table {
	out := make([]event.Table, 0, len(tableColumns))
	for _, t := range event.Tables() {
		if _, ok := tableColumns[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func createTableDDL(t event.Table) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (%[2]s%[3]s
	encrypted_blob BLOB
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_ts ON %[1]s(timestamp);
CREATE INDEX IF NOT EXISTS idx_%[1]s_session_ts ON %[1]s(session_id, timestamp);`,
		t, commonColumns, tableColumns[t])
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER NOT NULL,
	applied_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	from, err := currentVersion(ctx, tx)
	if err != nil {
		return err
	}

	// Columns are added before CREATE INDEX statements can reference them.
	for _, c := range columnMigrations {
		if from >= c.AddsIn {
			continue
		}
		exists, err := tableExists(ctx, tx, string(c.Table))
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		has, err := columnExists(ctx, tx, string(c.Table), c.Name)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.Table, c.Name, c.Def)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", c.Table, c.Name, err)
		}
		s.logger.Info("schema column added", zap.String("table", string(c.Table)), zap.String("column", c.Name))
	}

	for _, t := range eventTables() {
		if _, err := tx.ExecContext(ctx, createTableDDL(t)); err != nil {
			return fmt.Errorf("create table %s: %w", t, err)
		}
	}
	if _, err := tx.ExecContext(ctx, activityPatternsDDL); err != nil {
		return fmt.Errorf("create table %s: %w", event.TableActivityPattern, err)
	}
	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_activity_patterns_ts ON activity_patterns(timestamp);
CREATE INDEX IF NOT EXISTS idx_activity_patterns_session_ts ON activity_patterns(session_id, timestamp);`); err != nil {
		return fmt.Errorf("index %s: %w", event.TableActivityPattern, err)
	}

	if from < SchemaVersion {
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version(version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		s.logger.Info("schema ready", zap.Int("from", from), zap.Int("to", SchemaVersion))
	}
	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func currentVersion(ctx context.Context, q querier) (int, error) {
	var v sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func tableExists(ctx context.Context, q querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

func columnExists(ctx context.Context, q querier, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, ctype      string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("inspect %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
