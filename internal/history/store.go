// Package history keeps a SQLite ledger of completed pipeline runs. One row
// per run attempt, written after the run finishes, read by the history
// command. The ledger is informational; losing it never affects resume
// behavior, which lives in the state store.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"narrator/internal/fileutil"
)

// Record is one finished pipeline run.
type Record struct {
	ID          int64
	RunID       string
	Fingerprint string
	InputPath   string
	OutputPath  string
	Status      string
	RetryCount  int
	ErrorText   string
	Duration    time.Duration
	FinishedAt  time.Time
}

// Store wraps the run-history database.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    input_path TEXT NOT NULL,
    output_path TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    error_text TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);
`

// Open initializes or connects to the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := fileutil.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts one finished run.
func (s *Store) Append(ctx context.Context, rec Record) error {
	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, fingerprint, input_path, output_path, status, retry_count, error_text, duration_ms, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Fingerprint, rec.InputPath, rec.OutputPath, rec.Status,
		rec.RetryCount, rec.ErrorText, rec.Duration.Milliseconds(), finished.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append run history: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, fingerprint, input_path, output_path, status, retry_count, error_text, duration_ms, finished_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		var finished string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Fingerprint, &rec.InputPath, &rec.OutputPath,
			&rec.Status, &rec.RetryCount, &rec.ErrorText, &durationMS, &finished); err != nil {
			return nil, fmt.Errorf("scan run history: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, parseErr := time.Parse(time.RFC3339Nano, finished); parseErr == nil {
			rec.FinishedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run history: %w", err)
	}
	return records, nil
}
