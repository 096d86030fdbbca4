// Package history records finished generation runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/workflow"
)

// ErrNotFound is returned when a run id has no history entry.
var ErrNotFound = errors.New("history: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS run_history (
	run_id            TEXT PRIMARY KEY,
	domain            TEXT NOT NULL,
	data_format       TEXT NOT NULL,
	num_records       INTEGER NOT NULL,
	generated_records INTEGER NOT NULL,
	status            TEXT NOT NULL,
	file_path         TEXT NOT NULL DEFAULT '',
	error_message     TEXT NOT NULL DEFAULT '',
	started_at        TIMESTAMP NOT NULL,
	finished_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_history_started_at ON run_history(started_at DESC);
`

// Entry is one recorded run.
type Entry struct {
	RunID            string    `db:"run_id" json:"run_id"`
	Domain           string    `db:"domain" json:"domain"`
	DataFormat       string    `db:"data_format" json:"data_format"`
	NumRecords       int       `db:"num_records" json:"num_records"`
	GeneratedRecords int       `db:"generated_records" json:"generated_records"`
	Status           string    `db:"status" json:"status"`
	FilePath         string    `db:"file_path" json:"file_path,omitempty"`
	ErrorMessage     string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt        time.Time `db:"started_at" json:"started_at"`
	FinishedAt       time.Time `db:"finished_at" json:"finished_at"`
}

// Store persists run history.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open creates (or opens) the SQLite database at path and applies the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing database handle; used by tests.
func NewWithDB(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record writes one finished run. Any terminal status is recorded.
func (s *Store) Record(ctx context.Context, state *workflow.GenerationState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_history
			(run_id, domain, data_format, num_records, generated_records,
			 status, file_path, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.RunID,
		state.Domain,
		state.DataFormat,
		state.NumRecords,
		len(state.GeneratedData),
		string(state.Status),
		state.FilePath,
		state.ErrorMessage,
		state.StartedAt,
		state.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("history: record run %s: %w", state.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries := []Entry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT run_id, domain, data_format, num_records, generated_records,
		       status, file_path, error_message, started_at, finished_at
		FROM run_history
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	return entries, nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, runID string) (Entry, error) {
	var entry Entry
	err := s.db.GetContext(ctx, &entry, `
		SELECT run_id, domain, data_format, num_records, generated_records,
		       status, file_path, error_message, started_at, finished_at
		FROM run_history
		WHERE run_id = ?`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("history: get run %s: %w", runID, err)
	}
	return entry, nil
}
