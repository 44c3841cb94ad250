// Package store persists finished call records to SQLite. The contract is
// write-only: the orchestration path appends records at session end and
// never reads them back.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/switchboard-ai/switchboard/pkg/call"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	call_id        TEXT PRIMARY KEY,
	caller         TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	ended_at       TIMESTAMP NOT NULL,
	error_count    INTEGER NOT NULL DEFAULT 0,
	error_category TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS turns (
	call_id    TEXT NOT NULL REFERENCES calls(call_id) ON DELETE CASCADE,
	number     INTEGER NOT NULL,
	speaker    TEXT NOT NULL,
	text       TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP NOT NULL,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (call_id, number)
);
`

// Store is a SQLite-backed call recorder.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at dsn and applies the
// schema.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}

	// One writer at a time keeps modernc's file locking happy.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCall persists one finished call with its turns. Idempotent by call
// id: a repeated save replaces the previous record in full.
func (s *Store) SaveCall(ctx context.Context, rec call.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO calls
			(call_id, caller, state, started_at, ended_at, error_count, error_category)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.CallID, rec.Caller, rec.State, rec.Started.UTC(), rec.Ended.UTC(),
		rec.ErrorCount, rec.ErrorCategory)
	if err != nil {
		return fmt.Errorf("store: save call %s: %w", rec.CallID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE call_id = ?`, rec.CallID); err != nil {
		return fmt.Errorf("store: clear turns %s: %w", rec.CallID, err)
	}

	for _, turn := range rec.Turns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO turns
				(call_id, number, speaker, text, started_at, ended_at, latency_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.CallID, turn.Number, turn.Speaker, turn.Text,
			turn.StartedAt.UTC(), turn.EndedAt.UTC(),
			int64(turn.Latency/time.Millisecond))
		if err != nil {
			return fmt.Errorf("store: save turn %s/%d: %w", rec.CallID, turn.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", rec.CallID, err)
	}
	return nil
}

// Verify Store implements the recorder contract at compile time.
var _ call.Recorder = (*Store)(nil)
