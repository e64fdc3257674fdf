package common

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunStatus is the terminal state of a pipeline run
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ledgerTimeFormat has fixed width so timestamps sort lexically
const ledgerTimeFormat = "2006-01-02T15:04:05.000000000Z"

// RunRecord is one row of the run ledger.
type RunRecord struct {
	ID               string
	Topic            string
	Title            string
	Description      string
	Status           RunStatus
	FailedStage      string
	Error            string
	ArtifactPath     string
	NarrationSeconds float64
	Clips            int
	Segments         int
	StartedAt        time.Time
	FinishedAt       time.Time
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	topic             TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	failed_stage      TEXT NOT NULL DEFAULT '',
	error             TEXT NOT NULL DEFAULT '',
	artifact_path     TEXT NOT NULL DEFAULT '',
	narration_seconds REAL NOT NULL DEFAULT 0,
	clips             INTEGER NOT NULL DEFAULT 0,
	segments          INTEGER NOT NULL DEFAULT 0,
	started_at        TEXT NOT NULL,
	finished_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// RunLedger keeps a local history of pipeline runs in SQLite.
type RunLedger struct {
	db *sql.DB
}

// OpenRunLedger opens (creating if needed) the ledger database at path.
func OpenRunLedger(ctx context.Context, path string) (*RunLedger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &RunLedger{db: db}, nil
}

// Close releases the database handle
func (l *RunLedger) Close() error {
	return l.db.Close()
}

// Record inserts or replaces the row for rec.ID.
func (l *RunLedger) Record(ctx context.Context, rec RunRecord) error {
	_, err := l.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs
	(id, topic, title, description, status, failed_stage, error, artifact_path,
	 narration_seconds, clips, segments, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Topic, rec.Title, rec.Description, string(rec.Status), rec.FailedStage,
		rec.Error, rec.ArtifactPath, rec.NarrationSeconds, rec.Clips, rec.Segments,
		rec.StartedAt.UTC().Format(ledgerTimeFormat), rec.FinishedAt.UTC().Format(ledgerTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *RunLedger) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id, topic, title, description, status, failed_stage, error, artifact_path,
	narration_seconds, clips, segments, started_at, finished_at
FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec             RunRecord
			status          string
			started, finish string
		)
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Title, &rec.Description, &status,
			&rec.FailedStage, &rec.Error, &rec.ArtifactPath, &rec.NarrationSeconds,
			&rec.Clips, &rec.Segments, &started, &finish); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Status = RunStatus(status)
		rec.StartedAt, _ = time.Parse(ledgerTimeFormat, started)
		rec.FinishedAt, _ = time.Parse(ledgerTimeFormat, finish)
		out = append(out, rec)
	}
	return out, rows.Err()
}
