// Run history stored in SQLite
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Run status values.
const (
	StatusOK      = "ok"
	StatusPartial = "partial" // image written, some video failed
	StatusFailed  = "failed"
)

// Run is one journal entry.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Source      string
	Output      string
	Shrink      float64
	Iterations  int
	Rotation    float64
	Resampling  string
	Frames      int
	Termination string
	Status      string
	Error       string
	Artifacts   []Artifact
}

// Artifact records the outcome of one video file.
type Artifact struct {
	Kind   string
	Path   string
	Frames int
	OK     bool
	Error  string
}

// Journal persists runs.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores run and its artifacts in one transaction.
func (j *Journal) Record(ctx context.Context, run Run) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, source, output, shrink, iterations,
		                  rotation, resampling, frames, termination, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Source, run.Output,
		run.Shrink, run.Iterations, run.Rotation, run.Resampling, run.Frames,
		run.Termination, run.Status, run.Error)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, a := range run.Artifacts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO artifacts (run_id, kind, path, frames, ok, error) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, a.Kind, a.Path, a.Frames, a.OK, a.Error)
		if err != nil {
			return fmt.Errorf("insert artifact %s/%s: %w", run.ID, a.Kind, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, started_at, finished_at, source, output, shrink, iterations,
	rotation, resampling, frames, termination, status, error`

// List returns the most recent runs first. limit <= 0 returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Artifacts, err = j.artifacts(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Get loads one run by id.
func (j *Journal) Get(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	run.Artifacts, err = j.artifacts(ctx, id)
	return run, err
}

func (j *Journal) artifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT kind, path, frames, ok, error FROM artifacts WHERE run_id = ? ORDER BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Kind, &a.Path, &a.Frames, &a.OK, &a.Error); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var started, finished int64
	err := s.Scan(&run.ID, &started, &finished, &run.Source, &run.Output, &run.Shrink,
		&run.Iterations, &run.Rotation, &run.Resampling, &run.Frames, &run.Termination,
		&run.Status, &run.Error)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	return run, nil
}
