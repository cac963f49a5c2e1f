// Package runs keeps a local record of training and evaluation runs in a
// sqlite database, mlflow-style: one row per run with its status and times.
package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rlworks/rollout/pkg/core"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("runs: run not found")

// Run is one tracked training or evaluation run.
type Run struct {
	ID         string
	Experiment string
	Algo       string
	Env        string
	Status     core.RunStatus
	StartTime  time.Time
	EndTime    time.Time // zero while the run is live
}

// Store is a sqlite-backed run tracker.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	experiment TEXT NOT NULL,
	algo       TEXT NOT NULL,
	env        TEXT NOT NULL,
	status     TEXT NOT NULL,
	start_time TIMESTAMP NOT NULL,
	end_time   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment);
`

// Open opens (creating if necessary) the run database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("runs: failed to open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runs: failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create records a new run in RUNNING state and returns it.
func (s *Store) Create(ctx context.Context, experiment, algo, env string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		Experiment: experiment,
		Algo:       algo,
		Env:        env,
		Status:     core.StatusRunning,
		StartTime:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, experiment, algo, env, status, start_time) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Experiment, run.Algo, run.Env, string(run.Status), run.StartTime)
	if err != nil {
		return nil, fmt.Errorf("runs: failed to insert run: %w", err)
	}
	return run, nil
}

// Finish moves a run to a terminal status and stamps its end time.
func (s *Store) Finish(ctx context.Context, id string, status core.RunStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("runs: %s is not a terminal status", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, end_time = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("runs: failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, experiment, algo, env, status, start_time, end_time FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List returns all runs, most recently started first.
func (s *Store) List(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment, algo, env, status, start_time, end_time FROM runs ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("runs: failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var status string
	var end sql.NullTime
	if err := s.Scan(&run.ID, &run.Experiment, &run.Algo, &run.Env, &status, &run.StartTime, &end); err != nil {
		return nil, err
	}
	run.Status = core.RunStatus(status)
	if end.Valid {
		run.EndTime = end.Time
	}
	return &run, nil
}
