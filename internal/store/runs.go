package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run status values.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunAborted  = "aborted"
)

// Run records one sweep invocation.
type Run struct {
	ID          string
	BBox        string
	SkipTo      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Requests    int
	Encountered int
	Inserted    int
	Status      string
	ResumePath  string
	Error       string
}

// RunResult is what FinishRun records.
type RunResult struct {
	Requests    int
	Encountered int
	Inserted    int
	ResumePath  string
	Err         error
}

// StartRun inserts a running sweep record and returns its id.
func (s *Store) StartRun(ctx context.Context, bbox, skipTo string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, bbox, skip_to, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, bbox, skipTo, time.Now().Unix(), RunRunning)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run complete, or aborted when res.Err is set.
func (s *Store) FinishRun(ctx context.Context, id string, res RunResult) error {
	status := RunComplete
	errText := ""
	if res.Err != nil {
		status = RunAborted
		errText = res.Err.Error()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, requests = ?, encountered = ?, inserted = ?,
			status = ?, resume_path = ?, error = ?
		WHERE id = ?`,
		time.Now().Unix(), res.Requests, res.Encountered, res.Inserted,
		status, res.ResumePath, errText, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bbox, skip_to, started_at, finished_at, requests, encountered, inserted,
			status, resume_path, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.BBox, &r.SkipTo, &started, &finished,
			&r.Requests, &r.Encountered, &r.Inserted, &r.Status, &r.ResumePath, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			r.FinishedAt = time.Unix(finished.Int64, 0)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
