package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"videocounter/internal/model"
	"videocounter/internal/repository"
)

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert adds a new run record to the database.
func (r *RunRepository) Insert(ctx context.Context, run *model.Run) error {
	departures, err := encodeDepartures(run.Departures)
	if err != nil {
		return err
	}

	r.db.Lock()
	defer r.db.Unlock()

	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO runs (id, video_name, segmented, segments, frames, failed_frames,
			departures, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.VideoName, run.Segmented, run.Segments, run.Frames, run.FailedFrames,
		departures, string(run.Status), run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Update stores the mutable fields of a run.
func (r *RunRepository) Update(ctx context.Context, run *model.Run) error {
	departures, err := encodeDepartures(run.Departures)
	if err != nil {
		return err
	}

	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		UPDATE runs SET segments = ?, frames = ?, failed_frames = ?, departures = ?,
			status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, run.Segments, run.Frames, run.FailedFrames, departures,
		string(run.Status), run.Error, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, video_name, segmented, segments, frames, failed_frames,
			departures, status, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRecent returns the latest runs, newest first.
func (r *RunRepository) GetRecent(ctx context.Context, limit int) ([]model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, video_name, segmented, segments, frames, failed_frames,
			departures, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.Run, error) {
	var (
		run        model.Run
		status     string
		departures string
		finishedAt sql.NullTime
	)
	err := s.Scan(&run.ID, &run.VideoName, &run.Segmented, &run.Segments, &run.Frames,
		&run.FailedFrames, &departures, &status, &run.Error, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(departures), &run.Departures); err != nil {
		return nil, fmt.Errorf("decode departures: %w", err)
	}
	return &run, nil
}

func encodeDepartures(departures map[string]int) (string, error) {
	if departures == nil {
		return "{}", nil
	}
	data, err := json.Marshal(departures)
	if err != nil {
		return "", fmt.Errorf("encode departures: %w", err)
	}
	return string(data), nil
}
