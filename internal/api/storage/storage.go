package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/api/domain"
	"github.com/cuongbtq/billing-inspector/internal/api/model"
	"github.com/jmoiron/sqlx"
)

const runColumns = `
	run_id, pipeline_id, trigger_id, status, message, error_message,
	created_at, started_at, finished_at, updated_at
`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) CreateRun(ctx context.Context, run *model.Run) error {
	query := `
		INSERT INTO runs (
			run_id, pipeline_id, trigger_id, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		run.RunID,
		run.PipelineID,
		run.TriggerID,
		run.Status,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// FailRun marks a still PENDING run as FAILED
func (s *Storage) FailRun(ctx context.Context, runID, errorMsg string) error {
	query := `
		UPDATE runs
		SET status = $1, error_message = $2, finished_at = NOW(), updated_at = NOW()
		WHERE run_id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.RunStatusFailed, errorMsg, runID, domain.RunStatusPending)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	return nil
}

func (s *Storage) GetRunByID(ctx context.Context, runID string) (*model.Run, error) {
	var run model.Run
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = $1`

	err := s.db.GetContext(ctx, &run, query, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

type RunFilter struct {
	PipelineID string
	Status     string
	PageSize   int
	Cursor     *RunCursor
}

type RunCursor struct {
	CreatedAt time.Time
	RunID     string
}

// ListRuns returns up to PageSize+1 runs, newest first, so callers can tell
// whether another page exists
func (s *Storage) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.PipelineID != "" {
		query += fmt.Sprintf(" AND pipeline_id = $%d", argIdx)
		args = append(args, filter.PipelineID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, run_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.RunID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, run_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var runs []model.Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}
