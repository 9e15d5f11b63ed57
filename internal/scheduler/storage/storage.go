package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/billing-inspector/internal/scheduler/domain"
	"github.com/jmoiron/sqlx"
)

// Storage records pipeline runs for the scheduler
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// StartRun inserts a RUNNING row for a scheduled run
func (s *Storage) StartRun(ctx context.Context, runID, pipelineID, triggerID string) error {
	query := `
		INSERT INTO runs (run_id, pipeline_id, trigger_id, status, created_at, started_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), NOW())
	`

	if _, err := s.db.ExecContext(ctx, query, runID, pipelineID, triggerID, domain.RunStatusRunning); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	s.logger.Info("Run started",
		slog.String("run_id", runID),
		slog.String("pipeline_id", pipelineID),
		slog.String("trigger_id", triggerID),
	)
	return nil
}

// ClaimRun moves a requested run from PENDING to RUNNING. Only one scheduler
// replica can claim a given run.
func (s *Storage) ClaimRun(ctx context.Context, runID string) (*domain.Run, error) {
	query := `
		UPDATE runs
		SET status = $1,
		    started_at = NOW(),
		    updated_at = NOW()
		WHERE run_id = $2
		  AND status = $3
		RETURNING run_id, pipeline_id, trigger_id, status
	`

	var run domain.Run
	err := s.db.QueryRowxContext(ctx, query, domain.RunStatusRunning, runID, domain.RunStatusPending).
		Scan(&run.RunID, &run.PipelineID, &run.TriggerID, &run.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Run already claimed or not found", slog.String("run_id", runID))
			return nil, domain.ErrRunAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim run: %w", err)
	}

	s.logger.Info("Run claimed",
		slog.String("run_id", runID),
		slog.String("pipeline_id", run.PipelineID),
	)
	return &run, nil
}

// FinishRun stores the terminal status and outcome of a run
func (s *Storage) FinishRun(ctx context.Context, runID, status, message, errorMsg string) error {
	query := `
		UPDATE runs
		SET status = $1,
		    message = $2,
		    error_message = $3,
		    finished_at = NOW(),
		    updated_at = NOW()
		WHERE run_id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, message, errorMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrRunNotFound
	}

	s.logger.Info("Run finished",
		slog.String("run_id", runID),
		slog.String("status", status),
	)
	return nil
}
