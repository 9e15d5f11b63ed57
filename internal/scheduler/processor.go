package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/scheduler/domain"
)

// recordTimeout bounds run store writes made after the job context ended
const recordTimeout = 5 * time.Second

// processTask claims or records the run, executes its job with a timeout and
// stores the outcome. Job failures never escape as panics.
func (s *Scheduler) processTask(ctx context.Context, task *domain.Task) (string, error) {
	log := s.logger.With(
		slog.String("run_id", task.RunID),
		slog.String("pipeline_id", task.PipelineID),
		slog.String("trigger_id", task.TriggerID),
	)

	pipelineID := task.PipelineID
	if s.store != nil {
		if task.Manual {
			run, err := s.store.ClaimRun(ctx, task.RunID)
			if err != nil {
				if errors.Is(err, domain.ErrRunAlreadyClaimed) {
					log.Warn("Run already claimed, skipping")
					return "", fmt.Errorf("run %s: %w", task.RunID, err)
				}
				log.Error("Failed to claim run", slog.Any("error", err))
				return "", domain.NewRetryableError(fmt.Errorf("failed to claim run: %w", err))
			}
			if run.PipelineID != pipelineID {
				log.Warn("Run request disagrees with stored pipeline",
					slog.String("stored_pipeline_id", run.PipelineID),
				)
				pipelineID = run.PipelineID
			}
		} else if err := s.store.StartRun(ctx, task.RunID, pipelineID, task.TriggerID); err != nil {
			log.Error("Failed to record run start", slog.Any("error", err))
		}
	}

	job, ok := s.jobs[pipelineID]
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, pipelineID)
		log.Error("No job for pipeline")
		s.finish(ctx, task.RunID, domain.RunStatusFailed, "", err.Error())
		return "", err
	}

	started := time.Now()
	jobCtx := ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	message, err := s.execute(jobCtx, job)
	elapsed := time.Since(started)

	if err != nil {
		log.Error("Job failed",
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		s.finish(ctx, task.RunID, domain.RunStatusFailed, message, err.Error())
		return message, err
	}

	log.Info("Job completed", slog.Duration("elapsed", elapsed))
	s.finish(ctx, task.RunID, domain.RunStatusCompleted, message, "")
	return message, nil
}

// execute runs the job and turns a panic into an error
func (s *Scheduler) execute(ctx context.Context, job Job) (message string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", domain.ErrJobPanicked, r)
		}
	}()

	return job.Run(ctx)
}

// finish records the outcome even when ctx is already canceled
func (s *Scheduler) finish(ctx context.Context, runID, status, message, errorMsg string) {
	if s.store == nil {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.store.FinishRun(recordCtx, runID, status, message, errorMsg); err != nil {
		s.logger.Error("Failed to record run outcome",
			slog.String("run_id", runID),
			slog.String("status", status),
			slog.Any("error", err),
		)
	}
}
