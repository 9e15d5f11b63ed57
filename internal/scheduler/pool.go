package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/billing-inspector/internal/scheduler/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (s *Scheduler) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < s.concurrency; i++ {
		s.wg.Add(1)
		go s.workerLoop(ctx, i)
	}

	s.logger.Info("Worker pool spawned",
		slog.Int("worker_count", s.concurrency),
		slog.String("worker_id", s.workerID),
	)
}

// workerLoop takes tasks until the scheduler stops
func (s *Scheduler) workerLoop(ctx context.Context, workerNum int) {
	defer s.wg.Done()

	workerName := fmt.Sprintf("%s-%d", s.workerID, workerNum)
	s.logger.Debug("Worker goroutine started", slog.String("worker_name", workerName))

	for {
		select {
		case <-s.stopChan:
			s.logger.Debug("Worker goroutine stopping", slog.String("worker_name", workerName))
			return

		case <-ctx.Done():
			s.logger.Debug("Worker goroutine stopping - context canceled", slog.String("worker_name", workerName))
			return

		case task := <-s.tasks:
			s.logger.Info("Worker received task",
				slog.String("worker_name", workerName),
				slog.String("pipeline_id", task.PipelineID),
				slog.String("run_id", task.RunID),
			)

			_, err := s.processTask(ctx, task)
			if task.Done != nil {
				task.Done(err)
			}
		}
	}
}

// shouldRequeue reports whether a failed manual run request should be redelivered
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrRunAlreadyClaimed) {
		return false
	}

	if errors.Is(err, domain.ErrInvalidTrigger) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
