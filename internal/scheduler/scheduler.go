package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/config"
	"github.com/cuongbtq/billing-inspector/internal/scheduler/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
)

// Job is the body of a pipeline. The returned text is kept as the run message.
type Job interface {
	Run(ctx context.Context) (string, error)
}

// JobFunc adapts a function to Job
type JobFunc func(ctx context.Context) (string, error)

// Run calls f(ctx)
func (f JobFunc) Run(ctx context.Context) (string, error) {
	return f(ctx)
}

// RunStore records run history
type RunStore interface {
	StartRun(ctx context.Context, runID, pipelineID, triggerID string) error
	ClaimRun(ctx context.Context, runID string) (*domain.Run, error)
	FinishRun(ctx context.Context, runID, status, message, errorMsg string) error
}

// RunRequests delivers manual run requests
type RunRequests interface {
	Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
}

// Config holds scheduler configuration
type Config struct {
	Logger      *slog.Logger
	Pipelines   []config.PipelineConfig
	Jobs        map[string]Job
	Location    *time.Location
	Concurrency int
	JobTimeout  time.Duration

	// Store and Requests are optional
	Store         RunStore
	Requests      RunRequests
	PrefetchCount int
}

// Scheduler fires pipeline triggers and runs their jobs on a worker pool
type Scheduler struct {
	logger        *slog.Logger
	pipelines     []config.PipelineConfig
	jobs          map[string]Job
	store         RunStore
	requests      RunRequests
	concurrency   int
	jobTimeout    time.Duration
	prefetchCount int
	workerID      string

	cron     *cron.Cron
	tasks    chan *domain.Task
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	newRunID func() string
}

// New builds a scheduler and registers every trigger. Each pipeline must
// have a job.
func New(cfg *Config) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelError))

	s := &Scheduler{
		logger:        cfg.Logger,
		pipelines:     cfg.Pipelines,
		jobs:          cfg.Jobs,
		store:         cfg.Store,
		requests:      cfg.Requests,
		concurrency:   concurrency,
		jobTimeout:    cfg.JobTimeout,
		prefetchCount: cfg.PrefetchCount,
		workerID:      "scheduler-" + uuid.NewString()[:8],
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		tasks:    make(chan *domain.Task, concurrency*len(cfg.Pipelines)+1),
		stopChan: make(chan struct{}),
		newRunID: uuid.NewString,
	}

	for _, p := range cfg.Pipelines {
		if _, ok := s.jobs[p.ID]; !ok {
			return nil, fmt.Errorf("%w: no job registered for %s", domain.ErrPipelineNotFound, p.ID)
		}
		for _, trig := range p.Triggers {
			if _, err := s.cron.AddFunc(trig.Schedule, s.fire(p.ID, trig.ID)); err != nil {
				return nil, fmt.Errorf("failed to schedule %s/%s: %w", p.ID, trig.ID, err)
			}
			s.logger.Info("Scheduled trigger",
				slog.String("pipeline_id", p.ID),
				slog.String("trigger_id", trig.ID),
				slog.String("schedule", trig.Schedule),
				slog.String("timezone", loc.String()),
			)
		}
	}

	return s, nil
}

// Start runs the worker pool, the trigger consumer and the cron loop until
// ctx is canceled
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler",
		slog.String("worker_id", s.workerID),
		slog.Int("concurrency", s.concurrency),
		slog.Duration("job_timeout", s.jobTimeout),
		slog.Bool("run_store", s.store != nil),
		slog.Bool("manual_triggers", s.requests != nil),
	)

	s.spawnWorkerPool(ctx)

	if s.requests != nil {
		deliveries, err := s.setupConsumer()
		if err != nil {
			s.shutdownPool()
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.startMessageDispatcher(ctx, deliveries)
		}()
	}

	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		s.logger.Debug("Next trigger", slog.Time("next", entry.Next))
	}

	<-ctx.Done()
	s.logger.Info("Scheduler context canceled, stopping...")
	return nil
}

// Stop halts the triggers and waits for running jobs, bounded by ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler...")

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}

	done := make(chan struct{})
	go func() {
		s.shutdownPool()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown timeout: %w", ctx.Err())
	}
}

func (s *Scheduler) shutdownPool() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// RunNow executes a pipeline synchronously, recording it like a scheduled run
func (s *Scheduler) RunNow(ctx context.Context, pipelineID string) (string, error) {
	return s.processTask(ctx, &domain.Task{
		RunID:      s.newRunID(),
		PipelineID: pipelineID,
		TriggerID:  "once",
	})
}

// fire returns the cron callback of one trigger
func (s *Scheduler) fire(pipelineID, triggerID string) func() {
	return func() {
		task := &domain.Task{
			RunID:      s.newRunID(),
			PipelineID: pipelineID,
			TriggerID:  triggerID,
		}
		s.logger.Info("Trigger fired",
			slog.String("pipeline_id", pipelineID),
			slog.String("trigger_id", triggerID),
			slog.String("run_id", task.RunID),
		)
		s.enqueue(task)
	}
}

// enqueue hands a task to the pool; false once the scheduler is stopping
func (s *Scheduler) enqueue(task *domain.Task) bool {
	select {
	case <-s.stopChan:
		return false
	default:
	}

	select {
	case s.tasks <- task:
		return true
	case <-s.stopChan:
		s.logger.Warn("Scheduler stopping, task dropped",
			slog.String("pipeline_id", task.PipelineID),
			slog.String("run_id", task.RunID),
		)
		return false
	}
}
