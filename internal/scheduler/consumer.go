package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/billing-inspector/internal/scheduler/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer starts consuming manual run requests
func (s *Scheduler) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := s.requests.Consume(s.workerID, s.prefetchCount)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming run requests: %w", err)
	}
	return deliveries, nil
}

// startMessageDispatcher turns deliveries into manual tasks. Each delivery is
// acked or nacked once its task is processed.
func (s *Scheduler) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	s.logger.Info("Run request dispatcher started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Run request dispatcher stopped - context canceled")
			return

		case <-s.stopChan:
			s.logger.Info("Run request dispatcher stopped")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				s.logger.Warn("Run request delivery channel closed")
				return
			}

			task, err := s.parseDelivery(delivery)
			if err != nil {
				s.logger.Error("Rejecting run request",
					slog.String("body", string(delivery.Body)),
					slog.Any("error", err),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					s.logger.Error("Failed to NACK run request", slog.Any("error", nackErr))
				}
				continue
			}

			if !s.enqueue(task) {
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					s.logger.Error("Failed to NACK run request on shutdown", slog.Any("error", nackErr))
				}
				return
			}
		}
	}
}

func (s *Scheduler) parseDelivery(delivery amqp.Delivery) (*domain.Task, error) {
	var req domain.RunRequest
	if err := json.Unmarshal(delivery.Body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTrigger, err)
	}
	if _, err := uuid.Parse(req.RunID); err != nil {
		return nil, fmt.Errorf("%w: run_id %q is not a UUID", domain.ErrInvalidTrigger, req.RunID)
	}
	if req.PipelineID == "" {
		return nil, fmt.Errorf("%w: pipeline_id is required", domain.ErrInvalidTrigger)
	}

	return &domain.Task{
		RunID:      req.RunID,
		PipelineID: req.PipelineID,
		TriggerID:  domain.ManualTrigger,
		Manual:     true,
		Done:       s.acknowledge(delivery),
	}, nil
}

// acknowledge acks a processed request, or nacks it with a requeue decision
func (s *Scheduler) acknowledge(delivery amqp.Delivery) func(err error) {
	return func(err error) {
		if err == nil {
			if ackErr := delivery.Ack(false); ackErr != nil {
				s.logger.Error("Failed to ACK run request", slog.Any("error", ackErr))
			}
			return
		}

		requeue := shouldRequeue(err)
		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			s.logger.Error("Failed to NACK run request", slog.Any("error", nackErr))
			return
		}
		s.logger.Info("Run request NACKed", slog.Bool("requeue", requeue))
	}
}
