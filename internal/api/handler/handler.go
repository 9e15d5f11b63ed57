package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/api/model"
	"github.com/cuongbtq/billing-inspector/internal/api/storage"
	"github.com/cuongbtq/billing-inspector/internal/config"
)

// RunStore is the run history used by the handlers
type RunStore interface {
	CreateRun(ctx context.Context, run *model.Run) error
	FailRun(ctx context.Context, runID, errorMsg string) error
	GetRunByID(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter storage.RunFilter) ([]model.Run, error)
}

// Publisher hands run requests to the scheduler service
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     RunStore
	Publisher Publisher
	Pipelines []config.PipelineConfig
	Location  *time.Location

	// Checks back GET /health, keyed by dependency name
	Checks map[string]HealthCheck
}

// PipelineHandler serves pipeline and run requests
type PipelineHandler struct {
	logger    *slog.Logger
	store     RunStore
	publisher Publisher
	pipelines []config.PipelineConfig
	location  *time.Location
	now       func() time.Time
}

// NewPipelineHandler creates a new PipelineHandler instance
func NewPipelineHandler(deps *Dependencies) *PipelineHandler {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &PipelineHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		pipelines: deps.Pipelines,
		location:  loc,
		now:       time.Now,
	}
}

func (h *PipelineHandler) findPipeline(id string) (config.PipelineConfig, bool) {
	for _, p := range h.pipelines {
		if p.ID == id {
			return p, true
		}
	}
	return config.PipelineConfig{}, false
}
