package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/api/domain"
	"github.com/cuongbtq/billing-inspector/internal/api/dto"
	"github.com/cuongbtq/billing-inspector/internal/api/model"
	"github.com/cuongbtq/billing-inspector/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateRun handles POST /api/v1/pipelines/:pipeline_id/runs
// Records a PENDING run and asks the scheduler service to execute it
func (h *PipelineHandler) CreateRun(c *gin.Context) {
	pipelineID := c.Param("pipeline_id")

	h.logger.Info("CreateRun called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("pipeline_id", pipelineID),
	)

	if _, ok := h.findPipeline(pipelineID); !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "pipeline not found",
		})
		return
	}

	now := h.now().UTC()
	run := model.Run{
		RunID:      uuid.New().String(),
		PipelineID: pipelineID,
		TriggerID:  domain.ManualTrigger,
		Status:     domain.RunStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	ctx := c.Request.Context()
	if err := h.store.CreateRun(ctx, &run); err != nil {
		h.logger.Error("Failed to create run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create run",
		})
		return
	}

	err := h.publisher.PublishJSON(ctx, dto.RunRequestMessage{
		RunID:      run.RunID,
		PipelineID: run.PipelineID,
	})
	if err != nil {
		h.logger.Error("Failed to publish run request",
			slog.String("run_id", run.RunID),
			slog.String("error", err.Error()),
		)
		if failErr := h.store.FailRun(ctx, run.RunID, "failed to publish run request: "+err.Error()); failErr != nil {
			h.logger.Error("Failed to mark run as failed",
				slog.String("run_id", run.RunID),
				slog.String("error", failErr.Error()),
			)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Scheduler is unavailable",
			"run_id": run.RunID,
		})
		return
	}

	c.JSON(http.StatusAccepted, toRunDTO(&run))
}

// GetRun handles GET /api/v1/runs/:run_id
func (h *PipelineHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")

	if _, err := uuid.Parse(runID); err != nil {
		h.logger.Error("Invalid run_id format", slog.String("run_id", runID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	run, err := h.store.GetRunByID(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "run not found",
			})
			return
		}
		h.logger.Error("Failed to get run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get run",
		})
		return
	}

	c.JSON(http.StatusOK, toRunDTO(run))
}

// ListRuns handles GET /api/v1/runs
// Lists runs newest first with optional filtering and cursor pagination
func (h *PipelineHandler) ListRuns(c *gin.Context) {
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Status != "" && !domain.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeRunCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	runs, err := h.store.ListRuns(c.Request.Context(), storage.RunFilter{
		PipelineID: req.PipelineID,
		Status:     req.Status,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list runs",
		})
		return
	}

	hasMore := len(runs) > req.PageSize
	if hasMore {
		runs = runs[:req.PageSize]
	}

	response := make([]dto.RunDTO, len(runs))
	for i := range runs {
		response[i] = toRunDTO(&runs[i])
	}

	var nextCursor string
	if hasMore {
		last := runs[len(runs)-1]
		nextCursor = EncodeRunCursor(&storage.RunCursor{
			CreatedAt: last.CreatedAt,
			RunID:     last.RunID,
		})
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{
		Runs:       response,
		NextCursor: nextCursor,
	})
}

func toRunDTO(run *model.Run) dto.RunDTO {
	out := dto.RunDTO{
		RunID:        run.RunID,
		PipelineID:   run.PipelineID,
		TriggerID:    run.TriggerID,
		Status:       run.Status,
		Message:      run.Message,
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    run.UpdatedAt.Format(time.RFC3339),
	}
	if run.StartedAt != nil {
		out.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.FinishedAt != nil {
		out.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return out
}
