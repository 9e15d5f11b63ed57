package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/billing-inspector/internal/api/dto"
	"github.com/cuongbtq/billing-inspector/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

// ListPipelines handles GET /api/v1/pipelines
func (h *PipelineHandler) ListPipelines(c *gin.Context) {
	now := h.now()
	pipelines := make([]dto.PipelineDTO, 0, len(h.pipelines))
	for _, p := range h.pipelines {
		pipelines = append(pipelines, h.toPipelineDTO(p, now))
	}

	c.JSON(http.StatusOK, dto.ListPipelinesResponse{Pipelines: pipelines})
}

// GetPipeline handles GET /api/v1/pipelines/:pipeline_id
func (h *PipelineHandler) GetPipeline(c *gin.Context) {
	pipelineID := c.Param("pipeline_id")

	p, ok := h.findPipeline(pipelineID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "pipeline not found",
		})
		return
	}

	c.JSON(http.StatusOK, h.toPipelineDTO(p, h.now()))
}

func (h *PipelineHandler) toPipelineDTO(p config.PipelineConfig, now time.Time) dto.PipelineDTO {
	triggers := make([]dto.TriggerDTO, 0, len(p.Triggers))
	for _, t := range p.Triggers {
		trigger := dto.TriggerDTO{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Schedule:    t.Schedule,
		}

		schedule, err := cron.ParseStandard(t.Schedule)
		if err != nil {
			h.logger.Warn("Unparseable trigger schedule",
				slog.String("pipeline_id", p.ID),
				slog.String("trigger_id", t.ID),
				slog.String("error", err.Error()),
			)
		} else {
			trigger.NextFireAt = schedule.Next(now.In(h.location)).Format(time.RFC3339)
		}

		triggers = append(triggers, trigger)
	}

	return dto.PipelineDTO{
		ID:          p.ID,
		Description: p.Description,
		Triggers:    triggers,
	}
}
