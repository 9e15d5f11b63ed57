package router

import (
	"github.com/cuongbtq/billing-inspector/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", handler.NewHealthHandler(deps).Health)

	pipelineHandler := handler.NewPipelineHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		pipelines := v1.Group("/pipelines")
		{
			// GET /api/v1/pipelines - List pipelines with their next fire times
			pipelines.GET("", pipelineHandler.ListPipelines)

			// GET /api/v1/pipelines/:pipeline_id - Get pipeline details
			pipelines.GET("/:pipeline_id", pipelineHandler.GetPipeline)

			// POST /api/v1/pipelines/:pipeline_id/runs - Trigger a manual run
			pipelines.POST("/:pipeline_id/runs", pipelineHandler.CreateRun)
		}

		runs := v1.Group("/runs")
		{
			// GET /api/v1/runs - List runs with filtering and pagination
			runs.GET("", pipelineHandler.ListRuns)

			// GET /api/v1/runs/:run_id - Get run details
			runs.GET("/:run_id", pipelineHandler.GetRun)
		}
	}

	return r
}
