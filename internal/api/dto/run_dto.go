package dto

type TriggerDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
	NextFireAt  string `json:"next_fire_at,omitempty"`
}

type PipelineDTO struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Triggers    []TriggerDTO `json:"triggers"`
}

type ListPipelinesResponse struct {
	Pipelines []PipelineDTO `json:"pipelines"`
}

type ListRunsRequest struct {
	PipelineID string `form:"pipeline_id"`
	Status     string `form:"status"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListRunsResponse struct {
	Runs       []RunDTO `json:"runs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type RunDTO struct {
	RunID        string `json:"run_id"`
	PipelineID   string `json:"pipeline_id"`
	TriggerID    string `json:"trigger_id"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
	UpdatedAt    string `json:"updated_at"`
}

// RunRequestMessage is published for the scheduler service to pick up
type RunRequestMessage struct {
	RunID      string `json:"run_id"`
	PipelineID string `json:"pipeline_id"`
}
