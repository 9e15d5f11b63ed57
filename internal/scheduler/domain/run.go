package domain

import "time"

// Run is one execution of a pipeline
type Run struct {
	RunID        string     `db:"run_id"`
	PipelineID   string     `db:"pipeline_id"`
	TriggerID    string     `db:"trigger_id"`
	Status       string     `db:"status"`
	Message      string     `db:"message"`
	ErrorMessage string     `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	StartedAt    *time.Time `db:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Task is a run waiting for a worker. Manual tasks already have a PENDING
// row created by the API; scheduled ones are recorded when they start.
type Task struct {
	RunID      string
	PipelineID string
	TriggerID  string
	Manual     bool

	// Done is called with the processing result, if set
	Done func(err error)
}

// RunRequest is the broker message asking for a manual run
type RunRequest struct {
	RunID      string `json:"run_id"`
	PipelineID string `json:"pipeline_id"`
}
