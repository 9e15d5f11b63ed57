package model

import "time"

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
