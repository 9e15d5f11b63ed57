package domain

// Run status constants
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// ManualTrigger is the trigger id recorded for runs requested through the API
const ManualTrigger = "manual"
