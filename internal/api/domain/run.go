package domain

import (
	"errors"
)

const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"

	ManualTrigger = "manual"
)

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// ValidStatus reports whether s is a run status
func ValidStatus(s string) bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}
