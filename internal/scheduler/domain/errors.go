package domain

import "errors"

var (
	// ErrRunNotFound is returned when a run cannot be found in the run store
	ErrRunNotFound = errors.New("run not found")

	// ErrRunAlreadyClaimed is returned when a requested run is no longer PENDING
	ErrRunAlreadyClaimed = errors.New("run already claimed or not in PENDING status")

	// ErrPipelineNotFound is returned for a pipeline id with no registered job
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrInvalidTrigger is returned for a malformed run request
	ErrInvalidTrigger = errors.New("invalid run request")

	// ErrJobPanicked is returned when a job body panics
	ErrJobPanicked = errors.New("job panicked")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
