package worker

import "errors"

// Sentinel kinds for pool errors.
var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrPoolStopped = errors.New("worker pool stopped")
	ErrJobPanicked = errors.New("job panicked")
)
