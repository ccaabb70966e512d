package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an engine operation is called in the wrong state
	ErrInvalidTransition = errors.New("invalid engine state transition")

	// ErrQueueFull is returned when a job is pushed into a queue at capacity
	ErrQueueFull = errors.New("job queue is full")

	// ErrWorkerPanic marks a collaborator panic recovered inside a worker
	ErrWorkerPanic = errors.New("worker panicked")
)

// WorkerError wraps a job-fatal failure with the worker and job it happened on.
// Only the worker that returned it stops; its siblings keep draining the queue.
type WorkerError struct {
	Worker int
	Run    int
	Target int
	Err    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d failed on job (run %d, target %d): %v", e.Worker, e.Run, e.Target, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// NewWorkerError creates a worker error for job
func NewWorkerError(worker int, job *Job, err error) error {
	return &WorkerError{Worker: worker, Run: job.Run, Target: job.Target, Err: err}
}

// TransitionError reports an operation attempted outside its source state
func TransitionError(op string, current, expected State) error {
	return fmt.Errorf("%w: %s requires state %s, engine is %s", ErrInvalidTransition, op, expected, current)
}
