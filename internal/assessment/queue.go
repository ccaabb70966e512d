package assessment

import (
	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
)

// Queue is the FIFO shared by the workers of one engine. It is filled once
// by a single producer before the pool starts and drained by polling.
type Queue struct {
	jobs chan *domain.Job
}

// NewQueue creates a queue holding at most capacity jobs
func NewQueue(capacity int) *Queue {
	return &Queue{jobs: make(chan *domain.Job, capacity)}
}

// Push enqueues job without blocking
func (q *Queue) Push(job *domain.Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Poll dequeues the next job. It never waits: an empty queue returns false.
func (q *Queue) Poll() (*domain.Job, bool) {
	select {
	case job := <-q.jobs:
		return job, true
	default:
		return nil, false
	}
}

// Len returns the number of queued jobs
func (q *Queue) Len() int {
	return len(q.jobs)
}
