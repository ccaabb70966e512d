package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
	"github.com/cuongbtq/phantom-risk/internal/metrics"
)

// JobProcessor runs the full pipeline of one job. Every worker owns its own processor.
type JobProcessor interface {
	Process(ctx context.Context, job *domain.Job) error
}

// Pool is a fixed set of worker goroutines draining one queue
type Pool struct {
	id      string
	size    int
	logger  *slog.Logger
	metrics *metrics.Metrics

	group   errgroup.Group
	stopped atomic.Bool
	done    atomic.Int64

	mu   sync.Mutex
	errs []error
}

// NewPool creates a pool of size workers
func NewPool(size int, logger *slog.Logger, m *metrics.Metrics) *Pool {
	return &Pool{
		id:      uuid.NewString(),
		size:    size,
		logger:  logger,
		metrics: m,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Start spawns the workers. newProcessor is called once per worker number.
func (p *Pool) Start(ctx context.Context, queue *Queue, newProcessor func(workerNum int) JobProcessor) {
	p.logger.Info("Spawning worker pool",
		slog.Int("concurrency", p.size),
		slog.String("pool_id", p.id),
		slog.Int("queued_jobs", queue.Len()),
	)

	for i := 0; i < p.size; i++ {
		proc := newProcessor(i)
		workerNum := i
		p.group.Go(func() error {
			err := p.workerLoop(ctx, workerNum, queue, proc)
			if err != nil {
				p.mu.Lock()
				p.errs = append(p.errs, err)
				p.mu.Unlock()
			}
			return err
		})
	}

	p.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", p.size),
	)
}

// Wait blocks until every worker has returned and reports all worker failures
func (p *Pool) Wait() error {
	if err := p.group.Wait(); err != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		return errors.Join(p.errs...)
	}
	return nil
}

// Stop keeps workers from pulling further jobs. Jobs in flight run to completion.
func (p *Pool) Stop() {
	if p.stopped.CompareAndSwap(false, true) {
		p.logger.Info("Stopping worker pool", slog.String("pool_id", p.id))
	}
}

// Done returns the number of successfully processed jobs
func (p *Pool) Done() int64 {
	return p.done.Load()
}

// Failures returns the number of workers that stopped on an error so far
func (p *Pool) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.errs)
}

// workerLoop polls until the queue is empty, the pool is stopped or ctx is
// canceled. The first job failure ends this worker's loop; the job is not requeued.
func (p *Pool) workerLoop(ctx context.Context, workerNum int, queue *Queue, proc JobProcessor) error {
	workerName := fmt.Sprintf("%s-%d", p.id, workerNum)
	p.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
		slog.Int("worker_num", workerNum),
	)
	p.metrics.WorkerStarted()
	defer p.metrics.WorkerStopped()

	// a job in flight is never interrupted by cancellation of ctx
	jobCtx := context.WithoutCancel(ctx)

	for !p.stopped.Load() {
		if ctx.Err() != nil {
			p.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return nil
		}

		job, ok := queue.Poll()
		if !ok {
			p.logger.Debug("Worker goroutine stopping - queue drained",
				slog.String("worker_name", workerName),
			)
			return nil
		}

		p.logger.Debug("Worker received job",
			slog.String("worker_name", workerName),
			slog.Int("run", job.Run),
			slog.Int("target", job.Target),
		)

		start := time.Now()
		if err := p.process(jobCtx, workerNum, proc, job); err != nil {
			p.metrics.JobFailed()
			p.logger.Error("Job processing failed, worker stopping",
				slog.String("worker_name", workerName),
				slog.Int("run", job.Run),
				slog.Int("target", job.Target),
				slog.String("error", err.Error()),
			)
			return err
		}

		p.metrics.JobCompleted(time.Since(start))
		p.done.Add(1)
	}

	p.logger.Info("Worker goroutine stopping - pool stopped",
		slog.String("worker_name", workerName),
	)
	return nil
}

// process runs one job and converts errors and collaborator panics into a *domain.WorkerError
func (p *Pool) process(ctx context.Context, workerNum int, proc JobProcessor, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewWorkerError(workerNum, job, fmt.Errorf("%w: %v", domain.ErrWorkerPanic, r))
		}
	}()

	if err := proc.Process(ctx, job); err != nil {
		return domain.NewWorkerError(workerNum, job, err)
	}
	return nil
}
