package assessment

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
	"github.com/cuongbtq/phantom-risk/internal/sampling"
)

type recordingProcessor struct {
	mu   *sync.Mutex
	seen map[int]int
	fail func(job *domain.Job) error
}

func (p *recordingProcessor) Process(_ context.Context, job *domain.Job) error {
	if p.fail != nil {
		if err := p.fail(job); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[job.Target]++
	return nil
}

func filledQueue(t *testing.T, n int) *Queue {
	t.Helper()
	q := NewQueue(n)
	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(&domain.Job{Target: i}))
	}
	return q
}

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Push(&domain.Job{Target: 1}))
	require.NoError(t, q.Push(&domain.Job{Target: 2}))
	assert.ErrorIs(t, q.Push(&domain.Job{Target: 3}), domain.ErrQueueFull)

	job, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, 1, job.Target)
	job, ok = q.Poll()
	require.True(t, ok)
	assert.Equal(t, 2, job.Target)

	_, ok = q.Poll()
	assert.False(t, ok)
}

func TestPool_DrainsQueueOnce(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		jobs    int
	}{
		{name: "single worker", workers: 1, jobs: 5},
		{name: "more workers than jobs", workers: 8, jobs: 3},
		{name: "many jobs", workers: 4, jobs: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := filledQueue(t, tt.jobs)
			proc := &recordingProcessor{mu: &sync.Mutex{}, seen: map[int]int{}}

			p := NewPool(tt.workers, discard(), nil)
			p.Start(context.Background(), q, func(int) JobProcessor { return proc })
			require.NoError(t, p.Wait())

			assert.Equal(t, 0, q.Len())
			assert.Equal(t, int64(tt.jobs), p.Done())
			require.Len(t, proc.seen, tt.jobs)
			for target, n := range proc.seen {
				assert.Equal(t, 1, n, "target %d processed more than once", target)
			}
		})
	}
}

func TestPool_FailingWorkerStopsAlone(t *testing.T) {
	q := filledQueue(t, 10)
	boom := errors.New("boom")
	failed := make(chan struct{})
	mu := &sync.Mutex{}
	seen := map[int]int{}

	p := NewPool(2, discard(), nil)
	p.Start(context.Background(), q, func(workerNum int) JobProcessor {
		proc := &recordingProcessor{mu: mu, seen: seen}
		if workerNum == 0 {
			proc.fail = func(*domain.Job) error {
				close(failed)
				return boom
			}
		} else {
			proc.fail = func(*domain.Job) error {
				<-failed
				return nil
			}
		}
		return proc
	})
	err := p.Wait()

	require.ErrorIs(t, err, boom)
	var workerErr *domain.WorkerError
	require.ErrorAs(t, err, &workerErr)
	assert.Equal(t, 0, workerErr.Worker)
	assert.Equal(t, 1, p.Failures())

	// worker 0 abandons exactly one job; worker 1 drains the rest
	assert.Equal(t, int64(9), p.Done())
	assert.Equal(t, 0, q.Len())
}

func TestAggregator(t *testing.T) {
	var log bytes.Buffer
	a := NewAggregator([]int{9, 3}, &log, discard(), nil)
	assert.Equal(t, []int{3, 9}, a.Targets())

	job := domain.NewJob(0, 3, sampling.NewIDSet(1, 2), sampling.NewIDSet(1, 2))
	job.AddResult(domain.ResultRecord{TrueLabel: true, PredictedLabel: true})
	job.AddResult(domain.ResultRecord{TrueLabel: false, PredictedLabel: true})
	job.AddResult(domain.ResultRecord{TrueLabel: false, PredictedLabel: false})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Record(job)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8), a.Correct(3))
	assert.Zero(t, a.Correct(9))
	assert.Zero(t, a.Correct(42))

	lines := strings.Split(strings.TrimSpace(log.String()), "\n")
	assert.Len(t, lines, 12)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "0;3;0;"), l)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestAggregator_WriteFailureIsNotFatal(t *testing.T) {
	a := NewAggregator([]int{1}, failingWriter{}, discard(), nil)
	job := &domain.Job{Target: 1}
	job.AddResult(domain.ResultRecord{TrueLabel: true, PredictedLabel: true})

	assert.NotPanics(t, func() { a.Record(job) })
	assert.Equal(t, int64(1), a.Correct(1))
}

func TestTracker(t *testing.T) {
	tr := newTracker(100, discard())
	for i := 0; i < 10; i++ {
		tr.advance(10)
	}
	assert.Equal(t, int64(100), tr.value())
	assert.Equal(t, int64(11), tr.decile.Load())
}
