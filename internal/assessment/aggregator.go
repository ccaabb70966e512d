package assessment

import (
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
	"github.com/cuongbtq/phantom-risk/internal/metrics"
)

// Aggregator collects the outcome of every job. Counters are updated by any
// worker; the result log is appended one complete line at a time.
type Aggregator struct {
	counters map[int]*atomic.Int64
	mu       sync.Mutex
	log      io.Writer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewAggregator creates one zeroed counter per target. The counter map is
// never resized afterwards, so lookups need no lock.
func NewAggregator(targets []int, log io.Writer, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	if log == nil {
		log = io.Discard
	}
	counters := make(map[int]*atomic.Int64, len(targets))
	for _, t := range targets {
		counters[t] = new(atomic.Int64)
	}
	return &Aggregator{
		counters: counters,
		log:      log,
		logger:   logger,
		metrics:  m,
	}
}

// Record counts the correct predictions of job and appends its result lines
func (a *Aggregator) Record(job *domain.Job) {
	counter := a.counters[job.Target]
	for _, r := range job.Results {
		correct := r.Correct()
		if correct && counter != nil {
			counter.Add(1)
		}
		a.metrics.Prediction(correct)
		a.append(r.Line(job.Run, job.Target))
	}
}

func (a *Aggregator) append(line string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := io.WriteString(a.log, line+"\n"); err != nil {
		a.logger.Error("Failed to append result line",
			slog.String("line", line),
			slog.Any("error", err),
		)
	}
}

// Correct returns the number of correct predictions for target.
// Only meaningful once every worker has been joined.
func (a *Aggregator) Correct(target int) int64 {
	if c, ok := a.counters[target]; ok {
		return c.Load()
	}
	return 0
}

// Targets returns the counted target ids in ascending order
func (a *Aggregator) Targets() []int {
	ids := make([]int, 0, len(a.counters))
	for id := range a.counters {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of counters
func (a *Aggregator) Len() int {
	return len(a.counters)
}
