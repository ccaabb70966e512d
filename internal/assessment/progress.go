package assessment

import (
	"log/slog"
	"sync/atomic"

	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
)

// Progress is a point-in-time view of a running engine
type Progress struct {
	State                  domain.State `json:"state"`
	JobsTotal              int          `json:"jobs_total"`
	JobsDone               int64        `json:"jobs_done"`
	AnonymizationsDone     int64        `json:"anonymizations_done"`
	AnonymizationsRequired int64        `json:"anonymizations_required"`
	WorkerErrors           int          `json:"worker_errors"`
}

// tracker counts the anonymized datasets a job consumed, whether generated or
// loaded from a checkpoint, and logs every completed tenth of the total
type tracker struct {
	required int64
	done     atomic.Int64
	decile   atomic.Int64
	logger   *slog.Logger
}

func newTracker(required int64, logger *slog.Logger) *tracker {
	return &tracker{required: required, logger: logger}
}

func (t *tracker) advance(n int64) {
	done := t.done.Add(n)
	if t.required <= 0 {
		return
	}
	reached := done * 10 / t.required
	for {
		next := t.decile.Load()
		if reached < next {
			return
		}
		if t.decile.CompareAndSwap(next, reached+1) {
			t.logger.Info("Progress",
				slog.Int64("anonymizations_done", done),
				slog.Int64("anonymizations_required", t.required),
			)
			return
		}
	}
}

func (t *tracker) value() int64 {
	return t.done.Load()
}
