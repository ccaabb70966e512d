// Package metrics holds the Prometheus collectors of the risk assessment engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "risk_assessment"

// Metrics groups the engine collectors registered on one registry
type Metrics struct {
	jobsCompleted          prometheus.Counter
	jobsFailed             prometheus.Counter
	anonymizations         prometheus.Counter
	checkpointHits         *prometheus.CounterVec
	checkpointWriteFailure prometheus.Counter
	predictions            *prometheus.CounterVec
	jobDuration            prometheus.Histogram
	workersActive          prometheus.Gauge
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// jobsCompleted counts jobs whose predictions were all recorded
		jobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total jobs completed by the worker pool",
		}),
		jobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Total jobs abandoned because a collaborator failed",
		}),
		anonymizations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anonymizations_total",
			Help:      "Total anonymizer invocations",
		}),
		// checkpointHits counts artifacts loaded instead of regenerated.
		// Labels: artifact (train_in, train_out, test_in, test_out, cohort, background)
		checkpointHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_hits_total",
			Help:      "Total checkpoint artifacts reused",
		}, []string{"artifact"}),
		checkpointWriteFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_write_failures_total",
			Help:      "Total checkpoint writes that failed and were dropped",
		}),
		// predictions counts test predictions.
		// Labels: outcome (correct, wrong)
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total membership predictions by outcome",
		}, []string{"outcome"}),
		jobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of one (target, run) job",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7min
		}),
		workersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_active",
			Help:      "Number of worker goroutines currently running",
		}),
	}
}

func (m *Metrics) JobCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.jobsCompleted.Inc()
	m.jobDuration.Observe(d.Seconds())
}

func (m *Metrics) JobFailed() {
	if m == nil {
		return
	}
	m.jobsFailed.Inc()
}

func (m *Metrics) Anonymization() {
	if m == nil {
		return
	}
	m.anonymizations.Inc()
}

func (m *Metrics) CheckpointHit(artifact string) {
	if m == nil {
		return
	}
	m.checkpointHits.WithLabelValues(artifact).Inc()
}

func (m *Metrics) CheckpointWriteFailed() {
	if m == nil {
		return
	}
	m.checkpointWriteFailure.Inc()
}

func (m *Metrics) Prediction(correct bool) {
	if m == nil {
		return
	}
	outcome := "wrong"
	if correct {
		outcome = "correct"
	}
	m.predictions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.workersActive.Inc()
}

func (m *Metrics) WorkerStopped() {
	if m == nil {
		return
	}
	m.workersActive.Dec()
}
