package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JobCompleted(2 * time.Second)
	m.JobFailed()
	m.Anonymization()
	m.Anonymization()
	m.CheckpointHit("cohort")
	m.CheckpointWriteFailed()
	m.Prediction(true)
	m.Prediction(false)
	m.Prediction(true)
	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerStopped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.anonymizations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkpointHits.WithLabelValues("cohort")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkpointWriteFailure))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues("correct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("wrong")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workersActive))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "risk_assessment_job_duration_seconds")
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobCompleted(time.Second)
		m.JobFailed()
		m.Anonymization()
		m.CheckpointHit("train_in")
		m.CheckpointWriteFailed()
		m.Prediction(true)
		m.WorkerStarted()
		m.WorkerStopped()
	})
}
