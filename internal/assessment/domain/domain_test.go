package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/phantom-risk/internal/sampling"
	"github.com/cuongbtq/phantom-risk/internal/statistics"
)

func TestNewJob_ExcludesTarget(t *testing.T) {
	job := NewJob(1, 4, sampling.NewIDSet(1, 4, 9), sampling.NewIDSet(2, 3))

	assert.False(t, job.Cohort.Contains(4))
	assert.Equal(t, 2, job.Cohort.Len())
	assert.Equal(t, sampling.NewIDSet(2, 3), job.Background)
}

func TestResultRecord_Line(t *testing.T) {
	r := ResultRecord{
		Iteration:      2,
		TrueLabel:      true,
		PredictedLabel: false,
		Confidence:     0.75,
		Statistics:     statistics.Snapshot{Granularity: 0.5, LocationAndLimits: "{}"},
	}

	line := r.Line(1, 7)
	assert.True(t, strings.HasPrefix(line, "1;7;2;1;0;0.75;0.500;"), line)
	assert.Len(t, strings.Split(line, ";"), 6+len(statistics.Header))
	assert.False(t, r.Correct())
}

func TestJob_Lines(t *testing.T) {
	job := NewJob(0, 3, sampling.NewIDSet(1, 2), sampling.NewIDSet(1, 2))
	job.AddResult(ResultRecord{Iteration: 0, TrueLabel: false, PredictedLabel: false, Confidence: 1})
	job.AddResult(ResultRecord{Iteration: 0, TrueLabel: true, PredictedLabel: true, Confidence: 0.6})

	lines := job.Lines()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "0;3;0;0;0;1;"))
	assert.True(t, strings.HasPrefix(lines[1], "0;3;0;1;1;0.6;"))
}

func TestLogHeader(t *testing.T) {
	header := LogHeader()
	assert.True(t, strings.HasPrefix(header, "Run;Target;Iteration;TrueLabel;PredictedLabel;Confidence;Granularity;"))
	assert.True(t, strings.HasSuffix(header, ";ClassificationAccuracy"))
}

func TestTargetSummary_Line(t *testing.T) {
	assert.Equal(t, "12;0.25;0.5", TargetSummary{TargetID: 12, Distance: 0.25, Accuracy: 0.5}.Line())
}

func TestState(t *testing.T) {
	tests := []struct {
		state State
		next  State
	}{
		{StateInit, StateJobsGenerated},
		{StateJobsGenerated, StateRunning},
		{StateRunning, StateJoined},
		{StateJoined, StateSummarized},
		{StateSummarized, StateSummarized},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.next, tt.state.Next())
			assert.True(t, tt.state.Next().Reached(tt.state))
		})
	}
	assert.False(t, StateRunning.Reached(StateJoined))
}

func TestWorkerError(t *testing.T) {
	cause := errors.New("boom")
	err := NewWorkerError(3, &Job{Run: 1, Target: 8}, cause)

	assert.ErrorIs(t, err, cause)
	var workerErr *WorkerError
	require.ErrorAs(t, err, &workerErr)
	assert.Equal(t, 3, workerErr.Worker)
	assert.Equal(t, 8, workerErr.Target)
	assert.Contains(t, err.Error(), "run 1, target 8")
}

func TestTransitionError(t *testing.T) {
	err := TransitionError("Start", StateInit, StateJobsGenerated)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "JOBS_GENERATED")
}
