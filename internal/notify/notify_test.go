package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
)

type fakePublisher struct {
	bodies       [][]byte
	contentTypes []string
	err          error
}

func (f *fakePublisher) PublishWithRetry(_ context.Context, body []byte, contentType string) error {
	f.bodies = append(f.bodies, body)
	f.contentTypes = append(f.contentTypes, contentType)
	return f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifier_AssessmentCompleted(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, discard())

	finished := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	err := n.AssessmentCompleted(context.Background(), AssessmentCompleted{
		RunID:        "run-1",
		Name:         "20240301_1000_s_r_adult_k5_NAIVE",
		FeatureType:  "NAIVE",
		FinishedAt:   finished,
		WorkerErrors: 1,
		Targets:      []domain.TargetSummary{{TargetID: 7, Distance: 1, Accuracy: 0.75}},
	})
	require.NoError(t, err)
	require.Len(t, pub.bodies, 1)
	assert.Equal(t, "application/json", pub.contentTypes[0])

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.bodies[0], &got))
	assert.Equal(t, "assessment.completed", got["event"])
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "NAIVE", got["feature_type"])
	assert.Equal(t, "2024-03-01T10:05:00Z", got["finished_at"])
	assert.Equal(t, float64(1), got["worker_errors"])

	targets := got["targets"].([]any)
	require.Len(t, targets, 1)
	assert.Equal(t, map[string]any{"target_id": float64(7), "distance": float64(1), "accuracy": 0.75}, targets[0])
}

func TestNotifier_EmptyTargetsEncodeAsArray(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewNotifier(pub, discard()).AssessmentCompleted(context.Background(), AssessmentCompleted{RunID: "r"}))
	assert.Contains(t, string(pub.bodies[0]), `"targets":[]`)
}

func TestNotifier_PublishFailure(t *testing.T) {
	broken := errors.New("broker down")
	n := NewNotifier(&fakePublisher{err: broken}, discard())

	err := n.AssessmentCompleted(context.Background(), AssessmentCompleted{RunID: "r"})
	assert.ErrorIs(t, err, broken)
}

func TestNotifier_Disabled(t *testing.T) {
	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.AssessmentCompleted(context.Background(), AssessmentCompleted{}))
	assert.NoError(t, NewNotifier(nil, discard()).AssessmentCompleted(context.Background(), AssessmentCompleted{}))
}
