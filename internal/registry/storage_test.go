package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/phantom-risk/shared/database"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	client, err := database.NewClient(&database.Config{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "registry.db"),
		MaxOpenConns: 1,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	s := NewStorage(client)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func run(n int, status string) *Run {
	return &Run{
		RunID:       fmt.Sprintf("run-%02d", n),
		Name:        fmt.Sprintf("20240301_1000_series_risk_adult_k5_NAIVE_%d", n),
		Series:      "series",
		FeatureType: "NAIVE",
		RiskConfig:  "risk.yml",
		Status:      status,
		StartedAt:   base.Add(time.Duration(n) * time.Minute),
	}
}

func TestStorage_CreateAndFinish(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx), "migrate must be repeatable")
	require.NoError(t, s.CreateRun(ctx, run(1, RunStatusRunning)))

	got, err := s.GetRun(ctx, "run-01")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.Equal(t, "risk.yml", got.RiskConfig)
	assert.True(t, got.StartedAt.Equal(base.Add(time.Minute)))
	assert.False(t, got.FinishedAt.Valid)

	finished := base.Add(time.Hour)
	require.NoError(t, s.FinishRun(ctx, "run-01", Outcome{
		Status:       RunStatusCompleted,
		JobsTotal:    6,
		WorkerErrors: 1,
		FinishedAt:   finished,
	}))

	got, err = s.GetRun(ctx, "run-01")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, 6, got.JobsTotal)
	assert.Equal(t, 1, got.WorkerErrors)
	require.True(t, got.FinishedAt.Valid)
	assert.True(t, got.FinishedAt.Time.Equal(finished))
}

func TestStorage_NotFound(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = s.FinishRun(ctx, "missing", Outcome{Status: RunStatusFailed, FinishedAt: base})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStorage_ListRuns(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	for n := 1; n <= 5; n++ {
		status := RunStatusCompleted
		if n%2 == 0 {
			status = RunStatusFailed
		}
		require.NoError(t, s.CreateRun(ctx, run(n, status)))
	}

	ids := func(runs []Run) []string {
		out := make([]string, len(runs))
		for i, r := range runs {
			out[i] = r.RunID
		}
		return out
	}

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{
			name:   "first page has one extra row",
			filter: RunFilter{PageSize: 2},
			want:   []string{"run-05", "run-04", "run-03"},
		},
		{
			name:   "after cursor",
			filter: RunFilter{PageSize: 2, Cursor: &RunCursor{StartedAt: base.Add(4 * time.Minute), RunID: "run-04"}},
			want:   []string{"run-03", "run-02", "run-01"},
		},
		{
			name:   "status filter",
			filter: RunFilter{Status: RunStatusFailed, PageSize: 10},
			want:   []string{"run-04", "run-02"},
		},
		{
			name:   "status and cursor",
			filter: RunFilter{Status: RunStatusCompleted, PageSize: 10, Cursor: &RunCursor{StartedAt: base.Add(3 * time.Minute), RunID: "run-03"}},
			want:   []string{"run-01"},
		},
		{
			name:   "empty",
			filter: RunFilter{Status: RunStatusRunning, PageSize: 10},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(runs))
		})
	}
}

func TestRunCursor(t *testing.T) {
	cursor := &RunCursor{StartedAt: base.Add(1500 * time.Millisecond), RunID: "a|b"}

	decoded, err := DecodeRunCursor(EncodeRunCursor(cursor))
	require.NoError(t, err)
	assert.True(t, decoded.StartedAt.Equal(cursor.StartedAt))
	assert.Equal(t, "a|b", decoded.RunID)

	empty, err := DecodeRunCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	for _, bad := range []string{"%%%", "bm9waXBl", "YWJjfGlk"} {
		t.Run(bad, func(t *testing.T) {
			_, err := DecodeRunCursor(bad)
			assert.Error(t, err)
		})
	}
}
