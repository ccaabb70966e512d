package handler

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuongbtq/phantom-risk/internal/assessment"
	"github.com/cuongbtq/phantom-risk/internal/registry"
)

// RunStore is the read side of the run registry
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*registry.Run, error)
	ListRuns(ctx context.Context, filter registry.RunFilter) ([]registry.Run, error)
}

// ProgressSource reports the engine currently executing, if any
type ProgressSource interface {
	Progress() (assessment.Progress, bool)
}

// HealthChecker is satisfied by *database.Client
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers. Runs and Database may be nil.
type Dependencies struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Progress ProgressSource
	Runs     RunStore
	Database HealthChecker
}

// RunHandler serves the run registry
type RunHandler struct {
	logger *slog.Logger
	runs   RunStore
}

func NewRunHandler(deps *Dependencies) *RunHandler {
	return &RunHandler{
		logger: deps.Logger,
		runs:   deps.Runs,
	}
}

// StatusHandler serves health and progress
type StatusHandler struct {
	logger   *slog.Logger
	progress ProgressSource
	database HealthChecker
}

func NewStatusHandler(deps *Dependencies) *StatusHandler {
	return &StatusHandler{
		logger:   deps.Logger,
		progress: deps.Progress,
		database: deps.Database,
	}
}
