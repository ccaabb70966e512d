// Package runner executes risk assessments from config files: one engine
// per feature type, with report files, the series summary, the run
// registry and completion events wired around each engine.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/phantom-risk/internal/anonymization"
	"github.com/cuongbtq/phantom-risk/internal/assessment"
	"github.com/cuongbtq/phantom-risk/internal/features"
	"github.com/cuongbtq/phantom-risk/internal/metrics"
	"github.com/cuongbtq/phantom-risk/internal/notify"
	"github.com/cuongbtq/phantom-risk/internal/registry"
)

// RunRecorder is the write side of the run registry
type RunRecorder interface {
	CreateRun(ctx context.Context, run *registry.Run) error
	FinishRun(ctx context.Context, runID string, outcome registry.Outcome) error
}

// Config wires a Runner. Registry and Notifier are optional.
type Config struct {
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	Registry        RunRecorder
	Notifier        *notify.Notifier
	ResultDirectory string
	Workers         int
	XLSX            bool

	// Now defaults to time.Now
	Now func() time.Time

	// Anonymizer, Extractor and NewClassifier replace the built-in collaborators when set
	Anonymizer    anonymization.Anonymizer
	Extractor     features.Extractor
	NewClassifier assessment.ClassifierFactory
}

// Paths locates the three configs of one assessment
type Paths struct {
	Risk          string
	Data          string
	Anonymization string
}

// Runner runs assessments one at a time
type Runner struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	current *assessment.Engine
	stopped bool
}

// New creates a runner, defaulting the logger, clock and result directory
func New(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ResultDirectory == "" {
		cfg.ResultDirectory = "results"
	}
	return &Runner{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Progress reports the engine currently executing
func (r *Runner) Progress() (assessment.Progress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return assessment.Progress{}, false
	}
	return r.current.Progress(), true
}

// Stop keeps the current engine from starting further jobs and prevents
// later assessments of a series from starting
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.current != nil {
		r.current.Stop()
	}
}

func (r *Runner) setCurrent(e *assessment.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = e
	if e != nil && r.stopped {
		e.Stop()
	}
}

func (r *Runner) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
