// Package assessment runs a membership inference risk assessment: it samples
// cohorts, generates one job per (run, target), drains the jobs with a worker
// pool and aggregates per-target attack accuracy.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuongbtq/phantom-risk/internal/anonymization"
	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
	"github.com/cuongbtq/phantom-risk/internal/checkpoint"
	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
	"github.com/cuongbtq/phantom-risk/internal/features"
	"github.com/cuongbtq/phantom-risk/internal/metrics"
	"github.com/cuongbtq/phantom-risk/internal/sampling"
	"github.com/cuongbtq/phantom-risk/internal/statistics"
	"github.com/cuongbtq/phantom-risk/internal/targets"
)

// EngineConfig describes one assessment
type EngineConfig struct {
	Data          *config.DataConfig
	Anonymization *config.AnonymizationConfig
	Risk          *config.RiskAssessmentConfig
	Statistics    *config.StatisticsConfig
	FeatureType   string

	// Workers overrides Risk.ThreadCount when positive
	Workers int

	// Population is loaded from Data.DataCsvFile when nil
	Population *dataset.Dataset

	// Targets are selected according to Risk when empty
	Targets []int
}

// Dependencies are the collaborators of an engine. Nil fields get defaults.
type Dependencies struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Anonymizer    anonymization.Anonymizer
	Extractor     features.Extractor
	NewClassifier ClassifierFactory
	Selection     *targets.Selection

	// Log receives one line per tested sample
	Log io.Writer

	// Summary receives the per-target summary
	Summary io.Writer
}

// Engine is a single-use assessment. Its states only move forward:
// INIT, JOBS_GENERATED, RUNNING, JOINED, SUMMARIZED.
type Engine struct {
	mu    sync.Mutex
	state domain.State

	cfg        EngineConfig
	deps       Dependencies
	logger     *slog.Logger
	shared     *jobContext
	population *dataset.Dataset
	store      *checkpoint.Store
	selection  *targets.Selection
	targets    []int
	seed       uint64
	rng        *rand.Rand

	cohortSize     int
	backgroundSize int
	jobsTotal      atomic.Int64

	queue      *Queue
	pool       *Pool
	aggregator *Aggregator
	tracker    *tracker
}

// NewEngine prepares an assessment in state INIT. Checkpoint layers are
// validated here, so an incompatible configuration fails before any job exists.
func NewEngine(cfg EngineConfig, deps Dependencies) (*Engine, error) {
	if cfg.Data == nil || cfg.Anonymization == nil || cfg.Risk == nil {
		return nil, errors.New("data, anonymization and risk assessment configs are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Anonymizer == nil {
		deps.Anonymizer = anonymization.NewGeneralizer()
	}
	if deps.NewClassifier == nil {
		deps.NewClassifier = NewModel
	}

	logger := deps.Logger.With(
		slog.String("assessment", cfg.Risk.Name),
		slog.String("feature_type", cfg.FeatureType),
	)

	e := &Engine{
		state:  domain.StateInit,
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}

	// Step 1: Population and schema
	population := cfg.Population
	if population == nil {
		def, err := dataset.NewDefinition(cfg.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data definition: %w", err)
		}
		population, err = dataset.Load(cfg.Data.DataCsvFile, def)
		if err != nil {
			return nil, fmt.Errorf("failed to load population: %w", err)
		}
	}
	e.population = population
	def := population.Definition()

	// Step 2: Absolute sample sizes
	n := population.NumRows()
	e.cohortSize = absoluteSize(cfg.Risk.SizeCohortFraction, cfg.Risk.SizeCohort, n)
	e.backgroundSize = absoluteSize(cfg.Risk.SizeBackgroundFraction, cfg.Risk.SizeBackground, n)

	// Step 3: Random source
	e.seed = cfg.Risk.Seed
	if e.seed == 0 {
		e.seed = uint64(time.Now().UnixNano())
	}
	e.rng = rand.New(rand.NewPCG(e.seed, 0))

	// Step 4: Targets
	e.selection = deps.Selection
	if e.selection == nil {
		selection, err := targets.New(population)
		if err != nil {
			return nil, fmt.Errorf("failed to rank targets: %w", err)
		}
		e.selection = selection
	}
	e.targets = cfg.Targets
	for _, id := range e.targets {
		if id < 0 || id >= n {
			return nil, fmt.Errorf("target %d out of range [0, %d)", id, n)
		}
	}
	if len(e.targets) == 0 {
		selected, err := e.selection.Select(e.rng, cfg.Risk.TargetType, cfg.Risk.TargetCount, cfg.Risk.TargetImportFile)
		if err != nil {
			return nil, fmt.Errorf("failed to select targets: %w", err)
		}
		e.targets = selected
	}

	// Step 5: Checkpoint layers
	e.store = checkpoint.Disabled()
	if cfg.Risk.UseCheckpointData {
		store, err := checkpoint.Open(cfg.Risk.PathToCheckpointData, checkpoint.Snapshot{
			Data:          cfg.Data,
			Anonymization: cfg.Anonymization,
			Risk:          cfg.Risk,
		}, logger, deps.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize checkpoint: %w", err)
		}
		e.store = store
	}

	// Step 6: Shared read-only job context
	shared, err := newJobContext(cfg, deps, def)
	if err != nil {
		return nil, err
	}
	e.shared = shared

	// Step 7: Counters, progress and pool
	workers := cfg.Workers
	if workers <= 0 {
		workers = cfg.Risk.ThreadCount
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e.aggregator = NewAggregator(e.targets, deps.Log, logger, deps.Metrics)
	required := int64(2 * len(e.targets) * cfg.Risk.RunCount * (cfg.Risk.RunTrainingCount + cfg.Risk.RunTestCount))
	e.tracker = newTracker(required, logger)
	e.pool = NewPool(workers, logger, deps.Metrics)

	logger.Info("Assessment initialized",
		slog.Int("targets", len(e.targets)),
		slog.Int("cohort_size", e.cohortSize),
		slog.Int("background_size", e.backgroundSize),
		slog.Int64("anonymizations_required", required),
		slog.Int("workers", workers),
		slog.Bool("checkpoint_reuse", e.store.UseSaved()),
		slog.Uint64("seed", e.seed),
	)

	return e, nil
}

func newJobContext(cfg EngineConfig, deps Dependencies, def *dataset.Definition) (*jobContext, error) {
	method, err := anonymization.NewMethod(cfg.Anonymization)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve anonymization method: %w", err)
	}

	stats, err := statistics.NewContext(def, cfg.Statistics)
	if err != nil {
		return nil, fmt.Errorf("failed to build statistics context: %w", err)
	}

	extractor := deps.Extractor
	if extractor == nil {
		extractor, err = features.New(cfg.FeatureType)
		if err != nil {
			return nil, err
		}
	}

	attributes, err := attackAttributes(def, cfg.Risk.AttributesForAttack)
	if err != nil {
		return nil, err
	}

	return &jobContext{
		definition:     def,
		method:         method,
		dictionary:     features.NewDictionary(def),
		statistics:     stats,
		extractor:      extractor,
		classifierType: cfg.Risk.ClassifierType,
		attributes:     attributes,
		trainingCount:  cfg.Risk.RunTrainingCount,
		testCount:      cfg.Risk.RunTestCount,
		trainingSize:   cfg.Risk.SizeSampleTraining,
		testSize:       cfg.Risk.SizeSampleTest,
	}, nil
}

// absoluteSize truncates fraction*population when a fraction is set and falls back to literal
func absoluteSize(fraction float64, literal, population int) int {
	if fraction > 0 {
		return int(fraction * float64(population))
	}
	return literal
}

// State returns the current lifecycle state
func (e *Engine) State() domain.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// expect fails unless the engine is in state want
func (e *Engine) expect(op string, want domain.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != want {
		return domain.TransitionError(op, e.state, want)
	}
	return nil
}

func (e *Engine) advance() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.state.Next()
}

// Targets returns the assessed target ids
func (e *Engine) Targets() []int {
	return e.targets
}

// Selection returns the target ranking used for summary distances
func (e *Engine) Selection() *targets.Selection {
	return e.selection
}

// GenerateJobs samples cohort and background once per run, reusing
// checkpointed id sets, and enqueues one job per (run, target)
func (e *Engine) GenerateJobs() error {
	if err := e.expect("GenerateJobs", domain.StateInit); err != nil {
		return err
	}

	runs := e.cfg.Risk.RunCount
	e.queue = NewQueue(runs * len(e.targets))

	for run := 0; run < runs; run++ {
		cohort, background, err := e.sampleRun(run)
		if err != nil {
			return err
		}
		for _, target := range e.targets {
			if err := e.queue.Push(domain.NewJob(run, target, cohort, background)); err != nil {
				return fmt.Errorf("failed to enqueue job: %w", err)
			}
		}
	}

	e.jobsTotal.Store(int64(e.queue.Len()))
	e.logger.Info("Jobs generated",
		slog.Int("jobs", e.queue.Len()),
		slog.Int("runs", runs),
	)
	e.advance()
	return nil
}

func (e *Engine) sampleRun(run int) (sampling.IDSet, sampling.IDSet, error) {
	cohortKey := checkpoint.RunKey(checkpoint.Cohort, run)
	backgroundKey := checkpoint.RunKey(checkpoint.Background, run)

	if e.store.Exists(cohortKey) && e.store.Exists(backgroundKey) {
		cohort, err := e.store.LoadIDs(cohortKey)
		if err != nil {
			return nil, nil, err
		}
		background, err := e.store.LoadIDs(backgroundKey)
		if err != nil {
			return nil, nil, err
		}
		return cohort, background, nil
	}

	cohort, background, err := sampling.SampleWithOverlap(e.rng, e.population.NumRows(),
		e.cohortSize, e.backgroundSize, e.cfg.Risk.Overlap)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sample run %d: %w", run, err)
	}

	e.store.SaveIDs(cohortKey, cohort)
	e.store.SaveIDs(backgroundKey, background)
	return cohort, background, nil
}

// Start launches the worker pool. Every worker gets its own population copy
// and a random source derived from the seed and its worker number.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.expect("Start", domain.StateJobsGenerated); err != nil {
		return err
	}

	e.pool.Start(ctx, e.queue, func(workerNum int) JobProcessor {
		return &processor{
			worker:        workerNum,
			shared:        e.shared,
			population:    e.population.Clone(),
			rng:           rand.New(rand.NewPCG(e.seed, uint64(workerNum)+1)),
			store:         e.store,
			anonymizer:    e.deps.Anonymizer,
			newClassifier: e.deps.NewClassifier,
			aggregator:    e.aggregator,
			tracker:       e.tracker,
			logger:        e.logger,
			metrics:       e.deps.Metrics,
		}
	})

	e.advance()
	return nil
}

// Join waits for every worker. The engine reaches JOINED even when workers
// failed; the joined worker errors are returned.
func (e *Engine) Join() error {
	if err := e.expect("Join", domain.StateRunning); err != nil {
		return err
	}

	err := e.pool.Wait()
	e.advance()

	e.logger.Info("Worker pool joined",
		slog.Int64("jobs_done", e.pool.Done()),
		slog.Int64("jobs_total", e.jobsTotal.Load()),
		slog.Int("jobs_abandoned", e.queue.Len()),
		slog.Int("worker_errors", e.pool.Failures()),
	)
	return err
}

// Summarize computes accuracy = correct / (runs * tests * 2) per target,
// writes the summary and releases the population
func (e *Engine) Summarize() ([]domain.TargetSummary, error) {
	if err := e.expect("Summarize", domain.StateJoined); err != nil {
		return nil, err
	}

	tests := float64(e.cfg.Risk.RunCount * e.cfg.Risk.RunTestCount * 2)
	summaries := make([]domain.TargetSummary, 0, e.aggregator.Len())
	for _, target := range e.aggregator.Targets() {
		s := domain.TargetSummary{
			TargetID: target,
			Distance: e.selection.Distance(target),
		}
		if tests > 0 {
			s.Accuracy = float64(e.aggregator.Correct(target)) / tests
		}
		summaries = append(summaries, s)
	}

	if e.deps.Summary != nil {
		if err := writeSummary(e.deps.Summary, summaries); err != nil {
			return summaries, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	e.population = nil
	e.queue = nil
	e.advance()

	e.logger.Info("Assessment summarized", slog.Int("targets", len(summaries)))
	return summaries, nil
}

func writeSummary(w io.Writer, summaries []domain.TargetSummary) error {
	if _, err := io.WriteString(w, domain.SummaryHeader+"\n"); err != nil {
		return err
	}
	for _, s := range summaries {
		if _, err := io.WriteString(w, s.Line()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs every state transition in order. Worker failures do not
// prevent the summary; they are returned together with it.
func (e *Engine) Execute(ctx context.Context) ([]domain.TargetSummary, error) {
	if err := e.GenerateJobs(); err != nil {
		return nil, err
	}
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	joinErr := e.Join()

	summaries, err := e.Summarize()
	if err != nil {
		return summaries, errors.Join(joinErr, err)
	}
	return summaries, joinErr
}

// Stop keeps workers from pulling further jobs. It is safe in any state.
func (e *Engine) Stop() {
	e.pool.Stop()
}

// Progress returns a snapshot of the engine's progress
func (e *Engine) Progress() Progress {
	return Progress{
		State:                  e.State(),
		JobsTotal:              int(e.jobsTotal.Load()),
		JobsDone:               e.pool.Done(),
		AnonymizationsDone:     e.tracker.value(),
		AnonymizationsRequired: e.tracker.required,
		WorkerErrors:           e.pool.Failures(),
	}
}
