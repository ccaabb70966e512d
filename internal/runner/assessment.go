package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/phantom-risk/internal/assessment"
	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
	"github.com/cuongbtq/phantom-risk/internal/notify"
	"github.com/cuongbtq/phantom-risk/internal/registry"
	"github.com/cuongbtq/phantom-risk/internal/report"
	"github.com/cuongbtq/phantom-risk/internal/targets"
)

// ErrStopped is returned when an assessment is interrupted by Stop or a canceled context
var ErrStopped = errors.New("risk assessment stopped")

// timestampLayout formats the assessment start as yyyyMMdd_HHmm
const timestampLayout = "20060102_1504"

// AssessmentName joins the parts that identify one assessment of a series
func AssessmentName(start time.Time, series, risk, dataset, anonymization, featureType string) string {
	return start.Format(timestampLayout) + "_" + series + "_" + risk + "_" + dataset + "_" + anonymization + "_" + featureType
}

// experiment is the loaded input of RunAssessment
type experiment struct {
	paths         Paths
	series        string
	risk          *config.RiskAssessmentConfig
	data          *config.DataConfig
	anonymization *config.AnonymizationConfig
	statistics    *config.StatisticsConfig
	population    *dataset.Dataset
	selection     *targets.Selection
}

// RunAssessment runs one assessment per feature type of the risk config.
// Feature types run in config order and share the population and checkpoints.
func (r *Runner) RunAssessment(ctx context.Context, paths Paths, series string) error {
	// Step 1: Load configs
	exp, err := r.load(paths, series)
	if err != nil {
		return err
	}

	r.logger.Info("Running risk assessment",
		slog.String("risk_config", exp.risk.Name),
		slog.String("data_config", exp.data.DataSetName),
		slog.String("anonymization_config", exp.anonymization.Name),
		slog.Any("feature_types", exp.risk.FeatureTypes),
	)

	// Step 2: Run every feature type
	for _, featureType := range exp.risk.FeatureTypes {
		if r.isStopped() {
			return ErrStopped
		}
		if err := r.runFeature(ctx, exp, featureType); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) load(paths Paths, series string) (*experiment, error) {
	risk, err := config.LoadRiskAssessmentConfig(paths.Risk)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk assessment config %s: %w", paths.Risk, err)
	}
	data, err := config.LoadDataConfig(paths.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to load data config %s: %w", paths.Data, err)
	}
	anon, err := config.LoadAnonymizationConfig(paths.Anonymization)
	if err != nil {
		return nil, fmt.Errorf("failed to load anonymization config %s: %w", paths.Anonymization, err)
	}

	var stats *config.StatisticsConfig
	if risk.PathToStatisticsConfig != "" {
		stats, err = config.LoadStatisticsConfig(risk.PathToStatisticsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load statistics config %s: %w", risk.PathToStatisticsConfig, err)
		}
	}

	def, err := dataset.NewDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data definition: %w", err)
	}
	population, err := dataset.Load(data.DataCsvFile, def)
	if err != nil {
		return nil, fmt.Errorf("failed to load population: %w", err)
	}
	selection, err := targets.New(population)
	if err != nil {
		return nil, fmt.Errorf("failed to rank targets: %w", err)
	}

	return &experiment{
		paths:         paths,
		series:        series,
		risk:          risk,
		data:          data,
		anonymization: anon,
		statistics:    stats,
		population:    population,
		selection:     selection,
	}, nil
}

func (r *Runner) runFeature(ctx context.Context, exp *experiment, featureType string) error {
	start := r.cfg.Now()
	name := AssessmentName(start, exp.series, exp.risk.Name, exp.data.DataSetName, exp.anonymization.Name, featureType)
	logger := r.logger.With(slog.String("assessment", name))

	logger.Info("Starting risk assessment",
		slog.String("anonymization", exp.anonymization.Name),
		slog.String("feature_type", featureType),
	)

	// Step 1: Report files
	rep, err := report.Create(r.cfg.ResultDirectory, name, report.Configs{
		Risk:          exp.risk,
		Data:          exp.data,
		Anonymization: exp.anonymization,
	})
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer rep.Close()

	// Step 2: Engine in INIT
	engine, err := assessment.NewEngine(assessment.EngineConfig{
		Data:          exp.data,
		Anonymization: exp.anonymization,
		Risk:          exp.risk,
		Statistics:    exp.statistics,
		FeatureType:   featureType,
		Workers:       r.cfg.Workers,
		Population:    exp.population,
	}, assessment.Dependencies{
		Logger:        logger,
		Metrics:       r.cfg.Metrics,
		Anonymizer:    r.cfg.Anonymizer,
		Extractor:     r.cfg.Extractor,
		NewClassifier: r.cfg.NewClassifier,
		Selection:     exp.selection,
		Log:           rep.Log(),
		Summary:       rep.Summary(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize assessment %s: %w", name, err)
	}

	// Step 3: Registry entry
	runID := uuid.New().String()
	r.createRun(ctx, logger, &registry.Run{
		RunID:               runID,
		Name:                name,
		Series:              exp.series,
		FeatureType:         featureType,
		DataConfig:          exp.paths.Data,
		AnonymizationConfig: exp.paths.Anonymization,
		RiskConfig:          exp.paths.Risk,
		Status:              registry.RunStatusRunning,
		LogFile:             rep.LogPath,
		SummaryFile:         rep.SummaryPath,
		StartedAt:           start,
	})

	// Step 4: Execute
	r.setCurrent(engine)
	summaries, execErr := engine.Execute(ctx)
	progress := engine.Progress()
	r.setCurrent(nil)

	interrupted := ctx.Err() != nil || r.isStopped()
	if interrupted && execErr == nil {
		execErr = ErrStopped
	}
	end := r.cfg.Now()

	// Step 5: Outputs of a summarized, uninterrupted engine
	if engine.State() == domain.StateSummarized && !interrupted {
		r.writeOutputs(logger, exp, rep, name, featureType, start, end, summaries)
	}

	// Step 6: Registry outcome and completion event
	status := registry.RunStatusCompleted
	if execErr != nil {
		status = registry.RunStatusFailed
	}
	r.finishRun(logger, runID, registry.Outcome{
		Status:       status,
		JobsTotal:    progress.JobsTotal,
		WorkerErrors: progress.WorkerErrors,
		FinishedAt:   end,
	})

	if execErr == nil {
		if err := r.cfg.Notifier.AssessmentCompleted(context.WithoutCancel(ctx), notify.AssessmentCompleted{
			RunID:        runID,
			Name:         name,
			FeatureType:  featureType,
			FinishedAt:   end,
			WorkerErrors: progress.WorkerErrors,
			Targets:      summaries,
		}); err != nil {
			logger.Warn("Completion event not delivered", slog.Any("error", err))
		}
	}

	if execErr != nil {
		logger.Error("Risk assessment failed",
			slog.Int("worker_errors", progress.WorkerErrors),
			slog.Any("error", execErr),
		)
		return fmt.Errorf("risk assessment %s failed: %w", name, execErr)
	}

	logger.Info("Risk assessment finished",
		slog.Int("targets", len(summaries)),
		slog.Duration("duration", end.Sub(start)),
	)
	return nil
}

// writeOutputs writes the optional XLSX summary and the series line. Failures are logged only.
func (r *Runner) writeOutputs(logger *slog.Logger, exp *experiment, rep *report.Report, name, featureType string, start, end time.Time, summaries []domain.TargetSummary) {
	if r.cfg.XLSX {
		path := filepath.Join(r.cfg.ResultDirectory, name+report.XLSXSuffix)
		if err := report.WriteXLSX(path, summaries); err != nil {
			logger.Error("Failed to write XLSX summary", slog.String("path", path), slog.Any("error", err))
		}
	}

	entry := report.SeriesEntry{
		ExperimentName:      name,
		Start:               start,
		End:                 end,
		RiskConfig:          exp.risk.Name,
		DataConfig:          exp.data.DataSetName,
		AnonymizationConfig: exp.anonymization.Name,
		FeatureType:         featureType,
		LogFile:             filepath.Base(rep.LogPath),
		SummaryFile:         filepath.Base(rep.SummaryPath),
		ConfigFile:          filepath.Base(rep.ConfigPath),
	}
	path := report.SeriesPath(r.cfg.ResultDirectory, exp.series)
	if err := report.AppendSeries(path, entry); err != nil {
		logger.Error("Failed to append series summary", slog.String("path", path), slog.Any("error", err))
	}
}

func (r *Runner) createRun(ctx context.Context, logger *slog.Logger, run *registry.Run) {
	if r.cfg.Registry == nil {
		return
	}
	if err := r.cfg.Registry.CreateRun(ctx, run); err != nil {
		logger.Error("Failed to record run", slog.String("run_id", run.RunID), slog.Any("error", err))
	}
}

func (r *Runner) finishRun(logger *slog.Logger, runID string, outcome registry.Outcome) {
	if r.cfg.Registry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.cfg.Registry.FinishRun(ctx, runID, outcome); err != nil {
		logger.Error("Failed to record run outcome", slog.String("run_id", runID), slog.Any("error", err))
	}
}
