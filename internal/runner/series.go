package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/phantom-risk/internal/config"
)

// Combinations expands a series config into its assessments, in the order
// risk config, then data config, then anonymization config
func Combinations(series *config.SeriesConfig) []Paths {
	var out []Paths
	for _, c := range series.CombinationConfig {
		for _, risk := range c.PathsToRiskAssessmentConfig {
			for _, data := range c.PathsToDataConfig {
				for _, anon := range c.PathsToAnonymizationConfig {
					out = append(out, Paths{Risk: risk, Data: data, Anonymization: anon})
				}
			}
		}
	}
	return out
}

// RunSeries runs every combination of the series config one after another.
// The first failing assessment ends the series.
func (r *Runner) RunSeries(ctx context.Context, seriesConfigPath string) error {
	series, err := config.LoadSeriesConfig(seriesConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load series config %s: %w", seriesConfigPath, err)
	}

	combinations := Combinations(series)
	r.logger.Info("Running risk assessment series",
		slog.String("series", series.Name),
		slog.String("path", seriesConfigPath),
		slog.Int("assessments", len(combinations)),
	)

	for i, paths := range combinations {
		if r.isStopped() || ctx.Err() != nil {
			return ErrStopped
		}

		r.logger.Info("Running risk assessment of series",
			slog.Int("current", i+1),
			slog.Int("total", len(combinations)),
		)
		if err := r.RunAssessment(ctx, paths, series.Name); err != nil {
			return err
		}
	}

	r.logger.Info("Risk assessment series finished", slog.String("series", series.Name))
	return nil
}
