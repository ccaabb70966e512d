package runner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cuongbtq/phantom-risk/internal/config"
	"github.com/cuongbtq/phantom-risk/internal/dataset"
	"github.com/cuongbtq/phantom-risk/internal/targets"
)

// SelectTargets ranks every record of the dataset by outlierness and writes
// the ranking to {dir}/targets_{dataset}.csv. It returns the written path.
func (r *Runner) SelectTargets(dataConfigPath, dir string) (string, error) {
	data, err := config.LoadDataConfig(dataConfigPath)
	if err != nil {
		return "", fmt.Errorf("failed to load data config %s: %w", dataConfigPath, err)
	}

	def, err := dataset.NewDefinition(data)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data definition: %w", err)
	}
	population, err := dataset.Load(data.DataCsvFile, def)
	if err != nil {
		return "", fmt.Errorf("failed to load population: %w", err)
	}

	selection, err := targets.New(population)
	if err != nil {
		return "", fmt.Errorf("failed to rank targets: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, "targets_"+data.DataSetName+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create targets file: %w", err)
	}
	defer f.Close()

	if err := targets.WriteRanking(f, selection.Ranking()); err != nil {
		return "", fmt.Errorf("failed to write targets file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close targets file: %w", err)
	}

	r.logger.Info("Target selection finished",
		slog.String("path", path),
		slog.Int("records", selection.Len()),
	)
	return path, nil
}
