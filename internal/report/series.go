package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SeriesHeader lists the columns of a series summary file
var SeriesHeader = []string{
	"ExperimentName",
	"StartTime",
	"EndTime",
	"SMConfig",
	"DataConfig",
	"AnonymizationConfig",
	"FeatureType",
	"LogFile",
	"SummaryFile",
	"CfgsFile",
}

// SeriesEntry is one finished assessment of a series
type SeriesEntry struct {
	ExperimentName      string
	Start               time.Time
	End                 time.Time
	RiskConfig          string
	DataConfig          string
	AnonymizationConfig string
	FeatureType         string
	LogFile             string
	SummaryFile         string
	ConfigFile          string
}

func (e SeriesEntry) record() []string {
	return []string{
		e.ExperimentName,
		e.Start.Format(time.RFC3339),
		e.End.Format(time.RFC3339),
		e.RiskConfig,
		e.DataConfig,
		e.AnonymizationConfig,
		e.FeatureType,
		e.LogFile,
		e.SummaryFile,
		e.ConfigFile,
	}
}

// SeriesPath returns {dir}/{series}.csv
func SeriesPath(dir, series string) string {
	return filepath.Join(dir, series+".csv")
}

// AppendSeries appends entry to the series file at path, writing the header first when the file is new
func AppendSeries(path string, entry SeriesEntry) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open series file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat series file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'
	if info.Size() == 0 {
		if err := w.Write(SeriesHeader); err != nil {
			return fmt.Errorf("failed to write series header: %w", err)
		}
	}
	if err := w.Write(entry.record()); err != nil {
		return fmt.Errorf("failed to write series entry: %w", err)
	}
	w.Flush()
	return w.Error()
}
