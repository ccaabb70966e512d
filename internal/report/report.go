// Package report writes the files of one assessment (result log, summary,
// config bundle) and the summary line of an assessment series.
package report

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuongbtq/phantom-risk/internal/assessment/domain"
	"github.com/cuongbtq/phantom-risk/internal/config"
)

// File name suffixes of an assessment report
const (
	LogSuffix     = "_log.csv"
	SummarySuffix = "_summary.txt"
	ConfigSuffix  = "_cfgs.yml"
	XLSXSuffix    = "_summary.xlsx"
)

// ErrReportExists is returned when the log or summary of an assessment already exists
var ErrReportExists = errors.New("summary and/or log file already exists")

// Configs bundles the experiment configs written next to the report
type Configs struct {
	ExperimentName string                       `yaml:"experimentName"`
	Risk           *config.RiskAssessmentConfig `yaml:"riskAssessmentConfig"`
	Data           *config.DataConfig           `yaml:"dataConfig"`
	Anonymization  *config.AnonymizationConfig  `yaml:"anonymizationConfig"`
}

// Report holds the open files of one assessment
type Report struct {
	Name        string
	LogPath     string
	SummaryPath string
	ConfigPath  string

	log     *os.File
	summary *os.File
}

// Create opens {dir}/{name}_log.csv and {dir}/{name}_summary.txt, failing if
// either exists, writes the result log header and the config bundle
func Create(dir, name string, cfgs Configs) (*Report, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}

	r := &Report{
		Name:        name,
		LogPath:     filepath.Join(dir, name+LogSuffix),
		SummaryPath: filepath.Join(dir, name+SummarySuffix),
		ConfigPath:  filepath.Join(dir, name+ConfigSuffix),
	}

	var err error
	if r.log, err = createExclusive(r.LogPath); err != nil {
		return nil, err
	}
	if r.summary, err = createExclusive(r.SummaryPath); err != nil {
		r.log.Close()
		return nil, err
	}

	cfgs.ExperimentName = name
	if err := config.WriteYAML(r.ConfigPath, cfgs); err != nil {
		r.Close()
		return nil, err
	}

	if _, err := io.WriteString(r.log, domain.LogHeader()+"\n"); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}

	return r, nil
}

func createExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrReportExists, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, nil
}

// Log returns the result log writer. Concurrent writers must serialize their lines.
func (r *Report) Log() io.Writer {
	return r.log
}

// Summary returns the summary file writer
func (r *Report) Summary() io.Writer {
	return r.summary
}

// Close closes both files
func (r *Report) Close() error {
	var errs []error
	if r.log != nil {
		errs = append(errs, r.log.Close())
	}
	if r.summary != nil {
		errs = append(errs, r.summary.Close())
	}
	return errors.Join(errs...)
}
