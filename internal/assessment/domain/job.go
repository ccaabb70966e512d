// Package domain holds the value types of one membership inference assessment:
// jobs, their result records, per-target summaries and engine states.
package domain

import (
	"strconv"
	"strings"

	"github.com/cuongbtq/phantom-risk/internal/sampling"
	"github.com/cuongbtq/phantom-risk/internal/statistics"
)

// Job is one (run, target) unit of work. It is created at job generation,
// consumed by exactly one worker and only mutated by that worker.
type Job struct {
	Run        int
	Target     int
	Cohort     sampling.IDSet
	Background sampling.IDSet
	Results    []ResultRecord
}

// NewJob excludes target from both id sets
func NewJob(run, target int, cohort, background sampling.IDSet) *Job {
	return &Job{
		Run:        run,
		Target:     target,
		Cohort:     sampling.RemoveTarget(cohort, target),
		Background: sampling.RemoveTarget(background, target),
	}
}

// AddResult appends an immutable result record
func (j *Job) AddResult(r ResultRecord) {
	j.Results = append(j.Results, r)
}

// Lines formats every result of the job as result log lines
func (j *Job) Lines() []string {
	lines := make([]string, 0, len(j.Results))
	for _, r := range j.Results {
		lines = append(lines, r.Line(j.Run, j.Target))
	}
	return lines
}

// ResultRecord is the outcome of predicting one held-out test sample
type ResultRecord struct {
	Iteration      int
	TrueLabel      bool
	PredictedLabel bool
	Confidence     float64
	Statistics     statistics.Snapshot
}

// Correct reports whether the prediction matched the true label
func (r ResultRecord) Correct() bool {
	return r.PredictedLabel == r.TrueLabel
}

// Line formats the record as Run;Target;Iteration;TrueLabel;PredictedLabel;Confidence;<statistics>
func (r ResultRecord) Line(run, target int) string {
	fields := []string{
		strconv.Itoa(run),
		strconv.Itoa(target),
		strconv.Itoa(r.Iteration),
		label(r.TrueLabel),
		label(r.PredictedLabel),
		strconv.FormatFloat(r.Confidence, 'f', -1, 64),
	}
	fields = append(fields, r.Statistics.Fields()...)
	return strings.Join(fields, ";")
}

func label(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// LogHeader is the first line of every result log
func LogHeader() string {
	columns := []string{ColumnRun, ColumnTarget, ColumnIteration, ColumnTrueLabel, ColumnPredictedLabel, ColumnConfidence}
	return strings.Join(append(columns, statistics.Header...), ";")
}

// TargetSummary is the aggregated outcome of one target
type TargetSummary struct {
	TargetID int     `json:"target_id"`
	Distance float64 `json:"distance"`
	Accuracy float64 `json:"accuracy"`
}

// Line formats the summary as TargetId;Distance;Accuracy
func (s TargetSummary) Line() string {
	return strconv.Itoa(s.TargetID) + ";" +
		strconv.FormatFloat(s.Distance, 'f', -1, 64) + ";" +
		strconv.FormatFloat(s.Accuracy, 'f', -1, 64)
}
