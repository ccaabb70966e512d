package registry

import (
	"database/sql"
	"errors"
	"time"
)

// Run statuses
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

var (
	ErrRunNotFound = errors.New("run not found")
)

// Run is one row of the assessment_runs table
type Run struct {
	RunID               string       `db:"run_id"`
	Name                string       `db:"name"`
	Series              string       `db:"series"`
	FeatureType         string       `db:"feature_type"`
	DataConfig          string       `db:"data_config"`
	AnonymizationConfig string       `db:"anonymization_config"`
	RiskConfig          string       `db:"risk_config"`
	Status              string       `db:"status"`
	JobsTotal           int          `db:"jobs_total"`
	WorkerErrors        int          `db:"worker_errors"`
	LogFile             string       `db:"log_file"`
	SummaryFile         string       `db:"summary_file"`
	StartedAt           time.Time    `db:"started_at"`
	FinishedAt          sql.NullTime `db:"finished_at"`
}

// Outcome is what FinishRun records about a finished assessment
type Outcome struct {
	Status       string
	JobsTotal    int
	WorkerErrors int
	FinishedAt   time.Time
}
