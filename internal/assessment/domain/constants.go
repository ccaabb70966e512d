package domain

// State is a lifecycle stage of an assessment engine. States only move forward.
type State string

// Engine state constants
const (
	StateInit          State = "INIT"
	StateJobsGenerated State = "JOBS_GENERATED"
	StateRunning       State = "RUNNING"
	StateJoined        State = "JOINED"
	StateSummarized    State = "SUMMARIZED"
)

var stateOrder = map[State]int{
	StateInit:          0,
	StateJobsGenerated: 1,
	StateRunning:       2,
	StateJoined:        3,
	StateSummarized:    4,
}

// Next returns the state that follows s, or s itself for the terminal state
func (s State) Next() State {
	switch s {
	case StateInit:
		return StateJobsGenerated
	case StateJobsGenerated:
		return StateRunning
	case StateRunning:
		return StateJoined
	case StateJoined:
		return StateSummarized
	default:
		return s
	}
}

// Reached reports whether s is at or past other
func (s State) Reached(other State) bool {
	return stateOrder[s] >= stateOrder[other]
}

// Result log column names preceding the statistics columns
const (
	ColumnRun            = "Run"
	ColumnTarget         = "Target"
	ColumnIteration      = "Iteration"
	ColumnTrueLabel      = "TrueLabel"
	ColumnPredictedLabel = "PredictedLabel"
	ColumnConfidence     = "Confidence"
)

// SummaryHeader is the first line of every summary file
const SummaryHeader = "TargetId;Distance;Accuracy"
