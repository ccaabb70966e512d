package dto

type ListRunsRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=RUNNING COMPLETED FAILED"`
	PageSize int    `form:"page_size" binding:"omitempty,min=0"`
	Cursor   string `form:"cursor"`
}

type ListRunsResponse struct {
	Runs       []RunDTO `json:"runs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type RunDTO struct {
	RunID               string `json:"run_id"`
	Name                string `json:"name"`
	Series              string `json:"series"`
	FeatureType         string `json:"feature_type"`
	DataConfig          string `json:"data_config"`
	AnonymizationConfig string `json:"anonymization_config"`
	RiskConfig          string `json:"risk_config"`
	Status              string `json:"status"`
	JobsTotal           int    `json:"jobs_total"`
	WorkerErrors        int    `json:"worker_errors"`
	LogFile             string `json:"log_file"`
	SummaryFile         string `json:"summary_file"`
	StartedAt           string `json:"started_at"`
	FinishedAt          string `json:"finished_at,omitempty"`
}
