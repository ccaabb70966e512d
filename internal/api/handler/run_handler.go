package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/phantom-risk/internal/api/dto"
	"github.com/cuongbtq/phantom-risk/internal/registry"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetRun handles GET /api/v1/runs/:run_id
func (h *RunHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), runID)
	if errors.Is(err, registry.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Run not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run", slog.String("run_id", runID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get run",
		})
		return
	}

	c.JSON(http.StatusOK, toRunDTO(run))
}

// ListRuns handles GET /api/v1/runs
// Lists runs newest first with optional status filter and cursor pagination
func (h *RunHandler) ListRuns(c *gin.Context) {
	// 1. Parse query parameters
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	// 2. Clamp page size
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	// 3. Decode cursor
	cursor, err := registry.DecodeRunCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	// 4. Query one row more than requested to learn whether another page exists
	runs, err := h.runs.ListRuns(c.Request.Context(), registry.RunFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list runs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list runs",
		})
		return
	}

	hasMore := len(runs) > req.PageSize
	if hasMore {
		runs = runs[:req.PageSize]
	}

	resp := dto.ListRunsResponse{Runs: make([]dto.RunDTO, len(runs))}
	for i := range runs {
		resp.Runs[i] = toRunDTO(&runs[i])
	}

	if hasMore {
		last := runs[len(runs)-1]
		resp.NextCursor = registry.EncodeRunCursor(&registry.RunCursor{
			StartedAt: last.StartedAt,
			RunID:     last.RunID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func toRunDTO(run *registry.Run) dto.RunDTO {
	out := dto.RunDTO{
		RunID:               run.RunID,
		Name:                run.Name,
		Series:              run.Series,
		FeatureType:         run.FeatureType,
		DataConfig:          run.DataConfig,
		AnonymizationConfig: run.AnonymizationConfig,
		RiskConfig:          run.RiskConfig,
		Status:              run.Status,
		JobsTotal:           run.JobsTotal,
		WorkerErrors:        run.WorkerErrors,
		LogFile:             run.LogFile,
		SummaryFile:         run.SummaryFile,
		StartedAt:           run.StartedAt.UTC().Format(time.RFC3339),
	}
	if run.FinishedAt.Valid {
		out.FinishedAt = run.FinishedAt.Time.UTC().Format(time.RFC3339)
	}
	return out
}
