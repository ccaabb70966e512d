package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health handles GET /health
func (h *StatusHandler) Health(c *gin.Context) {
	if h.database != nil {
		if err := h.database.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Error("Database health check failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"service":  "risk-assessment",
				"database": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "risk-assessment",
	})
}

// Progress handles GET /api/v1/progress
func (h *StatusHandler) Progress(c *gin.Context) {
	if h.progress == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No assessment is running"})
		return
	}

	progress, ok := h.progress.Progress()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No assessment is running"})
		return
	}

	c.JSON(http.StatusOK, progress)
}
