// Package health exposes the liveness and readiness probes. Readiness
// depends only on the optional Redis event feed; the signaling engine
// itself has no external dependencies.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/bus"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
)

// Handler manages health check endpoints
type Handler struct {
	feed *bus.Service
}

// NewHandler creates a new health check handler. A nil feed means
// single-instance mode and is always considered healthy.
func NewHandler(feed *bus.Service) *Handler {
	return &Handler{feed: feed}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if all critical dependencies are healthy
// Returns 503 if any dependency is unhealthy
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	feedStatus := h.checkFeed(ctx)
	checks["feed"] = feedStatus
	if feedStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkFeed verifies Redis connectivity using the PING command
func (h *Handler) checkFeed(ctx context.Context) string {
	// Single-instance mode: nothing to check
	if h.feed == nil {
		return "healthy"
	}

	if err := h.feed.Ping(ctx); err != nil {
		logging.Error(ctx, "Feed health check failed", zap.Error(err))
		return "unhealthy"
	}

	return "healthy"
}
