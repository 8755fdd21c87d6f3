package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the unauthenticated health endpoints
type HealthHandler struct {
	BaseHandler
	db        Pinger
	name      string
	version   string
	startTime time.Time
	timeout   time.Duration
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, name, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		name:      name,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
	}
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status   string `json:"status"`
	Time     string `json:"time"`
	Database string `json:"database"`
}

// Health handles GET /health: 200 when the database answers, 503 otherwise
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.db.Ping(ctx); err != nil {
		logger.FromContext(c.Request.Context()).Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    HealthStatus{Status: "unhealthy", Time: now, Database: "error"},
			Error: &dto.ErrorInfo{
				Code:      dto.ErrCodeUnavailable,
				Message:   "Database is unreachable",
				Timestamp: time.Now(),
			},
		})
		return
	}
	h.Success(c, HealthStatus{Status: "healthy", Time: now, Database: "ok"})
}

// InfoResponse is the body of GET /health/info
type InfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Info handles GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	h.Success(c, InfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}
