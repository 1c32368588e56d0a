package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger checks a dependency. Nil pingers are skipped.
type Pinger func(ctx context.Context) error

// SystemHandler serves the liveness and readiness probes
type SystemHandler struct {
	version   string
	startTime time.Time
	checks    map[string]Pinger
	timeout   time.Duration
}

// NewSystemHandler creates a SystemHandler. checks maps a dependency name
// to its readiness check.
func NewSystemHandler(version string, checks map[string]Pinger) *SystemHandler {
	return &SystemHandler{
		version:   version,
		startTime: time.Now(),
		checks:    checks,
		timeout:   2 * time.Second,
	}
}

// HealthResponse is the body of both probes
type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	GoVersion    string            `json:"goVersion"`
	Uptime       string            `json:"uptime"`
	Time         string            `json:"time"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (h *SystemHandler) base(status string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Time:      time.Now().UTC().Format(time.RFC3339),
	}
}

// Health reports that the process is up. GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.base("ok"))
}

// Ready checks every dependency. GET /ready
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := h.base("ready")
	resp.Dependencies = make(map[string]string, len(h.checks))
	status := http.StatusOK
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			logger.GetGinLogger(c).Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			resp.Dependencies[name] = "error"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "ok"
	}
	c.JSON(status, resp)
}
