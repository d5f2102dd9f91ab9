package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store   Pinger
	version string
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Pinger, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		version: version,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /healthz.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	overall := "healthy"
	dbStatus := "ok"
	status := http.StatusOK
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health check database ping failed",
				slog.String("error", err.Error()))
			overall = "degraded"
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{
		"status":   overall,
		"database": dbStatus,
		"version":  h.version,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
