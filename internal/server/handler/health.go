package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the unauthenticated health-check endpoint. The
// response names the engine and its run mode so a probe can tell a
// validate-only deployment from a full one.
type HealthHandler struct {
	mode    string
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler for the given run mode.
func NewHealthHandler(mode string) *HealthHandler {
	return &HealthHandler{
		mode:    mode,
		started: time.Now().UTC(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck reports liveness, run mode, and uptime.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	uptime := int64(now.Sub(h.started).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "verivo-engine",
		"mode":           h.mode,
		"uptime_seconds": uptime,
		"timestamp":      now.Format(time.RFC3339),
	})
}
