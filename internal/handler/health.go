package handler

import (
	"net/http"

	"github.com/clinicvoice/agent-backend/internal/store"
)

// ConnChecker reports whether the notification channel is up.
type ConnChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store store.Store
	conn  ConnChecker // nil when no channel is configured
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st store.Store, conn ConnChecker) *HealthHandler {
	return &HealthHandler{
		store: st,
		conn:  conn,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "store unreachable",
		})
		return
	}

	if h.conn != nil && !h.conn.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "notification channel not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
