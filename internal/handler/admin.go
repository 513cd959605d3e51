package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clinicvoice/agent-backend/internal/agent"
	"github.com/clinicvoice/agent-backend/internal/calendar"
	"github.com/clinicvoice/agent-backend/internal/store"
	"github.com/clinicvoice/agent-backend/pkg/logger"
)

// AdminHandler serves the read-only admin API: patient lookups, appointment
// history and slot availability for the front desk.
type AdminHandler struct {
	store  store.Store
	cal    *calendar.Calendar
	logger *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(st store.Store, cal *calendar.Calendar, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		store:  st,
		cal:    cal,
		logger: log,
	}
}

// LookupUser handles GET /users/lookup?phone=
func (h *AdminHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	phone := agent.NormalizePhone(r.URL.Query().Get("phone"))
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone query parameter must be a valid US number")
		return
	}

	user, err := h.store.GetUserByPhone(r.Context(), phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no user with that phone number")
			return
		}
		h.logger.Error("user lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ListAppointments handles GET /users/{id}/appointments?limit=
func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	appointments, err := h.store.ListAppointmentsForUser(r.Context(), userID, parseLimit(r, 50))
	if err != nil {
		h.logger.Error("list appointments failed", zap.Error(err), zap.String("user_id", userID))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

// ListSummaries handles GET /users/{id}/summaries?limit=
func (h *AdminHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	summaries, err := h.store.ListSummariesForUser(r.Context(), userID, parseLimit(r, 10))
	if err != nil {
		h.logger.Error("list summaries failed", zap.Error(err), zap.String("user_id", userID))
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summaries": summaries,
		"count":     len(summaries),
	})
}

// Slots handles GET /slots?date=YYYY-MM-DD
func (h *AdminHandler) Slots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "date query parameter must be YYYY-MM-DD")
		return
	}

	booked, err := h.store.ListBookedSlots(r.Context(), date)
	if err != nil {
		h.logger.Error("list booked slots failed", zap.Error(err), zap.String("date", date))
		writeError(w, http.StatusInternalServerError, "availability check failed")
		return
	}

	available := make([]string, 0)
	for _, t := range h.cal.AvailableTimes(date) {
		if _, taken := booked[date+" "+t]; !taken {
			available = append(available, t)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":      date,
		"available": available,
	})
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
