package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicvoice/agent-backend/internal/agent"
	"github.com/clinicvoice/agent-backend/pkg/logger"
)

// ControllerFactory builds a dialogue controller for a new session.
type ControllerFactory func(sessionID string) *agent.Controller

// SessionHandler exposes dialogue sessions to the voice pipeline: session
// creation, tool invocation and transcript capture.
type SessionHandler struct {
	factory ControllerFactory
	logger  *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*agent.Controller
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(factory ControllerFactory, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		factory:  factory,
		logger:   log,
		sessions: make(map[string]*agent.Controller),
	}
}

// Create handles POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.Must(uuid.NewV7()).String()

	h.mu.Lock()
	h.sessions[sessionID] = h.factory(sessionID)
	h.mu.Unlock()

	h.logger.Info("session created", zap.String("session_id", sessionID))
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sessionID})
}

// toolParams carries the argument set shared by all tools; each tool reads
// the fields it cares about.
type toolParams struct {
	Phone         string `json:"phone"`
	Name          string `json:"name"`
	Preference    string `json:"preference"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Purpose       string `json:"purpose"`
	AppointmentID string `json:"appointment_id"`
	NewDate       string `json:"new_date"`
	NewTime       string `json:"new_time"`
	NewPurpose    string `json:"new_purpose"`
}

// InvokeTool handles POST /sessions/{id}/tools/{tool}
func (h *SessionHandler) InvokeTool(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	tool := chi.URLParam(r, "tool")

	h.mu.RLock()
	c, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var params toolParams
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ctx := r.Context()
	var response string
	switch tool {
	case agent.ToolIdentifyUser:
		response = c.Identify(ctx, params.Phone)
	case agent.ToolUpdateUserName:
		response = c.SetName(ctx, params.Name)
	case agent.ToolAddUserPreference:
		response = c.AddPreference(ctx, params.Preference)
	case agent.ToolGetAvailableSlots:
		response = c.AvailableSlots(ctx, params.Date)
	case agent.ToolBookAppointment:
		response = c.Book(ctx, params.Date, params.Time, params.Purpose)
	case agent.ToolGetUserAppointments:
		response = c.Appointments(ctx)
	case agent.ToolCancelAppointment:
		response = c.Cancel(ctx, params.AppointmentID, params.Date, params.Time)
	case agent.ToolModifyAppointment:
		response = c.Modify(ctx, params.AppointmentID, params.NewDate, params.NewTime, params.NewPurpose)
	case agent.ToolEndConversation:
		response = c.EndConversation(ctx)
		h.mu.Lock()
		delete(h.sessions, sessionID)
		h.mu.Unlock()
	default:
		writeError(w, http.StatusNotFound, "unknown tool")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

// transcriptTurn is one utterance from either side of the call.
type transcriptTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AppendTranscript handles POST /sessions/{id}/transcript
func (h *SessionHandler) AppendTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	h.mu.RLock()
	c, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var turn transcriptTurn
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil || turn.Content == "" {
		writeError(w, http.StatusBadRequest, "role and content are required")
		return
	}

	switch turn.Role {
	case "user":
		c.Session().RecordUserTurn(turn.Content)
	case "assistant":
		c.Session().RecordAgentTurn(turn.Content)
	default:
		writeError(w, http.StatusBadRequest, `role must be "user" or "assistant"`)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
