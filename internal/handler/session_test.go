package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicvoice/agent-backend/internal/agent"
	"github.com/clinicvoice/agent-backend/internal/calendar"
	"github.com/clinicvoice/agent-backend/internal/notify"
	"github.com/clinicvoice/agent-backend/internal/store"
	"github.com/clinicvoice/agent-backend/internal/summary"
	"github.com/clinicvoice/agent-backend/pkg/logger"
)

func newSessionRouter() http.Handler {
	log := logger.NewNop()
	st := store.NewMemoryStore()
	cal := calendar.New(nil, nil)
	sink := notify.NewLogSink(log)
	gen := summary.NewGenerator(nil, "", 0, log)

	h := NewSessionHandler(func(sessionID string) *agent.Controller {
		return agent.NewController(sessionID, st, cal, sink, gen, log)
	}, log)

	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Post("/sessions/{id}/tools/{tool}", h.InvokeTool)
	r.Post("/sessions/{id}/transcript", h.AppendTranscript)
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func toolResponse(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Response
}

func TestSessionLifecycle(t *testing.T) {
	router := newSessionRouter()

	rec := postJSON(t, router, "/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	base := "/sessions/" + created.SessionID

	msg := toolResponse(t, postJSON(t, router, base+"/tools/"+agent.ToolIdentifyUser, `{"phone":"555-123-4567"}`))
	assert.Contains(t, msg, "Welcome")

	rec = postJSON(t, router, base+"/transcript", `{"role":"user","content":"I'd like a checkup tomorrow at 3pm"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	msg = toolResponse(t, postJSON(t, router, base+"/tools/"+agent.ToolBookAppointment,
		`{"date":"2027-03-10","time":"15:00","purpose":"checkup"}`))
	assert.Contains(t, msg, "all set")

	msg = toolResponse(t, postJSON(t, router, base+"/tools/"+agent.ToolEndConversation, ""))
	assert.Contains(t, msg, "Thank you for calling")

	// The session is gone once the conversation ends.
	rec = postJSON(t, router, base+"/tools/"+agent.ToolGetUserAppointments, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionUnknownToolAndSession(t *testing.T) {
	router := newSessionRouter()

	rec := postJSON(t, router, "/sessions/nope/tools/"+agent.ToolIdentifyUser, `{"phone":"5551234567"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, router, "/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = postJSON(t, router, "/sessions/"+created.SessionID+"/tools/launch_rocket", "{}")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, router, "/sessions/"+created.SessionID+"/transcript", `{"role":"narrator","content":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
