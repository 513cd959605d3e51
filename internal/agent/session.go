package agent

import (
	"sync"
	"time"

	"github.com/clinicvoice/agent-backend/internal/llm"
	"github.com/clinicvoice/agent-backend/internal/tracker"
)

// PendingAppointment is a snapshot of the most recently booked appointment,
// kept so follow-up turns ("actually, move that to Friday") can refer to it.
type PendingAppointment struct {
	ID      string
	Date    string
	Time    string
	Purpose string
}

// ToolCallRecord remembers the last tool invocation on a session.
type ToolCallRecord struct {
	Tool      string
	Params    map[string]any
	Result    string
	Timestamp time.Time
}

// Session holds all per-call state. Tool invocations on a session are
// serialized by mu; a session is never shared across calls.
type Session struct {
	ID string

	mu sync.Mutex

	Identified bool
	UserID     string
	UserPhone  string
	UserName   string

	Pending      *PendingAppointment
	LastToolCall *ToolCallRecord

	LastUserMessage  string
	LastAgentMessage string
	Transcript       []llm.ChatMessage

	Tracker *tracker.Tracker
}

// NewSession creates a session with a fresh conversation tracker.
func NewSession(id string) *Session {
	return &Session{
		ID:      id,
		Tracker: tracker.New(id),
	}
}

// RecordUserTurn appends a caller utterance to the transcript.
func (s *Session) RecordUserTurn(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUserMessage = text
	s.Transcript = append(s.Transcript, llm.ChatMessage{Role: "user", Content: text})
}

// RecordAgentTurn appends an agent utterance to the transcript.
func (s *Session) RecordAgentTurn(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastAgentMessage = text
	s.Transcript = append(s.Transcript, llm.ChatMessage{Role: "assistant", Content: text})
}

// TranscriptCopy returns a snapshot of the transcript so far.
func (s *Session) TranscriptCopy() []llm.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.ChatMessage, len(s.Transcript))
	copy(out, s.Transcript)
	return out
}
