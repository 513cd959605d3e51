package model

import (
	"time"
)

// EventType labels payloads on the outbound notification channel.
type EventType string

const (
	EventTypeToolCall EventType = "tool_call"
	EventTypeSummary  EventType = "conversation_summary"
	EventTypeEndCall  EventType = "end_call"
)

// ToolCallEvent is published after every tool invocation so the UI can
// display what the agent did.
type ToolCallEvent struct {
	Type       EventType      `json:"type"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	Result     string         `json:"result"`
	Timestamp  time.Time      `json:"timestamp"`
	Status     string         `json:"status"`
}

// NewToolCallEvent builds a tool_call event with the current timestamp.
func NewToolCallEvent(tool string, params map[string]any, result string) ToolCallEvent {
	if params == nil {
		params = map[string]any{}
	}
	return ToolCallEvent{
		Type:       EventTypeToolCall,
		ToolName:   tool,
		Parameters: params,
		Result:     result,
		Timestamp:  time.Now().UTC(),
		Status:     "success",
	}
}

// SummaryEvent is published once at session end, before the end_call signal.
type SummaryEvent struct {
	Type    EventType           `json:"type"`
	Summary ConversationSummary `json:"summary"`
}

// EndCallEvent tells the UI the session is over.
type EndCallEvent struct {
	Type EventType `json:"type"`
}
