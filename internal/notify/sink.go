// Package notify carries tool-call and summary events to the UI over a
// per-session data channel.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/clinicvoice/agent-backend/internal/model"
	"github.com/clinicvoice/agent-backend/pkg/logger"
)

// Sink is the outbound notification channel for one deployment. Delivery is
// best effort: implementations log failures and never surface them to the
// conversation.
type Sink interface {
	// PublishToolCall reports a completed tool invocation.
	PublishToolCall(ctx context.Context, sessionID string, event model.ToolCallEvent)

	// PublishSummary delivers the end-of-session summary.
	PublishSummary(ctx context.Context, sessionID string, summary model.ConversationSummary)

	// PublishEndCall signals that the session is over.
	PublishEndCall(ctx context.Context, sessionID string)
}

// LogSink writes notifications to the log only. Used when no channel is
// configured and as a fallback in local development.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a log-only sink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) PublishToolCall(ctx context.Context, sessionID string, event model.ToolCallEvent) {
	s.logger.Debug("tool call event",
		zap.String("session_id", sessionID),
		zap.String("tool", event.ToolName),
		zap.String("result", event.Result),
	)
}

func (s *LogSink) PublishSummary(ctx context.Context, sessionID string, summary model.ConversationSummary) {
	s.logger.Info("conversation summary event",
		zap.String("session_id", sessionID),
		zap.String("conversation_id", summary.ConversationID),
	)
}

func (s *LogSink) PublishEndCall(ctx context.Context, sessionID string) {
	s.logger.Info("end call event", zap.String("session_id", sessionID))
}
