// Package summary distills a session's tracker into a persisted conversation
// summary. The deterministic text is always produced; an optional AI pass may
// replace the free-text field when it finishes within its deadline.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicvoice/agent-backend/internal/llm"
	"github.com/clinicvoice/agent-backend/internal/model"
	"github.com/clinicvoice/agent-backend/internal/tracker"
	"github.com/clinicvoice/agent-backend/pkg/logger"
	"github.com/clinicvoice/agent-backend/pkg/metrics"
)

// DefaultTimeout bounds the AI augmentation attempt.
const DefaultTimeout = 6 * time.Second

// Generator builds conversation summaries.
type Generator struct {
	client  llm.Client // nil disables AI augmentation
	model   string
	timeout time.Duration
	logger  *logger.Logger
}

// NewGenerator creates a summary generator. client may be nil.
func NewGenerator(client llm.Client, model string, timeout time.Duration, log *logger.Logger) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  log,
	}
}

// Generate produces the summary record for a sealed session. It never fails:
// AI errors and timeouts fall back to the deterministic text.
func (g *Generator) Generate(ctx context.Context, tr *tracker.Tracker, transcript []llm.ChatMessage) *model.ConversationSummary {
	start := time.Now()
	defer func() {
		metrics.SummaryDuration.Observe(time.Since(start).Seconds())
	}()

	text := buildSummaryText(tr)

	if g.client != nil && len(transcript) > 0 {
		if aiText, err := g.augment(ctx, transcript); err != nil {
			reason := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			metrics.SummaryFallbacksTotal.WithLabelValues(reason).Inc()
			g.logger.Warn("AI summary fell back to deterministic text",
				zap.String("conversation_id", tr.ConversationID),
				zap.String("reason", reason),
				zap.Error(err),
			)
		} else if aiText != "" {
			text = aiText
		}
	}

	return &model.ConversationSummary{
		ConversationID:        tr.ConversationID,
		UserID:                tr.UserID,
		UserPhone:             tr.UserPhone,
		UserName:              tr.UserName,
		ConversationDate:      tr.StartTime,
		DurationMinutes:       tr.DurationMinutes(),
		AppointmentsDiscussed: buildEntries(tr),
		UserPreferences:       append([]string{}, tr.Preferences...),
		SummaryText:           text,
		EventsCount:           tr.EventCount(),
	}
}

// augment races the LLM call against the configured deadline. The underlying
// call is cancelled when the deadline fires.
func (g *Generator) augment(ctx context.Context, transcript []llm.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		resp, err := g.client.Complete(ctx, &llm.CompletionRequest{
			Model:    g.model,
			Messages: []llm.ChatMessage{{Role: "user", Content: buildPrompt(transcript)}},
		})
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{text: strings.TrimSpace(resp.Content)}
	}()

	select {
	case out := <-done:
		return out.text, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func buildPrompt(transcript []llm.ChatMessage) string {
	var b strings.Builder
	b.WriteString("Summarize this appointment call in 2-3 sentences. Mention any bookings, changes, or cancellations and the caller's preferences. Do not include IDs.\n\n")
	for _, msg := range transcript {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// buildSummaryText assembles the deterministic clause-based text.
func buildSummaryText(tr *tracker.Tracker) string {
	var parts []string

	if tr.UserName != "" {
		parts = append(parts, "Spoke with "+tr.UserName)
	} else {
		parts = append(parts, "Completed appointment conversation")
	}

	for _, apt := range tr.Booked {
		purpose := apt.Purpose
		if purpose == "" {
			purpose = "appointment"
		}
		parts = append(parts, fmt.Sprintf("Successfully booked a %s for %s at %s", purpose, apt.Date, apt.Time))
	}

	if n := len(tr.Modified); n == 1 {
		parts = append(parts, "Rescheduled an existing appointment")
	} else if n > 1 {
		parts = append(parts, fmt.Sprintf("Rescheduled %d appointments", n))
	}

	if n := len(tr.Cancelled); n == 1 {
		parts = append(parts, "Cancelled an appointment")
	} else if n > 1 {
		parts = append(parts, fmt.Sprintf("Cancelled %d appointments", n))
	}

	if len(tr.Viewed) > 0 && len(tr.Booked) == 0 && len(tr.Modified) == 0 && len(tr.Cancelled) == 0 {
		if n := len(tr.Viewed); n == 1 {
			parts = append(parts, "Reviewed their upcoming appointment")
		} else {
			parts = append(parts, fmt.Sprintf("Reviewed %d upcoming appointments", n))
		}
	}

	if len(tr.Preferences) > 0 {
		parts = append(parts, "Noted preferences: "+strings.Join(tr.Preferences, ", "))
	}

	if len(parts) <= 1 {
		parts = append(parts, "Discussed appointment options and availability")
	}

	return strings.Join(parts, ". ") + "."
}

func buildEntries(tr *tracker.Tracker) []model.AppointmentEntry {
	entries := make([]model.AppointmentEntry, 0, len(tr.Booked)+len(tr.Modified)+len(tr.Cancelled))

	for _, apt := range tr.Booked {
		purpose := apt.Purpose
		if purpose == "" {
			purpose = "General appointment"
		}
		entries = append(entries, model.AppointmentEntry{
			Date:    apt.Date,
			Time:    apt.Time,
			Purpose: purpose,
			Status:  "Booked",
		})
	}

	for _, mod := range tr.Modified {
		entry := model.AppointmentEntry{
			Date:    "Modified",
			Purpose: "Modified appointment",
			Status:  "Rescheduled",
		}
		if d, ok := mod.Changes["date"]; ok {
			entry.Date = d
		}
		if tv, ok := mod.Changes["time"]; ok {
			entry.Time = tv
		}
		if p, ok := mod.Changes["purpose"]; ok {
			entry.Purpose = p
		}
		entries = append(entries, entry)
	}

	for range tr.Cancelled {
		entries = append(entries, model.AppointmentEntry{
			Date:    "Cancelled",
			Purpose: "Cancelled appointment",
			Status:  "Cancelled",
		})
	}

	return entries
}
