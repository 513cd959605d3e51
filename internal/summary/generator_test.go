package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicvoice/agent-backend/internal/llm"
	"github.com/clinicvoice/agent-backend/internal/tracker"
	"github.com/clinicvoice/agent-backend/pkg/logger"
)

// fakeLLM returns a canned response, optionally after a delay.
type fakeLLM struct {
	content string
	err     error
	delay   time.Duration
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

func transcript() []llm.ChatMessage {
	return []llm.ChatMessage{
		{Role: "user", Content: "I'd like to book a checkup"},
		{Role: "assistant", Content: "Sure, what day works?"},
	}
}

func TestDeterministicTextAlwaysNonEmpty(t *testing.T) {
	g := NewGenerator(nil, "", 0, logger.NewNop())
	tr := tracker.New("conv-1")
	tr.Seal()

	sum := g.Generate(context.Background(), tr, nil)
	require.NotNil(t, sum)
	assert.Equal(t, "Completed appointment conversation. Discussed appointment options and availability.", sum.SummaryText)
	assert.Equal(t, "conv-1", sum.ConversationID)
	assert.Empty(t, sum.AppointmentsDiscussed)
}

func TestDeterministicTextClauses(t *testing.T) {
	g := NewGenerator(nil, "", 0, logger.NewNop())

	tr := tracker.New("conv-1")
	tr.UserName = "Dana"
	tr.TrackAppointmentBooked(tracker.BookedAppointment{ID: "a1", Date: "2025-06-02", Time: "15:00", Purpose: "checkup"})
	tr.TrackAppointmentCancelled("a2")
	tr.AddPreference("morning appointments")
	tr.Seal()

	sum := g.Generate(context.Background(), tr, nil)
	assert.Contains(t, sum.SummaryText, "Spoke with Dana")
	assert.Contains(t, sum.SummaryText, "Successfully booked a checkup for 2025-06-02 at 15:00")
	assert.Contains(t, sum.SummaryText, "Cancelled an appointment")
	assert.Contains(t, sum.SummaryText, "Noted preferences: morning appointments")

	require.Len(t, sum.AppointmentsDiscussed, 2)
	assert.Equal(t, "Booked", sum.AppointmentsDiscussed[0].Status)
	assert.Equal(t, "Cancelled", sum.AppointmentsDiscussed[1].Status)
}

func TestViewedOnlyMentionedWhenNothingElseHappened(t *testing.T) {
	g := NewGenerator(nil, "", 0, logger.NewNop())

	tr := tracker.New("conv-1")
	tr.TrackAppointmentsViewed(nil)
	tr.TrackAppointmentBooked(tracker.BookedAppointment{Date: "2025-06-02", Time: "15:00"})
	tr.Seal()

	sum := g.Generate(context.Background(), tr, nil)
	assert.NotContains(t, sum.SummaryText, "Reviewed")
}

func TestAIAugmentationReplacesText(t *testing.T) {
	client := &fakeLLM{content: "Dana booked a checkup for Monday afternoon."}
	g := NewGenerator(client, "", time.Second, logger.NewNop())

	tr := tracker.New("conv-1")
	tr.Seal()

	sum := g.Generate(context.Background(), tr, transcript())
	assert.Equal(t, "Dana booked a checkup for Monday afternoon.", sum.SummaryText)
}

func TestAIAugmentationTimesOut(t *testing.T) {
	client := &fakeLLM{content: "too late", delay: 500 * time.Millisecond}
	g := NewGenerator(client, "", 20*time.Millisecond, logger.NewNop())

	tr := tracker.New("conv-1")
	tr.Seal()

	start := time.Now()
	sum := g.Generate(context.Background(), tr, transcript())
	assert.Less(t, time.Since(start), 300*time.Millisecond, "generation does not wait out the slow call")
	assert.Equal(t, "Completed appointment conversation. Discussed appointment options and availability.", sum.SummaryText)
}

func TestAIAugmentationErrorFallsBack(t *testing.T) {
	client := &fakeLLM{err: errors.New("rate limited")}
	g := NewGenerator(client, "", time.Second, logger.NewNop())

	tr := tracker.New("conv-1")
	tr.Seal()

	sum := g.Generate(context.Background(), tr, transcript())
	assert.Equal(t, "Completed appointment conversation. Discussed appointment options and availability.", sum.SummaryText)
}

func TestEmptyTranscriptSkipsAI(t *testing.T) {
	client := &fakeLLM{content: "should not be used"}
	g := NewGenerator(client, "", time.Second, logger.NewNop())

	tr := tracker.New("conv-1")
	tr.Seal()

	sum := g.Generate(context.Background(), tr, nil)
	assert.NotEqual(t, "should not be used", sum.SummaryText)
}
