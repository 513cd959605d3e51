package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicvoice/agent-backend/internal/calendar"
	"github.com/clinicvoice/agent-backend/internal/model"
	"github.com/clinicvoice/agent-backend/internal/store"
	"github.com/clinicvoice/agent-backend/internal/summary"
	"github.com/clinicvoice/agent-backend/internal/tracker"
	"github.com/clinicvoice/agent-backend/pkg/logger"
)

// fakeSink records every notification for assertions.
type fakeSink struct {
	toolCalls []model.ToolCallEvent
	summaries []model.ConversationSummary
	endCalls  int
}

func (s *fakeSink) PublishToolCall(_ context.Context, _ string, event model.ToolCallEvent) {
	s.toolCalls = append(s.toolCalls, event)
}

func (s *fakeSink) PublishSummary(_ context.Context, _ string, cs model.ConversationSummary) {
	s.summaries = append(s.summaries, cs)
}

func (s *fakeSink) PublishEndCall(_ context.Context, _ string) {
	s.endCalls++
}

const (
	testDate  = "2027-03-10"
	testPhone = "(555) 123-4567"
)

func newTestController(t *testing.T, overrides map[string][]string) (*Controller, *store.MemoryStore, *fakeSink) {
	t.Helper()
	st := store.NewMemoryStore()
	sink := &fakeSink{}
	gen := summary.NewGenerator(nil, "", 0, logger.NewNop())
	c := NewController("sess-test", st, calendar.New(nil, overrides), sink, gen, logger.NewNop())
	return c, st, sink
}

func identify(t *testing.T, c *Controller) {
	t.Helper()
	c.Identify(context.Background(), testPhone)
	require.True(t, c.Session().Identified)
	require.NotEmpty(t, c.Session().UserID)
}

func TestIdentifyCreatesUserAndShortCircuits(t *testing.T) {
	ctx := context.Background()
	c, st, sink := newTestController(t, nil)

	msg := c.Identify(ctx, testPhone)
	assert.Contains(t, msg, "Welcome!")
	assert.True(t, c.Session().Identified)

	user, err := st.GetUserByPhone(ctx, "5551234567")
	require.NoError(t, err)
	assert.Equal(t, c.Session().UserID, user.ID)

	// A second identify restates rather than re-querying or re-creating.
	again := c.Identify(ctx, testPhone)
	assert.Contains(t, again, "already checked in")
	assert.Len(t, sink.toolCalls, 2)
}

func TestIdentifyInvalidPhone(t *testing.T) {
	c, _, _ := newTestController(t, nil)

	msg := c.Identify(context.Background(), "12345")
	assert.Contains(t, msg, "valid phone number")
	assert.False(t, c.Session().Identified)
}

func TestIdentifyKnownCallerGreetsByName(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newTestController(t, nil)

	_, err := st.CreateUser(ctx, &model.User{Phone: "5551234567", Name: "Dana"})
	require.NoError(t, err)

	msg := c.Identify(ctx, testPhone)
	assert.Contains(t, msg, "Welcome back, Dana")
	assert.Equal(t, "Dana", c.Session().UserName)
}

func TestSetNamePersistsAndGreets(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newTestController(t, nil)
	identify(t, c)

	msg := c.SetName(ctx, "  Alex  ")
	assert.Contains(t, msg, "Nice to meet you, Alex")

	user, err := st.GetUserByPhone(ctx, "5551234567")
	require.NoError(t, err)
	assert.Equal(t, "Alex", user.Name)
}

func TestToolsRequireIdentification(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)

	assert.Contains(t, c.Book(ctx, testDate, "15:00", "checkup"), "phone number first")
	assert.Contains(t, c.Appointments(ctx), "phone number first")
	assert.Contains(t, c.Cancel(ctx, "", testDate, "15:00"), "phone number first")
	assert.Contains(t, c.Modify(ctx, "some-id", "", "", "follow-up"), "phone number first")
}

func TestBookCancelRebookFlow(t *testing.T) {
	ctx := context.Background()
	c, _, sink := newTestController(t, nil)
	identify(t, c)

	msg := c.Book(ctx, testDate, "15:00", "checkup")
	assert.Contains(t, msg, "all set")
	assert.Contains(t, msg, "3:00 PM")
	require.NotNil(t, c.Session().Pending)

	// Same slot again: reported taken, with the remaining options offered.
	dup := c.Book(ctx, testDate, "15:00", "cleaning")
	assert.Contains(t, dup, "already taken")
	assert.Contains(t, dup, "We still have")

	cancelled := c.Cancel(ctx, "", testDate, "15:00")
	assert.Contains(t, cancelled, "cancelled your checkup")

	// Cancellation frees the slot.
	rebook := c.Book(ctx, testDate, "15:00", "cleaning")
	assert.Contains(t, rebook, "all set")

	summaryMsg := c.EndConversation(ctx)
	assert.Contains(t, summaryMsg, "Thank you for calling")
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, 1, sink.endCalls)
	assert.Contains(t, sink.summaries[0].SummaryText, "booked")
	assert.Contains(t, sink.summaries[0].SummaryText, "Cancelled")
}

func TestBookRejectsClosedDay(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, map[string][]string{testDate: {}})
	identify(t, c)

	msg := c.Book(ctx, testDate, "15:00", "checkup")
	assert.Contains(t, msg, "closed")
}

func TestBookRejectsOffCalendarTime(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)

	msg := c.Book(ctx, testDate, "20:00", "checkup")
	assert.Contains(t, msg, "We don't book at 8:00 PM")
}

func TestAvailableSlotsExcludesBooked(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)
	c.Book(ctx, testDate, "15:00", "checkup")

	msg := c.AvailableSlots(ctx, testDate)
	assert.NotContains(t, msg, "3:00 PM")
	assert.Contains(t, msg, "9:00 AM")
	assert.Contains(t, msg, "and 3 more")
}

func TestAvailableSlotsFullyBooked(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, map[string][]string{testDate: {"10:00"}})
	identify(t, c)
	c.Book(ctx, testDate, "10:00", "checkup")

	msg := c.AvailableSlots(ctx, testDate)
	assert.Contains(t, msg, "fully booked")
}

func TestAppointmentsEmptyStillRecordsView(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)

	msg := c.Appointments(ctx)
	assert.Contains(t, msg, "don't have any upcoming appointments")

	var viewed bool
	for _, ev := range c.Session().Tracker.Events() {
		if ev.Type == tracker.EventAppointmentsViewed {
			viewed = true
		}
	}
	assert.True(t, viewed, "empty readback still records the view")
}

func TestAppointmentsReadsBackAtMostThree(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)

	for _, date := range []string{"2027-03-10", "2027-03-11", "2027-03-12", "2027-03-13"} {
		require.Contains(t, c.Book(ctx, date, "10:00", "checkup"), "all set")
	}

	msg := c.Appointments(ctx)
	assert.Contains(t, msg, "Wednesday, March 10", "soonest appointment is read first")
	assert.NotContains(t, msg, "March 13", "readback stops after three")
	assert.Len(t, c.Session().Tracker.Viewed, 4, "the rollup keeps everything")
}

func TestCancelAlreadyCancelledIsNoOp(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)
	c.Book(ctx, testDate, "15:00", "checkup")
	id := c.Session().Pending.ID

	first := c.Cancel(ctx, id, "", "")
	assert.Contains(t, first, "cancelled your checkup")

	second := c.Cancel(ctx, id, "", "")
	assert.Contains(t, second, "already cancelled")
	assert.Len(t, c.Session().Tracker.Cancelled, 1)
}

func TestCancelUnknownAppointment(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)

	msg := c.Cancel(ctx, "", testDate, "15:00")
	assert.Contains(t, msg, "couldn't find that appointment")
}

func TestModifyPurposeOnlyLeavesSlotAlone(t *testing.T) {
	ctx := context.Background()
	c, st, _ := newTestController(t, nil)
	identify(t, c)
	c.Book(ctx, testDate, "15:00", "checkup")
	id := c.Session().Pending.ID

	msg := c.Modify(ctx, id, "", "", "annual physical")
	assert.Contains(t, msg, "annual physical")

	apt, err := st.GetAppointmentByID(ctx, id, c.Session().UserID)
	require.NoError(t, err)
	assert.Equal(t, "annual physical", apt.Purpose)
	assert.Equal(t, "15:00", apt.Time, "slot unchanged")

	require.Len(t, c.Session().Tracker.Modified, 1)
	assert.Equal(t, map[string]string{"purpose": "annual physical"}, c.Session().Tracker.Modified[0].Changes)
}

func TestModifyRescheduleHitsConflict(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)

	c.Book(ctx, testDate, "15:00", "checkup")
	c.Book(ctx, testDate, "14:00", "cleaning")
	cleaningID := c.Session().Pending.ID

	msg := c.Modify(ctx, cleaningID, testDate, "15:00", "")
	assert.Contains(t, msg, "already taken")
	assert.Empty(t, c.Session().Tracker.Modified)
}

func TestModifyRescheduleToOwnSlotSucceeds(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)
	c.Book(ctx, testDate, "15:00", "checkup")
	id := c.Session().Pending.ID

	msg := c.Modify(ctx, id, testDate, "15:00", "")
	assert.Contains(t, msg, "moved your appointment")
}

func TestModifyNeedsBothDateAndTime(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, nil)
	identify(t, c)
	c.Book(ctx, testDate, "15:00", "checkup")
	id := c.Session().Pending.ID

	msg := c.Modify(ctx, id, "", "16:00", "")
	assert.Contains(t, msg, "both the new date and the new time")
}

func TestEndConversationPersistsSummaryForKnownUser(t *testing.T) {
	ctx := context.Background()
	c, st, sink := newTestController(t, nil)
	identify(t, c)
	c.SetName(ctx, "Alex")
	c.AddPreference(ctx, "mornings work best")

	c.EndConversation(ctx)

	require.Len(t, sink.summaries, 1)
	assert.Contains(t, sink.summaries[0].SummaryText, "Spoke with Alex")
	assert.Contains(t, sink.summaries[0].SummaryText, "mornings work best")

	stored, err := st.ListSummariesForUser(ctx, c.Session().UserID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, c.Session().Tracker.Sealed())
}

func TestEndConversationUnidentifiedStillNotifies(t *testing.T) {
	ctx := context.Background()
	c, _, sink := newTestController(t, nil)

	msg := c.EndConversation(ctx)
	assert.Contains(t, msg, "Thank you for calling")
	assert.Len(t, sink.summaries, 1)
	assert.Equal(t, 1, sink.endCalls)
	assert.NotEmpty(t, sink.summaries[0].SummaryText)
}

func TestEveryToolEmitsNotification(t *testing.T) {
	ctx := context.Background()
	c, _, sink := newTestController(t, nil)

	c.Identify(ctx, testPhone)
	c.SetName(ctx, "Alex")
	c.AddPreference(ctx, "afternoons")
	c.AvailableSlots(ctx, testDate)
	c.Book(ctx, testDate, "15:00", "checkup")
	c.Appointments(ctx)
	c.Modify(ctx, c.Session().Pending.ID, "", "", "follow-up")
	c.Cancel(ctx, c.Session().Pending.ID, "", "")
	c.EndConversation(ctx)

	require.Len(t, sink.toolCalls, 9)
	tools := make([]string, 0, len(sink.toolCalls))
	for _, ev := range sink.toolCalls {
		assert.Equal(t, model.EventTypeToolCall, ev.Type)
		tools = append(tools, ev.ToolName)
	}
	assert.Equal(t, []string{
		ToolIdentifyUser,
		ToolUpdateUserName,
		ToolAddUserPreference,
		ToolGetAvailableSlots,
		ToolBookAppointment,
		ToolGetUserAppointments,
		ToolModifyAppointment,
		ToolCancelAppointment,
		ToolEndConversation,
	}, tools)
}
