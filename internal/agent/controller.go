// Package agent implements the dialogue session controller: the tool surface
// a voice pipeline invokes on behalf of the caller, backed by the appointment
// store, slot calendar, conversation tracker and notification sink.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicvoice/agent-backend/internal/calendar"
	"github.com/clinicvoice/agent-backend/internal/model"
	"github.com/clinicvoice/agent-backend/internal/notify"
	"github.com/clinicvoice/agent-backend/internal/store"
	"github.com/clinicvoice/agent-backend/internal/summary"
	"github.com/clinicvoice/agent-backend/internal/tracker"
	"github.com/clinicvoice/agent-backend/pkg/logger"
	"github.com/clinicvoice/agent-backend/pkg/metrics"
)

// Tool names as reported on the notification channel.
const (
	ToolIdentifyUser        = "identify_user"
	ToolUpdateUserName      = "update_user_name"
	ToolGetAvailableSlots   = "get_available_slots"
	ToolBookAppointment     = "book_appointment"
	ToolGetUserAppointments = "get_user_appointments"
	ToolCancelAppointment   = "cancel_appointment"
	ToolModifyAppointment   = "modify_appointment"
	ToolAddUserPreference   = "add_user_preference"
	ToolEndConversation     = "end_conversation"
)

// maxSpokenSlots bounds how many free times are read out in one breath.
const maxSpokenSlots = 4

// maxSpokenAppointments bounds how many upcoming appointments are read out.
const maxSpokenAppointments = 3

// Controller drives one dialogue session. Every exported tool method returns
// the conversational string handed back to the voice pipeline; tools never
// return errors, they degrade to apologetic responses instead.
type Controller struct {
	session *Session
	store   store.Store
	cal     *calendar.Calendar
	sink    notify.Sink
	summ    *summary.Generator
	log     *logger.Logger

	loc *time.Location
	now func() time.Time
}

// NewController creates a controller for a fresh session.
func NewController(sessionID string, st store.Store, cal *calendar.Calendar, sink notify.Sink, gen *summary.Generator, log *logger.Logger) *Controller {
	return &Controller{
		session: NewSession(sessionID),
		store:   st,
		cal:     cal,
		sink:    sink,
		summ:    gen,
		log:     log.With(zap.String("session_id", sessionID)),
		loc:     time.Local,
		now:     time.Now,
	}
}

// Session exposes the controller's session state for transcript capture.
func (c *Controller) Session() *Session {
	return c.session
}

// Identify looks the caller up by phone number, creating a record on first
// contact. Calling it again on an identified session is a no-op that restates
// who the caller is.
func (c *Controller) Identify(ctx context.Context, phone string) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{"phone": phone}

	if c.session.Identified {
		msg := "You're already checked in. How can I help?"
		if c.session.UserName != "" {
			msg = fmt.Sprintf("You're already checked in, %s. How can I help?", c.session.UserName)
		}
		return c.finish(ctx, ToolIdentifyUser, params, start, ok(msg))
	}

	clean := NormalizePhone(phone)
	if clean == "" {
		return c.finish(ctx, ToolIdentifyUser, params, start,
			invalid("I didn't catch a valid phone number. Could you say it again, one digit at a time?"))
	}

	user, err := c.store.GetUserByPhone(ctx, clean)
	switch {
	case err == nil:
		c.adoptUser(user)
		var msg string
		if user.HasName() {
			msg = fmt.Sprintf("Welcome back, %s! How can I help you today?", user.Name)
		} else {
			msg = "Welcome back! I don't have your name on file yet. What should I call you?"
		}
		return c.finish(ctx, ToolIdentifyUser, params, start, ok(msg))

	case errors.Is(err, store.ErrNotFound):
		newUser := &model.User{Phone: clean, CreatedAt: c.now().UTC()}
		id, cerr := c.store.CreateUser(ctx, newUser)
		if cerr != nil {
			if errors.Is(cerr, store.ErrDuplicatePhone) {
				// Lost a race with a concurrent registration; re-read.
				if existing, gerr := c.store.GetUserByPhone(ctx, clean); gerr == nil {
					c.adoptUser(existing)
					return c.finish(ctx, ToolIdentifyUser, params, start,
						ok("Welcome back! What should I call you?"))
				}
			}
			c.log.Error("create user failed", zap.Error(cerr))
			metrics.StoreErrorsTotal.WithLabelValues("create_user").Inc()
			return c.finish(ctx, ToolIdentifyUser, params, start, storeFailure())
		}
		newUser.ID = id
		c.adoptUser(newUser)
		return c.finish(ctx, ToolIdentifyUser, params, start,
			ok("Welcome! I've got your number on file. What's your name?"))

	default:
		c.log.Error("user lookup failed", zap.Error(err))
		metrics.StoreErrorsTotal.WithLabelValues("get_user_by_phone").Inc()
		return c.finish(ctx, ToolIdentifyUser, params, start, storeFailure())
	}
}

func (c *Controller) adoptUser(user *model.User) {
	c.session.Identified = true
	c.session.UserID = user.ID
	c.session.UserPhone = user.Phone
	c.session.UserName = user.Name
	c.session.Tracker.UserID = user.ID
	c.session.Tracker.UserPhone = user.Phone
	c.session.Tracker.UserName = user.Name
	c.session.Tracker.AddEvent(tracker.EventUserIdentified, map[string]any{
		"user_id": user.ID,
		"phone":   user.Phone,
	})
}

// SetName records the caller's name on the session and persists it when a
// user record exists. A persistence failure is logged but does not lose the
// name for the rest of the call.
func (c *Controller) SetName(ctx context.Context, name string) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{"name": name}

	name = strings.TrimSpace(name)
	if name == "" {
		return c.finish(ctx, ToolUpdateUserName, params, start,
			invalid("I didn't catch your name. Could you say it again?"))
	}

	c.session.UserName = name
	c.session.Tracker.UserName = name
	c.session.Tracker.AddEvent(tracker.EventNameSaved, map[string]any{"name": name})

	if c.session.UserID != "" {
		if _, err := c.store.UpdateUser(ctx, c.session.UserID, store.UserUpdate{Name: &name}); err != nil {
			c.log.Warn("persist user name failed", zap.Error(err))
			metrics.StoreErrorsTotal.WithLabelValues("update_user").Inc()
		}
	}

	return c.finish(ctx, ToolUpdateUserName, params, start,
		ok(fmt.Sprintf("Nice to meet you, %s! How can I help you today?", name)))
}

// AddPreference notes a caller preference ("mornings work best") for the
// end-of-call summary.
func (c *Controller) AddPreference(ctx context.Context, preference string) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{"preference": preference}

	preference = strings.TrimSpace(preference)
	if preference == "" {
		return c.finish(ctx, ToolAddUserPreference, params, start,
			invalid("I didn't catch that. What would you like me to note?"))
	}

	c.session.Tracker.AddPreference(preference)
	return c.finish(ctx, ToolAddUserPreference, params, start, ok("Got it, I've noted that down."))
}

// AvailableSlots reports the open times on a date, defaulting to tomorrow
// when the caller doesn't name one.
func (c *Controller) AvailableSlots(ctx context.Context, dateInput string) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{"date": dateInput}

	date := ResolveDate(dateInput, c.now().In(c.loc))
	free, res := c.freeSlots(ctx, date)
	if res != nil {
		return c.finish(ctx, ToolGetAvailableSlots, params, start, *res)
	}

	if len(free) == 0 {
		return c.finish(ctx, ToolGetAvailableSlots, params, start,
			ok(fmt.Sprintf("I'm sorry, we're fully booked on %s. Would another day work?", FriendlyDate(date))))
	}

	return c.finish(ctx, ToolGetAvailableSlots, params, start,
		ok(fmt.Sprintf("On %s we have %s. Would any of those work?", FriendlyDate(date), speakSlots(free))))
}

// freeSlots computes the calendar times on a date not taken by an active
// appointment. Returns a non-nil result only on store failure.
func (c *Controller) freeSlots(ctx context.Context, date string) ([]string, *toolResult) {
	booked, err := c.store.ListBookedSlots(ctx, date)
	if err != nil {
		c.log.Error("list booked slots failed", zap.Error(err), zap.String("date", date))
		metrics.StoreErrorsTotal.WithLabelValues("list_booked_slots").Inc()
		res := storeFailure()
		return nil, &res
	}
	var free []string
	for _, t := range c.cal.AvailableTimes(date) {
		if _, taken := booked[date+" "+t]; !taken {
			free = append(free, t)
		}
	}
	return free, nil
}

// speakSlots renders a bounded, speech-friendly list of times.
func speakSlots(slots []string) string {
	spoken := make([]string, 0, maxSpokenSlots)
	for i, s := range slots {
		if i == maxSpokenSlots {
			break
		}
		spoken = append(spoken, FriendlyTime(s))
	}
	out := strings.Join(spoken, ", ")
	if rest := len(slots) - maxSpokenSlots; rest > 0 {
		out += fmt.Sprintf(", and %d more", rest)
	}
	return out
}

// Book creates an appointment for the identified caller, rejecting times the
// calendar never offers and slots another active appointment already holds.
func (c *Controller) Book(ctx context.Context, dateInput, timeInput, purpose string) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{"date": dateInput, "time": timeInput, "purpose": purpose}

	if !c.session.Identified || c.session.UserID == "" {
		return c.finish(ctx, ToolBookAppointment, params, start, invalid(msgNeedIdentify))
	}

	now := c.now().In(c.loc)
	date := ResolveDate(dateInput, now)
	timeValue, tok := ResolveTime(timeInput, now)
	if !tok {
		return c.finish(ctx, ToolBookAppointment, params, start,
			invalid("What time would you like? We book on the hour."))
	}
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		purpose = "general appointment"
	}

	if !c.cal.Allows(date, timeValue) {
		times := c.cal.AvailableTimes(date)
		if len(times) == 0 {
			return c.finish(ctx, ToolBookAppointment, params, start,
				invalid(fmt.Sprintf("We're closed on %s. Would another day work?", FriendlyDate(date))))
		}
		return c.finish(ctx, ToolBookAppointment, params, start,
			invalid(fmt.Sprintf("We don't book at %s. On %s we offer %s.",
				FriendlyTime(timeValue), FriendlyDate(date), speakSlots(times))))
	}

	free, res := c.freeSlots(ctx, date)
	if res != nil {
		return c.finish(ctx, ToolBookAppointment, params, start, *res)
	}
	if !containsSlot(free, timeValue) {
		metrics.BookingConflictsTotal.Inc()
		msg := fmt.Sprintf("I'm sorry, %s on %s is already taken.", FriendlyTime(timeValue), FriendlyDate(date))
		if len(free) > 0 {
			msg += fmt.Sprintf(" We still have %s. Would one of those work?", speakSlots(free))
		} else {
			msg += " That day is now fully booked. Would another day work?"
		}
		return c.finish(ctx, ToolBookAppointment, params, start, conflict(msg))
	}

	dt, err := CombineDateTime(date, timeValue, c.loc)
	if err != nil {
		return c.finish(ctx, ToolBookAppointment, params, start,
			invalid("I couldn't make sense of that date and time. Could you say them again?"))
	}

	apt := &model.Appointment{
		UserID:    c.session.UserID,
		Date:      date,
		Time:      timeValue,
		DateTime:  dt,
		Purpose:   purpose,
		Status:    model.StatusConfirmed,
		CreatedAt: c.now().UTC(),
	}
	id, err := c.store.CreateAppointment(ctx, apt)
	if err != nil {
		c.log.Error("create appointment failed", zap.Error(err))
		metrics.StoreErrorsTotal.WithLabelValues("create_appointment").Inc()
		return c.finish(ctx, ToolBookAppointment, params, start, storeFailure())
	}
	apt.ID = id

	c.session.Pending = &PendingAppointment{ID: id, Date: date, Time: timeValue, Purpose: purpose}
	c.session.Tracker.TrackAppointmentBooked(tracker.BookedAppointment{
		ID: id, Date: date, Time: timeValue, Purpose: purpose,
	})
	metrics.AppointmentsTotal.WithLabelValues("booked").Inc()

	return c.finish(ctx, ToolBookAppointment, params, start,
		ok(fmt.Sprintf("Perfect! You're all set for a %s on %s at %s. Anything else I can help with?",
			purpose, FriendlyDate(date), FriendlyTime(timeValue))))
}

func containsSlot(slots []string, timeValue string) bool {
	for _, s := range slots {
		if s == timeValue {
			return true
		}
	}
	return false
}

// Appointments reads back the caller's upcoming appointments, at most three.
// An empty result is reported conversationally and still recorded as a view.
func (c *Controller) Appointments(ctx context.Context) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{}

	if !c.session.Identified || c.session.UserID == "" {
		return c.finish(ctx, ToolGetUserAppointments, params, start, invalid(msgNeedIdentify))
	}

	all, err := c.store.ListAppointmentsForUser(ctx, c.session.UserID, 0)
	if err != nil {
		c.log.Error("list appointments failed", zap.Error(err))
		metrics.StoreErrorsTotal.WithLabelValues("list_appointments").Inc()
		return c.finish(ctx, ToolGetUserAppointments, params, start, storeFailure())
	}

	now := c.now()
	var upcoming []model.Appointment
	for _, apt := range all {
		if apt.Upcoming(now) {
			upcoming = append(upcoming, apt)
		}
	}
	c.session.Tracker.TrackAppointmentsViewed(upcoming)

	if len(upcoming) == 0 {
		return c.finish(ctx, ToolGetUserAppointments, params, start,
			ok("You don't have any upcoming appointments. Would you like to book one?"))
	}

	lines := make([]string, 0, maxSpokenAppointments)
	for i := len(upcoming) - 1; i >= 0 && len(lines) < maxSpokenAppointments; i-- {
		apt := upcoming[i]
		lines = append(lines, fmt.Sprintf("a %s on %s at %s", apt.Purpose, FriendlyDate(apt.Date), FriendlyTime(apt.Time)))
	}
	return c.finish(ctx, ToolGetUserAppointments, params, start,
		ok(fmt.Sprintf("You have %s. Anything you'd like to change?", strings.Join(lines, ", then "))))
}

// Cancel cancels an appointment identified either by id or by date and time.
// Cancelling an already-cancelled appointment is a friendly no-op.
func (c *Controller) Cancel(ctx context.Context, appointmentID, dateInput, timeInput string) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{"appointment_id": appointmentID, "date": dateInput, "time": timeInput}

	if !c.session.Identified || c.session.UserID == "" {
		return c.finish(ctx, ToolCancelAppointment, params, start, invalid(msgNeedIdentify))
	}

	apt, res := c.locateAppointment(ctx, appointmentID, dateInput, timeInput)
	if res != nil {
		return c.finish(ctx, ToolCancelAppointment, params, start, *res)
	}

	if apt.Status == model.StatusCancelled {
		return c.finish(ctx, ToolCancelAppointment, params, start,
			ok(fmt.Sprintf("That appointment on %s was already cancelled. Anything else?", FriendlyDate(apt.Date))))
	}

	if _, err := c.store.SetAppointmentStatus(ctx, apt.ID, model.StatusCancelled); err != nil {
		c.log.Error("cancel appointment failed", zap.Error(err), zap.String("appointment_id", apt.ID))
		metrics.StoreErrorsTotal.WithLabelValues("set_appointment_status").Inc()
		return c.finish(ctx, ToolCancelAppointment, params, start, storeFailure())
	}

	c.session.Tracker.TrackAppointmentCancelled(apt.ID)
	metrics.AppointmentsTotal.WithLabelValues("cancelled").Inc()
	if c.session.Pending != nil && c.session.Pending.ID == apt.ID {
		c.session.Pending = nil
	}

	return c.finish(ctx, ToolCancelAppointment, params, start,
		ok(fmt.Sprintf("Done. I've cancelled your %s on %s at %s. Anything else I can help with?",
			apt.Purpose, FriendlyDate(apt.Date), FriendlyTime(apt.Time))))
}

// Modify reschedules an appointment or updates its purpose. A date and time
// change runs the same conflict rule as booking; a purpose-only change does
// not touch the slot at all.
func (c *Controller) Modify(ctx context.Context, appointmentID, newDateInput, newTimeInput, newPurpose string) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{
		"appointment_id": appointmentID,
		"new_date":       newDateInput,
		"new_time":       newTimeInput,
		"new_purpose":    newPurpose,
	}

	if !c.session.Identified || c.session.UserID == "" {
		return c.finish(ctx, ToolModifyAppointment, params, start, invalid(msgNeedIdentify))
	}

	apt, res := c.locateAppointment(ctx, appointmentID, "", "")
	if res != nil {
		return c.finish(ctx, ToolModifyAppointment, params, start, *res)
	}
	if apt.Status == model.StatusCancelled {
		return c.finish(ctx, ToolModifyAppointment, params, start,
			invalid(fmt.Sprintf("That appointment on %s was cancelled. Would you like to book a new one instead?",
				FriendlyDate(apt.Date))))
	}

	var updates model.AppointmentUpdate
	changes := map[string]string{}
	now := c.now().In(c.loc)

	hasDate := strings.TrimSpace(newDateInput) != ""
	hasTime := strings.TrimSpace(newTimeInput) != ""
	if hasDate != hasTime {
		return c.finish(ctx, ToolModifyAppointment, params, start,
			invalid("To reschedule I need both the new date and the new time."))
	}

	if hasDate && hasTime {
		date := ResolveDate(newDateInput, now)
		timeValue, tok := ResolveTime(newTimeInput, now)
		if !tok {
			return c.finish(ctx, ToolModifyAppointment, params, start,
				invalid("What time would you like to move it to?"))
		}

		if !c.cal.Allows(date, timeValue) {
			return c.finish(ctx, ToolModifyAppointment, params, start,
				invalid(fmt.Sprintf("We don't book at %s on %s. We offer %s.",
					FriendlyTime(timeValue), FriendlyDate(date), speakSlots(c.cal.AvailableTimes(date)))))
		}

		// Moving an appointment onto its own slot is not a conflict.
		if date+" "+timeValue != apt.SlotKey() {
			free, fres := c.freeSlots(ctx, date)
			if fres != nil {
				return c.finish(ctx, ToolModifyAppointment, params, start, *fres)
			}
			if !containsSlot(free, timeValue) {
				metrics.BookingConflictsTotal.Inc()
				return c.finish(ctx, ToolModifyAppointment, params, start,
					conflict(fmt.Sprintf("I'm sorry, %s on %s is already taken. Would another time work?",
						FriendlyTime(timeValue), FriendlyDate(date))))
			}
		}

		dt, err := CombineDateTime(date, timeValue, c.loc)
		if err != nil {
			return c.finish(ctx, ToolModifyAppointment, params, start,
				invalid("I couldn't make sense of that date and time. Could you say them again?"))
		}
		updates.Date = &date
		updates.Time = &timeValue
		updates.DateTime = &dt
		changes["date"] = date
		changes["time"] = timeValue
	}

	if p := strings.TrimSpace(newPurpose); p != "" {
		updates.Purpose = &p
		changes["purpose"] = p
	}

	if updates.Empty() {
		return c.finish(ctx, ToolModifyAppointment, params, start,
			invalid("What would you like to change about that appointment?"))
	}

	if _, err := c.store.UpdateAppointment(ctx, apt.ID, updates); err != nil {
		c.log.Error("update appointment failed", zap.Error(err), zap.String("appointment_id", apt.ID))
		metrics.StoreErrorsTotal.WithLabelValues("update_appointment").Inc()
		return c.finish(ctx, ToolModifyAppointment, params, start, storeFailure())
	}

	c.session.Tracker.TrackAppointmentModified(apt.ID, changes)
	metrics.AppointmentsTotal.WithLabelValues("modified").Inc()

	if updates.Date != nil {
		if c.session.Pending != nil && c.session.Pending.ID == apt.ID {
			c.session.Pending.Date = *updates.Date
			c.session.Pending.Time = *updates.Time
		}
		return c.finish(ctx, ToolModifyAppointment, params, start,
			ok(fmt.Sprintf("All set. I've moved your appointment to %s at %s. Anything else?",
				FriendlyDate(*updates.Date), FriendlyTime(*updates.Time))))
	}
	return c.finish(ctx, ToolModifyAppointment, params, start,
		ok(fmt.Sprintf("All set. I've updated that appointment to a %s. Anything else?", *updates.Purpose)))
}

// locateAppointment resolves an appointment by id, by date+time, or from the
// session's pending booking. Returns a non-nil result when resolution fails.
func (c *Controller) locateAppointment(ctx context.Context, appointmentID, dateInput, timeInput string) (*model.Appointment, *toolResult) {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" && c.session.Pending != nil && strings.TrimSpace(dateInput) == "" && strings.TrimSpace(timeInput) == "" {
		appointmentID = c.session.Pending.ID
	}

	var (
		apt *model.Appointment
		err error
	)
	switch {
	case appointmentID != "":
		apt, err = c.store.GetAppointmentByID(ctx, appointmentID, c.session.UserID)
	case strings.TrimSpace(dateInput) != "" && strings.TrimSpace(timeInput) != "":
		now := c.now().In(c.loc)
		date := ResolveDate(dateInput, now)
		timeValue, tok := ResolveTime(timeInput, now)
		if !tok {
			res := invalid("Which time was that appointment at?")
			return nil, &res
		}
		apt, err = c.store.GetAppointmentByDateTime(ctx, c.session.UserID, date, timeValue)
	default:
		res := invalid("Which appointment do you mean? A date and time would help me find it.")
		return nil, &res
	}

	switch {
	case err == nil:
		return apt, nil
	case errors.Is(err, store.ErrNotFound):
		res := notFound("")
		return nil, &res
	default:
		c.log.Error("appointment lookup failed", zap.Error(err))
		metrics.StoreErrorsTotal.WithLabelValues("get_appointment").Inc()
		res := storeFailure()
		return nil, &res
	}
}

// EndConversation seals the session, generates and distributes the summary,
// and signals the call to end. It always succeeds from the caller's point of
// view; persistence and delivery failures are logged.
func (c *Controller) EndConversation(ctx context.Context) string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	start := c.now()
	params := map[string]any{}

	c.session.Tracker.Seal()

	sum := c.summ.Generate(ctx, c.session.Tracker, c.session.Transcript)

	if c.session.UserID != "" {
		if _, err := c.store.SaveConversationSummary(ctx, sum); err != nil {
			c.log.Error("persist summary failed", zap.Error(err))
			metrics.StoreErrorsTotal.WithLabelValues("save_summary").Inc()
		}
	} else {
		c.log.Warn("session ended without an identified user, summary not persisted")
	}

	c.sink.PublishSummary(ctx, c.session.ID, *sum)
	c.sink.PublishEndCall(ctx, c.session.ID)

	return c.finish(ctx, ToolEndConversation, params, start,
		ok("Thank you for calling! Have a great day. Goodbye!"))
}

// finish is the single boundary where a tool's internal result becomes the
// spoken reply: it resolves the message, records metrics, emits the tool_call
// notification and remembers the invocation on the session.
func (c *Controller) finish(ctx context.Context, tool string, params map[string]any, start time.Time, res toolResult) string {
	msg := res.resolveMessage()
	metrics.RecordToolCall(tool, string(res.outcome), time.Since(start).Seconds())

	event := model.NewToolCallEvent(tool, params, msg)
	c.sink.PublishToolCall(ctx, c.session.ID, event)

	c.session.LastToolCall = &ToolCallRecord{
		Tool:      tool,
		Params:    params,
		Result:    msg,
		Timestamp: event.Timestamp,
	}
	return msg
}
