// Package tracker captures what happened during one agent session: an
// append-only event log plus denormalized rollups consumed by the summary
// generator at session end.
package tracker

import (
	"time"

	"github.com/clinicvoice/agent-backend/internal/model"
)

// Event types recorded on the log.
const (
	EventUserIdentified       = "user_identified"
	EventNameSaved            = "name_saved"
	EventPreferenceNoted      = "preference_noted"
	EventAppointmentBooked    = "appointment_booked"
	EventAppointmentsViewed   = "appointments_viewed"
	EventAppointmentModified  = "appointment_modified"
	EventAppointmentCancelled = "appointment_cancelled"
)

// Event is one immutable entry on the session's provenance trail.
type Event struct {
	Timestamp time.Time
	Type      string
	Details   map[string]any
}

// BookedAppointment is a booking rollup entry.
type BookedAppointment struct {
	ID      string
	Date    string
	Time    string
	Purpose string
}

// Modification is a reschedule/purpose-change rollup entry.
type Modification struct {
	AppointmentID string
	Changes       map[string]string
	Timestamp     time.Time
}

// Cancellation is a cancellation rollup entry.
type Cancellation struct {
	AppointmentID string
	Timestamp     time.Time
}

// Tracker accumulates events and rollups for a single session. It is owned
// exclusively by the session controller, which serializes access.
type Tracker struct {
	ConversationID string
	UserID         string
	UserPhone      string
	UserName       string

	Preferences []string

	Booked    []BookedAppointment
	Viewed    []model.Appointment
	Modified  []Modification
	Cancelled []Cancellation

	StartTime time.Time
	EndTime   time.Time

	events []Event
	sealed bool
}

// New creates a tracker for a new session.
func New(conversationID string) *Tracker {
	return &Tracker{
		ConversationID: conversationID,
		StartTime:      time.Now().UTC(),
	}
}

// AddEvent appends an event with a server-assigned timestamp. Events are
// never removed or reordered.
func (t *Tracker) AddEvent(eventType string, details map[string]any) {
	t.events = append(t.events, Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Details:   details,
	})
}

// Events returns a copy of the event log.
func (t *Tracker) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// EventCount returns the number of recorded events.
func (t *Tracker) EventCount() int {
	return len(t.events)
}

// TrackAppointmentBooked records a successful booking.
func (t *Tracker) TrackAppointmentBooked(apt BookedAppointment) {
	t.Booked = append(t.Booked, apt)
	t.AddEvent(EventAppointmentBooked, map[string]any{
		"appointment_id": apt.ID,
		"date":           apt.Date,
		"time":           apt.Time,
		"purpose":        apt.Purpose,
	})
}

// TrackAppointmentsViewed records that the caller reviewed their appointments.
func (t *Tracker) TrackAppointmentsViewed(appointments []model.Appointment) {
	t.Viewed = append(t.Viewed, appointments...)
	t.AddEvent(EventAppointmentsViewed, map[string]any{"count": len(appointments)})
}

// TrackAppointmentModified records a modification.
func (t *Tracker) TrackAppointmentModified(appointmentID string, changes map[string]string) {
	mod := Modification{
		AppointmentID: appointmentID,
		Changes:       changes,
		Timestamp:     time.Now().UTC(),
	}
	t.Modified = append(t.Modified, mod)
	t.AddEvent(EventAppointmentModified, map[string]any{
		"appointment_id": appointmentID,
		"changes":        changes,
	})
}

// TrackAppointmentCancelled records a cancellation.
func (t *Tracker) TrackAppointmentCancelled(appointmentID string) {
	t.Cancelled = append(t.Cancelled, Cancellation{
		AppointmentID: appointmentID,
		Timestamp:     time.Now().UTC(),
	})
	t.AddEvent(EventAppointmentCancelled, map[string]any{"appointment_id": appointmentID})
}

// AddPreference records a caller preference, de-duplicated.
func (t *Tracker) AddPreference(pref string) bool {
	for _, p := range t.Preferences {
		if p == pref {
			return false
		}
	}
	t.Preferences = append(t.Preferences, pref)
	t.AddEvent(EventPreferenceNoted, map[string]any{"preference": pref})
	return true
}

// Seal sets the end time. Only the first call has effect; the controller
// invokes it once at end-of-conversation.
func (t *Tracker) Seal() {
	if t.sealed {
		return
	}
	t.sealed = true
	t.EndTime = time.Now().UTC()
}

// Sealed reports whether the session has ended.
func (t *Tracker) Sealed() bool {
	return t.sealed
}

// DurationMinutes computes elapsed minutes from session start to the sealed
// end time, or to now if the session is still open.
func (t *Tracker) DurationMinutes() int {
	end := t.EndTime
	if !t.sealed {
		end = time.Now().UTC()
	}
	return int(end.Sub(t.StartTime).Minutes())
}
