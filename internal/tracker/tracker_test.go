package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicvoice/agent-backend/internal/model"
)

func TestAddEventAppendOnly(t *testing.T) {
	tr := New("conv-1")

	tr.AddEvent(EventUserIdentified, map[string]any{"phone": "5551234567"})
	tr.AddEvent(EventNameSaved, map[string]any{"name": "Dana"})

	events := tr.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventUserIdentified, events[0].Type)
	assert.Equal(t, EventNameSaved, events[1].Type)

	// Mutating the returned slice must not affect the log.
	events[0].Type = "tampered"
	assert.Equal(t, EventUserIdentified, tr.Events()[0].Type)
}

func TestTrackWrappersUpdateRollupsAndLog(t *testing.T) {
	tr := New("conv-1")

	tr.TrackAppointmentBooked(BookedAppointment{ID: "a1", Date: "2025-06-02", Time: "15:00", Purpose: "checkup"})
	tr.TrackAppointmentsViewed([]model.Appointment{{ID: "a1"}, {ID: "a2"}})
	tr.TrackAppointmentModified("a1", map[string]string{"time": "16:00"})
	tr.TrackAppointmentCancelled("a2")

	assert.Len(t, tr.Booked, 1)
	assert.Len(t, tr.Viewed, 2)
	assert.Len(t, tr.Modified, 1)
	assert.Len(t, tr.Cancelled, 1)
	assert.Equal(t, 4, tr.EventCount())
}

func TestAddPreferenceDeduplicates(t *testing.T) {
	tr := New("conv-1")

	assert.True(t, tr.AddPreference("morning appointments"))
	assert.False(t, tr.AddPreference("morning appointments"))
	assert.True(t, tr.AddPreference("dr. evans"))

	assert.Equal(t, []string{"morning appointments", "dr. evans"}, tr.Preferences)
	assert.Equal(t, 2, tr.EventCount(), "duplicate preference records no event")
}

func TestSealIsOneShot(t *testing.T) {
	tr := New("conv-1")
	require.False(t, tr.Sealed())

	tr.Seal()
	first := tr.EndTime
	require.True(t, tr.Sealed())

	time.Sleep(5 * time.Millisecond)
	tr.Seal()
	assert.Equal(t, first, tr.EndTime, "second seal does not move the end time")
}

func TestDurationMinutes(t *testing.T) {
	tr := New("conv-1")
	tr.StartTime = time.Now().UTC().Add(-10 * time.Minute)

	assert.InDelta(t, 10, tr.DurationMinutes(), 1, "open session measures to now")

	tr.Seal()
	tr.EndTime = tr.StartTime.Add(3 * time.Minute)
	assert.Equal(t, 3, tr.DurationMinutes())
}
