package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicvoice/agent-backend/internal/model"
)

func newApt(userID, date, timeValue string, status model.AppointmentStatus) *model.Appointment {
	dt, _ := time.Parse("2006-01-02 15:04", date+" "+timeValue)
	return &model.Appointment{
		UserID:   userID,
		Date:     date,
		Time:     timeValue,
		DateTime: dt,
		Purpose:  "checkup",
		Status:   status,
	}
}

func TestCreateUserDuplicatePhone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.CreateUser(ctx, &model.User{Phone: "5551234567"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = s.CreateUser(ctx, &model.User{Phone: "5551234567"})
	assert.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestGetUserByPhone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetUserByPhone(ctx, "5551234567")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := s.CreateUser(ctx, &model.User{Phone: "5551234567"})
	require.NoError(t, err)

	user, err := s.GetUserByPhone(ctx, "5551234567")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.False(t, user.HasName())
}

func TestUpdateUserName(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.CreateUser(ctx, &model.User{Phone: "5551234567"})
	require.NoError(t, err)

	name := "Dana"
	ok, err := s.UpdateUser(ctx, id, UserUpdate{Name: &name})
	require.NoError(t, err)
	assert.True(t, ok)

	user, err := s.GetUserByPhone(ctx, "5551234567")
	require.NoError(t, err)
	assert.Equal(t, "Dana", user.Name)

	ok, err = s.UpdateUser(ctx, "missing", UserUpdate{Name: &name})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAppointmentByIDScopesByOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.CreateAppointment(ctx, newApt("user-a", "2025-06-02", "10:00", model.StatusConfirmed))
	require.NoError(t, err)

	apt, err := s.GetAppointmentByID(ctx, id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02 10:00", apt.SlotKey())

	_, err = s.GetAppointmentByID(ctx, id, "user-b")
	assert.ErrorIs(t, err, ErrNotFound, "another user's id is treated as absent")
}

func TestGetAppointmentByDateTimeExcludesCancelled(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.CreateAppointment(ctx, newApt("user-a", "2025-06-02", "10:00", model.StatusConfirmed))
	require.NoError(t, err)

	_, err = s.GetAppointmentByDateTime(ctx, "user-a", "2025-06-02", "10:00")
	require.NoError(t, err)

	_, err = s.SetAppointmentStatus(ctx, id, model.StatusCancelled)
	require.NoError(t, err)

	_, err = s.GetAppointmentByDateTime(ctx, "user-a", "2025-06-02", "10:00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBookedSlots(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id1, err := s.CreateAppointment(ctx, newApt("user-a", "2025-06-02", "10:00", model.StatusConfirmed))
	require.NoError(t, err)
	_, err = s.CreateAppointment(ctx, newApt("user-b", "2025-06-02", "11:00", model.StatusConfirmed))
	require.NoError(t, err)
	_, err = s.CreateAppointment(ctx, newApt("user-c", "2025-06-03", "10:00", model.StatusConfirmed))
	require.NoError(t, err)

	slots, err := s.ListBookedSlots(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.Contains(t, slots, "2025-06-02 10:00")
	assert.Contains(t, slots, "2025-06-02 11:00")

	// Cancelling frees the slot but keeps the record listed for its owner.
	_, err = s.SetAppointmentStatus(ctx, id1, model.StatusCancelled)
	require.NoError(t, err)

	slots, err = s.ListBookedSlots(ctx, "2025-06-02")
	require.NoError(t, err)
	assert.NotContains(t, slots, "2025-06-02 10:00")

	appointments, err := s.ListAppointmentsForUser(ctx, "user-a", 0)
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, model.StatusCancelled, appointments[0].Status)
}

func TestListAppointmentsForUserOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, tt := range []struct{ date, slot string }{
		{"2025-06-02", "09:00"},
		{"2025-06-04", "09:00"},
		{"2025-06-03", "09:00"},
	} {
		_, err := s.CreateAppointment(ctx, newApt("user-a", tt.date, tt.slot, model.StatusConfirmed))
		require.NoError(t, err)
	}

	out, err := s.ListAppointmentsForUser(ctx, "user-a", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2025-06-04", out[0].Date)
	assert.Equal(t, "2025-06-03", out[1].Date)
}

func TestUpdateAppointmentStampsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.CreateAppointment(ctx, newApt("user-a", "2025-06-02", "10:00", model.StatusConfirmed))
	require.NoError(t, err)

	purpose := "follow-up"
	ok, err := s.UpdateAppointment(ctx, id, model.AppointmentUpdate{Purpose: &purpose})
	require.NoError(t, err)
	assert.True(t, ok)

	apt, err := s.GetAppointmentByID(ctx, id, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "follow-up", apt.Purpose)
	assert.False(t, apt.UpdatedAt.IsZero())
}

func TestSaveAndListSummaries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	older := &model.ConversationSummary{
		UserID:           "user-a",
		ConversationDate: time.Now().Add(-time.Hour),
		SummaryText:      "first call",
	}
	newer := &model.ConversationSummary{
		UserID:           "user-a",
		ConversationDate: time.Now(),
		SummaryText:      "second call",
	}

	id, err := s.SaveConversationSummary(ctx, older)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = s.SaveConversationSummary(ctx, newer)
	require.NoError(t, err)

	out, err := s.ListSummariesForUser(ctx, "user-a", 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "second call", out[0].SummaryText)
}
