// Package store provides persistence for users, appointments, and
// conversation summaries.
package store

import (
	"context"
	"errors"

	"github.com/clinicvoice/agent-backend/internal/model"
)

var (
	// ErrNotFound is returned when a record is absent or not owned by the caller.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicatePhone is returned when creating a user whose phone already exists.
	ErrDuplicatePhone = errors.New("user with this phone already exists")
)

// UserUpdate carries partial field changes for a user. Nil fields are left untouched.
type UserUpdate struct {
	Name *string `bson:"name,omitempty"`
}

// Store is the data-access contract for the appointment agent. All operations
// are safe for concurrent use across sessions; any error other than the
// sentinels above indicates a store failure the caller should degrade on.
type Store interface {
	// CreateUser inserts a new user and returns its id. The phone must be
	// unique; ErrDuplicatePhone is returned otherwise.
	CreateUser(ctx context.Context, user *model.User) (string, error)

	// GetUserByPhone looks a user up by normalized phone. ErrNotFound when absent.
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)

	// UpdateUser applies partial changes; reports whether a record was modified.
	UpdateUser(ctx context.Context, id string, updates UserUpdate) (bool, error)

	// CreateAppointment inserts a new appointment and returns its id.
	CreateAppointment(ctx context.Context, apt *model.Appointment) (string, error)

	// GetAppointmentByID fetches an appointment scoped to its owner. An id that
	// exists but belongs to another user is treated as absent.
	GetAppointmentByID(ctx context.Context, id, ownerID string) (*model.Appointment, error)

	// GetAppointmentByDateTime fetches the owner's active appointment at the
	// given date and time, excluding cancelled records.
	GetAppointmentByDateTime(ctx context.Context, ownerID, date, timeValue string) (*model.Appointment, error)

	// ListAppointmentsForUser returns the owner's appointments, most recent first.
	ListAppointmentsForUser(ctx context.Context, ownerID string, limit int) ([]model.Appointment, error)

	// ListBookedSlots returns the set of "YYYY-MM-DD HH:MM" keys occupied by
	// non-cancelled appointments on a date. This is the sole source used to
	// detect booking conflicts.
	ListBookedSlots(ctx context.Context, date string) (map[string]struct{}, error)

	// UpdateAppointment applies partial changes and stamps updated_at.
	UpdateAppointment(ctx context.Context, id string, updates model.AppointmentUpdate) (bool, error)

	// SetAppointmentStatus transitions an appointment's status and stamps updated_at.
	SetAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) (bool, error)

	// SaveConversationSummary persists a session's summary record and returns its id.
	SaveConversationSummary(ctx context.Context, summary *model.ConversationSummary) (string, error)

	// ListSummariesForUser returns the owner's summaries, most recent first.
	ListSummariesForUser(ctx context.Context, ownerID string, limit int) ([]model.ConversationSummary, error)

	// Ping reports store connectivity.
	Ping(ctx context.Context) error
}
