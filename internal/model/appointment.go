package model

import (
	"time"
)

// AppointmentStatus represents the lifecycle status of an appointment.
type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Appointment represents a scheduled clinic appointment.
type Appointment struct {
	ID        string            `json:"id" bson:"_id,omitempty"`
	UserID    string            `json:"user_id" bson:"user_id"`
	Date      string            `json:"date" bson:"date"` // YYYY-MM-DD
	Time      string            `json:"time" bson:"time"` // HH:MM
	DateTime  time.Time         `json:"datetime" bson:"datetime"`
	Purpose   string            `json:"purpose" bson:"purpose"`
	Status    AppointmentStatus `json:"status" bson:"status"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// SlotKey returns the "YYYY-MM-DD HH:MM" key used for conflict detection.
func (a *Appointment) SlotKey() string {
	return a.Date + " " + a.Time
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a != nil && a.Status != StatusCancelled
}

// Upcoming reports whether the appointment is active and in the future.
func (a *Appointment) Upcoming(now time.Time) bool {
	return a.Active() && a.DateTime.After(now)
}

// AppointmentUpdate carries partial field changes for an appointment.
// Nil fields are left untouched.
type AppointmentUpdate struct {
	Date     *string    `bson:"date,omitempty"`
	Time     *string    `bson:"time,omitempty"`
	DateTime *time.Time `bson:"datetime,omitempty"`
	Purpose  *string    `bson:"purpose,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u AppointmentUpdate) Empty() bool {
	return u.Date == nil && u.Time == nil && u.DateTime == nil && u.Purpose == nil
}
