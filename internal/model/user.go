// Package model defines data structures for the appointment agent.
package model

import (
	"time"
)

// User represents a caller identified by phone number.
type User struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Phone     string    `json:"phone" bson:"phone"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// HasName reports whether a display name has been collected for this user.
func (u *User) HasName() bool {
	return u != nil && u.Name != ""
}
