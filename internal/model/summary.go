package model

import (
	"time"
)

// AppointmentEntry is one appointment line inside a conversation summary.
type AppointmentEntry struct {
	Date    string `json:"date" bson:"date"`
	Time    string `json:"time" bson:"time"`
	Purpose string `json:"purpose" bson:"purpose"`
	Status  string `json:"status" bson:"status"` // "Booked", "Rescheduled", "Cancelled"
}

// ConversationSummary is the durable record of one agent session.
type ConversationSummary struct {
	ConversationID        string             `json:"conversation_id" bson:"conversation_id"`
	UserID                string             `json:"user_id,omitempty" bson:"user_id,omitempty"`
	UserPhone             string             `json:"user_phone,omitempty" bson:"user_phone,omitempty"`
	UserName              string             `json:"user_name,omitempty" bson:"user_name,omitempty"`
	ConversationDate      time.Time          `json:"conversation_date" bson:"conversation_date"`
	DurationMinutes       int                `json:"duration_minutes" bson:"duration_minutes"`
	AppointmentsDiscussed []AppointmentEntry `json:"appointments_discussed" bson:"appointments_discussed"`
	UserPreferences       []string           `json:"user_preferences" bson:"user_preferences"`
	SummaryText           string             `json:"summary_text" bson:"summary_text"`
	EventsCount           int                `json:"events_count" bson:"events_count"`
}
