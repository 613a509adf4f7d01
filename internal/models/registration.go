package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventRegistration is a headcount attendance claim on an event. It carries the
// same identity columns as VolunteerSignup.
type EventRegistration struct {
	bun.BaseModel `bun:"table:event_registrations,alias:er"`

	RegistrationID int64     `bun:"registration_id,pk,autoincrement" json:"registration_id"`
	EventID        int64     `bun:"event_id,notnull" json:"event_id"`
	UserID         *int64    `bun:"user_id,nullzero" json:"user_id,omitempty"`
	GuestName      string    `bun:"guest_name,nullzero" json:"guest_name,omitempty"`
	GuestWhatsapp  string    `bun:"guest_whatsapp,nullzero" json:"guest_whatsapp,omitempty"`
	GuestUkPhone   string    `bun:"guest_uk_phone,nullzero" json:"guest_uk_phone,omitempty"`
	AdultsCount    int       `bun:"adults_count,notnull" json:"adults_count"`
	ChildrenCount  int       `bun:"children_count,notnull" json:"children_count"`
	Comment        string    `bun:"comment" json:"comment"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

// AttendanceSummary is the aggregate headcount that may be shown publicly.
type AttendanceSummary struct {
	EventID       int64 `bun:"event_id" json:"event_id"`
	Registrations int   `bun:"registrations" json:"registrations"`
	Adults        int   `bun:"adults" json:"adults"`
	Children      int   `bun:"children" json:"children"`
	Total         int   `bun:"-" json:"total"`
}
