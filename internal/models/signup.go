package models

import (
	"time"

	"github.com/uptrace/bun"
)

// VolunteerSignup is a volunteer's claim on one task. Exactly one identity form
// is populated: UserID for an account holder, the guest columns otherwise.
type VolunteerSignup struct {
	bun.BaseModel `bun:"table:volunteer_signups,alias:vs"`

	SignupID      int64     `bun:"signup_id,pk,autoincrement" json:"signup_id"`
	TaskID        int64     `bun:"task_id,notnull" json:"task_id"`
	UserID        *int64    `bun:"user_id,nullzero" json:"user_id,omitempty"`
	GuestName     string    `bun:"guest_name,nullzero" json:"guest_name,omitempty"`
	GuestWhatsapp string    `bun:"guest_whatsapp,nullzero" json:"guest_whatsapp,omitempty"`
	GuestUkPhone  string    `bun:"guest_uk_phone,nullzero" json:"guest_uk_phone,omitempty"`
	Comment       string    `bun:"comment" json:"comment"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// VolunteerWithTask is a signup row joined with its task title for the event
// details view.
type VolunteerWithTask struct {
	VolunteerSignup
	TaskTitle string `bun:"task_title" json:"task_title"`
}
