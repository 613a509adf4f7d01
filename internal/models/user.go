package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleOrganizer Role = "Organizer"
	RoleUser      Role = "User"
)

// IsOrganizerClass reports whether the role may use the organizer console.
func (r Role) IsOrganizerClass() bool {
	return r == RoleAdmin || r == RoleOrganizer
}

// User is the identity record owned by the auth collaborator. The engine only
// reads it.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	UserID    int64     `bun:"user_id,pk,autoincrement" json:"user_id"`
	FirstName string    `bun:"first_name,notnull" json:"first_name"`
	LastName  string    `bun:"last_name" json:"last_name"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	Whatsapp  string    `bun:"whatsapp" json:"whatsapp"`
	UkPhone   string    `bun:"uk_phone" json:"uk_phone,omitempty"`
	Role      Role      `bun:"role,notnull" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Actor is the caller identity handed to every mutating engine call by the
// auth collaborator.
type Actor struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsOrganizerClass() bool {
	return a.Role.IsOrganizerClass()
}

// Owns reports whether the actor is the organizer of the event.
func (a Actor) Owns(e *Event) bool {
	return e != nil && a.UserID != 0 && e.OrganizerID == a.UserID
}
