package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Category string

const (
	CategoryEducation Category = "Education"
	CategoryCharity   Category = "Charity"
	CategoryExcursion Category = "Excursion"
	CategorySocial    Category = "Social"
)

// DefaultCategory is applied when a create request leaves the category empty.
const DefaultCategory = CategorySocial

var Categories = []Category{CategoryEducation, CategoryCharity, CategoryExcursion, CategorySocial}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	EventID       int64      `bun:"event_id,pk,autoincrement" json:"event_id"`
	Title         string     `bun:"title,notnull" json:"title"`
	Category      Category   `bun:"category,notnull" json:"category"`
	StartDatetime time.Time  `bun:"start_datetime,notnull" json:"start_datetime"`
	EndDatetime   *time.Time `bun:"end_datetime,nullzero" json:"end_datetime,omitempty"`
	LocationName  string     `bun:"location_name" json:"location_name"`
	Description   string     `bun:"description" json:"description"`
	OrganizerID   int64      `bun:"organizer_id,notnull" json:"organizer_id"`
	IsPublished   bool       `bun:"is_published,notnull" json:"is_published"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// Duration returns the event length and whether the event has an end at all.
func (e *Event) Duration() (time.Duration, bool) {
	if e.EndDatetime == nil {
		return 0, false
	}
	return e.EndDatetime.Sub(e.StartDatetime), true
}

// EventWithOrganizer is the admin console row: the event plus its owner's name.
type EventWithOrganizer struct {
	Event
	OrganizerFirstName string `bun:"first_name" json:"first_name,omitempty"`
	OrganizerLastName  string `bun:"last_name" json:"last_name,omitempty"`
}

// EventInput carries the editable fields of an event for create and update.
type EventInput struct {
	Title         string     `json:"title"`
	Category      Category   `json:"category"`
	StartDatetime time.Time  `json:"start_datetime"`
	EndDatetime   *time.Time `json:"end_datetime,omitempty"`
	LocationName  string     `json:"location_name"`
	Description   string     `json:"description"`
	IsPublished   *bool      `json:"is_published,omitempty"`
}
