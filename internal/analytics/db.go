package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-community/internal/apperrors"
	"ms-community/internal/models"
)

// DB handles analytics database operations
type DB struct {
	Bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{Bun: db}
}

func (d *DB) CountEvents(ctx context.Context) (int, error) {
	n, err := d.Bun.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	return n, apperrors.Store("count events", err)
}

// CountEventsAfter counts events starting strictly after t.
func (d *DB) CountEventsAfter(ctx context.Context, t time.Time) (int, error) {
	n, err := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("start_datetime > ?", t.UTC()).
		Count(ctx)
	return n, apperrors.Store("count future events", err)
}

// CountUniqueVolunteers counts distinct guest WhatsApp numbers plus distinct
// account holders across all signups.
func (d *DB) CountUniqueVolunteers(ctx context.Context) (int, error) {
	var guests, users int
	err := d.Bun.NewSelect().
		Model((*models.VolunteerSignup)(nil)).
		ColumnExpr("COUNT(DISTINCT guest_whatsapp)").
		Where("guest_whatsapp IS NOT NULL").
		Scan(ctx, &guests)
	if err != nil {
		return 0, apperrors.Store("count guest volunteers", err)
	}
	err = d.Bun.NewSelect().
		Model((*models.VolunteerSignup)(nil)).
		ColumnExpr("COUNT(DISTINCT user_id)").
		Where("user_id IS NOT NULL").
		Scan(ctx, &users)
	if err != nil {
		return 0, apperrors.Store("count registered volunteers", err)
	}
	return guests + users, nil
}

// SumAttendees adds adults and children over every registration.
func (d *DB) SumAttendees(ctx context.Context) (int, error) {
	var total int
	err := d.Bun.NewSelect().
		Model((*models.EventRegistration)(nil)).
		ColumnExpr("COALESCE(SUM(adults_count + children_count), 0)").
		Scan(ctx, &total)
	return total, apperrors.Store("sum attendees", err)
}

func (d *DB) ListRegistrations(ctx context.Context, eventID int64) ([]models.EventRegistration, error) {
	var regs []models.EventRegistration
	err := d.Bun.NewSelect().
		Model(&regs).
		Where("event_id = ?", eventID).
		OrderExpr("created_at DESC").
		OrderExpr("registration_id DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperrors.Store("list registrations", err)
	}
	return regs, nil
}

// ListVolunteers returns the event's signups joined with their task title.
func (d *DB) ListVolunteers(ctx context.Context, eventID int64) ([]models.VolunteerWithTask, error) {
	var rows []models.VolunteerWithTask
	err := d.Bun.NewSelect().
		TableExpr("volunteer_signups AS vs").
		ColumnExpr("vs.*").
		ColumnExpr("t.title AS task_title").
		Join("JOIN tasks AS t ON t.task_id = vs.task_id").
		Where("t.event_id = ?", eventID).
		OrderExpr("vs.created_at DESC").
		OrderExpr("vs.signup_id DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperrors.Store("list volunteers", err)
	}
	return rows, nil
}

type taskTotals struct {
	EventID  int64 `bun:"event_id"`
	Tasks    int   `bun:"tasks"`
	Required int   `bun:"required"`
	SignedUp int   `bun:"signed_up"`
}

type attendeeTotals struct {
	EventID       int64 `bun:"event_id"`
	Registrations int   `bun:"registrations"`
	Attendees     int   `bun:"attendees"`
}

// EventTotals aggregates volunteer fill and attendance per event.
func (d *DB) EventTotals(ctx context.Context, eventIDs []int64) (map[int64]*EventSummary, error) {
	out := make(map[int64]*EventSummary, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	for _, id := range eventIDs {
		out[id] = &EventSummary{EventID: id}
	}

	signups := d.Bun.NewSelect().
		Model((*models.VolunteerSignup)(nil)).
		ColumnExpr("task_id").
		ColumnExpr("COUNT(*) AS n").
		GroupExpr("task_id")

	var tasks []taskTotals
	err := d.Bun.NewSelect().
		TableExpr("tasks AS t").
		ColumnExpr("t.event_id").
		ColumnExpr("COUNT(*) AS tasks").
		ColumnExpr("COALESCE(SUM(t.required_volunteers), 0) AS required").
		ColumnExpr("COALESCE(SUM(s.n), 0) AS signed_up").
		Join("LEFT JOIN (?) AS s ON s.task_id = t.task_id", signups).
		Where("t.event_id IN (?)", bun.In(eventIDs)).
		GroupExpr("t.event_id").
		Scan(ctx, &tasks)
	if err != nil {
		return nil, apperrors.Store("task totals", err)
	}
	for _, row := range tasks {
		s := out[row.EventID]
		s.Tasks, s.RequiredVolunteers, s.SignedUpVolunteers = row.Tasks, row.Required, row.SignedUp
	}

	var regs []attendeeTotals
	err = d.Bun.NewSelect().
		Model((*models.EventRegistration)(nil)).
		ColumnExpr("event_id").
		ColumnExpr("COUNT(*) AS registrations").
		ColumnExpr("COALESCE(SUM(adults_count + children_count), 0) AS attendees").
		Where("event_id IN (?)", bun.In(eventIDs)).
		GroupExpr("event_id").
		Scan(ctx, &regs)
	if err != nil {
		return nil, apperrors.Store("attendee totals", err)
	}
	for _, row := range regs {
		s := out[row.EventID]
		s.Registrations, s.Attendees = row.Registrations, row.Attendees
	}
	return out, nil
}
