package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-community/internal/apperrors"
	"ms-community/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{Bun: db}
}

func (d *DB) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	event := new(models.Event)
	err := d.Bun.NewSelect().
		Model(event).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("event %d", eventID)
		}
		return nil, apperrors.Store("get event", err)
	}
	return event, nil
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return apperrors.Store("create event", err)
}

// UpdateEvent replaces every editable column. Owner and creation time stay.
func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	res, err := d.Bun.NewUpdate().
		Model(event).
		Column("title", "category", "start_datetime", "end_datetime", "location_name", "description", "is_published").
		Where("event_id = ?", event.EventID).
		Exec(ctx)
	if err != nil {
		return apperrors.Store("update event", err)
	}
	return requireRow(res, event.EventID)
}

func (d *DB) SetPublished(ctx context.Context, eventID int64, published bool) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("is_published = ?", published).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return apperrors.Store("set published", err)
	}
	return requireRow(res, eventID)
}

// DeleteEventCascade removes the event's signups, tasks and registrations and
// then the event, in one transaction. It returns the ids of the removed tasks.
func (d *DB) DeleteEventCascade(ctx context.Context, eventID int64) ([]int64, error) {
	var taskIDs []int64
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model((*models.Task)(nil)).
			Column("task_id").
			Where("event_id = ?", eventID).
			Scan(ctx, &taskIDs); err != nil {
			return apperrors.Store("list event tasks", err)
		}

		if len(taskIDs) > 0 {
			if _, err := tx.NewDelete().
				Model((*models.VolunteerSignup)(nil)).
				Where("task_id IN (?)", bun.In(taskIDs)).
				Exec(ctx); err != nil {
				return apperrors.Store("delete event signups", err)
			}
		}

		if _, err := tx.NewDelete().
			Model((*models.Task)(nil)).
			Where("event_id = ?", eventID).
			Exec(ctx); err != nil {
			return apperrors.Store("delete event tasks", err)
		}

		if _, err := tx.NewDelete().
			Model((*models.EventRegistration)(nil)).
			Where("event_id = ?", eventID).
			Exec(ctx); err != nil {
			return apperrors.Store("delete event registrations", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("event_id = ?", eventID).
			Exec(ctx)
		if err != nil {
			return apperrors.Store("delete event", err)
		}
		return requireRow(res, eventID)
	})
	if err != nil {
		return nil, err
	}
	return taskIDs, nil
}

// ListPublic returns published events, soonest first.
func (d *DB) ListPublic(ctx context.Context) ([]models.Event, error) {
	events := make([]models.Event, 0)
	err := d.Bun.NewSelect().
		Model(&events).
		Where("is_published = ?", true).
		OrderExpr("start_datetime ASC").
		OrderExpr("event_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperrors.Store("list public events", err)
	}
	return events, nil
}

// ListWithOrganizer returns events joined with their organizer's name, newest
// start first. organizerID 0 means every organizer.
func (d *DB) ListWithOrganizer(ctx context.Context, organizerID int64) ([]models.EventWithOrganizer, error) {
	rows := make([]models.EventWithOrganizer, 0)
	q := d.Bun.NewSelect().
		TableExpr("events AS e").
		ColumnExpr("e.*").
		ColumnExpr("u.first_name, u.last_name").
		Join("LEFT JOIN users AS u ON u.user_id = e.organizer_id")
	if organizerID != 0 {
		q = q.Where("e.organizer_id = ?", organizerID)
	}
	err := q.OrderExpr("e.start_datetime DESC").
		OrderExpr("e.event_id DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperrors.Store("list organizer events", err)
	}
	return rows, nil
}

func requireRow(res sql.Result, eventID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Store("rows affected", err)
	}
	if n == 0 {
		return apperrors.NotFound("event %d", eventID)
	}
	return nil
}
