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

func (d *DB) InsertRegistration(ctx context.Context, reg *models.EventRegistration) error {
	_, err := d.Bun.NewInsert().Model(reg).Exec(ctx)
	return apperrors.Store("insert registration", err)
}

// ListRegistrations returns the event's registrations newest first.
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

func (d *DB) Summary(ctx context.Context, eventID int64) (*models.AttendanceSummary, error) {
	summary := &models.AttendanceSummary{EventID: eventID}
	err := d.Bun.NewSelect().
		Model((*models.EventRegistration)(nil)).
		ColumnExpr("COUNT(*) AS registrations").
		ColumnExpr("COALESCE(SUM(adults_count), 0) AS adults").
		ColumnExpr("COALESCE(SUM(children_count), 0) AS children").
		Where("event_id = ?", eventID).
		Scan(ctx, &summary.Registrations, &summary.Adults, &summary.Children)
	if err != nil {
		return nil, apperrors.Store("attendance summary", err)
	}
	summary.Total = summary.Adults + summary.Children
	return summary, nil
}
