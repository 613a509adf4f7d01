package capacity

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

// TaskCapacities returns required and signed-up counts for every task of an
// event in one grouped query.
func (d *DB) TaskCapacities(ctx context.Context, eventID int64) ([]models.TaskCapacity, error) {
	var rows []models.TaskCapacity
	err := d.Bun.NewSelect().
		TableExpr("tasks AS t").
		ColumnExpr("t.task_id, t.event_id, t.required_volunteers").
		ColumnExpr("COUNT(vs.signup_id) AS signed_up_volunteers").
		Join("LEFT JOIN volunteer_signups AS vs ON vs.task_id = t.task_id").
		Where("t.event_id = ?", eventID).
		GroupExpr("t.task_id, t.event_id, t.required_volunteers").
		OrderExpr("t.task_id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperrors.Store("task capacities", err)
	}
	return rows, nil
}

// TaskRequirement returns the owning event and required headcount of a task.
func (d *DB) TaskRequirement(ctx context.Context, taskID int64) (eventID int64, required int, err error) {
	task := new(models.Task)
	err = d.Bun.NewSelect().
		Model(task).
		Column("task_id", "event_id", "required_volunteers").
		Where("task_id = ?", taskID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, apperrors.NotFound("task %d", taskID)
		}
		return 0, 0, apperrors.Store("task requirement", err)
	}
	return task.EventID, task.RequiredVolunteers, nil
}

func (d *DB) CountSignups(ctx context.Context, taskID int64) (int, error) {
	n, err := d.Bun.NewSelect().
		Model((*models.VolunteerSignup)(nil)).
		Where("task_id = ?", taskID).
		Count(ctx)
	if err != nil {
		return 0, apperrors.Store("count signups", err)
	}
	return n, nil
}
