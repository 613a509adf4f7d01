package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

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

func (d *DB) GetTaskByID(ctx context.Context, taskID int64) (*models.Task, error) {
	task := new(models.Task)
	err := d.Bun.NewSelect().
		Model(task).
		Where("task_id = ?", taskID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("task %d", taskID)
		}
		return nil, apperrors.Store("get task", err)
	}
	return task, nil
}

func (d *DB) CreateTask(ctx context.Context, task *models.Task) error {
	_, err := d.Bun.NewInsert().Model(task).Exec(ctx)
	return apperrors.Store("create task", err)
}

// UpdateTask replaces the editable columns. Status is not among them.
func (d *DB) UpdateTask(ctx context.Context, task *models.Task) error {
	res, err := d.Bun.NewUpdate().
		Model(task).
		Column("title", "description", "required_volunteers", "deadline_time").
		Where("task_id = ?", task.TaskID).
		Exec(ctx)
	if err != nil {
		return apperrors.Store("update task", err)
	}
	return requireRow(res, "task", task.TaskID)
}

// DeleteTask removes the task's signups and then the task in one transaction.
func (d *DB) DeleteTask(ctx context.Context, taskID int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.VolunteerSignup)(nil)).
			Where("task_id = ?", taskID).
			Exec(ctx); err != nil {
			return apperrors.Store("delete task signups", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Task)(nil)).
			Where("task_id = ?", taskID).
			Exec(ctx)
		if err != nil {
			return apperrors.Store("delete task", err)
		}
		return requireRow(res, "task", taskID)
	})
}

// ListTasks returns an event's tasks by deadline, undated tasks last.
func (d *DB) ListTasks(ctx context.Context, eventID int64) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	err := d.Bun.NewSelect().
		Model(&tasks).
		Where("event_id = ?", eventID).
		OrderExpr("deadline_time IS NULL ASC").
		OrderExpr("deadline_time ASC").
		OrderExpr("task_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperrors.Store("list tasks", err)
	}
	return tasks, nil
}

// ListPublicTasks returns the tasks of a published event, open tasks first.
func (d *DB) ListPublicTasks(ctx context.Context, eventID int64) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	err := d.Bun.NewSelect().
		Model(&tasks).
		Join("JOIN events AS e ON e.event_id = t.event_id").
		Where("t.event_id = ?", eventID).
		Where("e.is_published = ?", true).
		OrderExpr("t.status DESC").
		OrderExpr("t.task_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperrors.Store("list public tasks", err)
	}
	return tasks, nil
}

func (d *DB) InsertSignup(ctx context.Context, signup *models.VolunteerSignup) error {
	_, err := d.Bun.NewInsert().Model(signup).Exec(ctx)
	return apperrors.Store("insert signup", err)
}

// InsertSignupWithinCapacity inserts signup only while the task has fewer
// signups than it requires. The task row is locked for the count on Postgres.
func (d *DB) InsertSignupWithinCapacity(ctx context.Context, signup *models.VolunteerSignup) (bool, error) {
	inserted := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		task := new(models.Task)
		q := tx.NewSelect().
			Model(task).
			Column("task_id", "required_volunteers").
			Where("task_id = ?", signup.TaskID)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound("task %d", signup.TaskID)
			}
			return apperrors.Store("lock task", err)
		}

		count, err := tx.NewSelect().
			Model((*models.VolunteerSignup)(nil)).
			Where("task_id = ?", signup.TaskID).
			Count(ctx)
		if err != nil {
			return apperrors.Store("count signups", err)
		}
		if count >= task.RequiredVolunteers {
			return nil
		}

		if _, err := tx.NewInsert().Model(signup).Exec(ctx); err != nil {
			return apperrors.Store("insert signup", err)
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Store("rows affected", err)
	}
	if n == 0 {
		return apperrors.NotFound("%s %d", what, id)
	}
	return nil
}
