// Package capacity derives how many volunteers each task has against how many
// it needs. Counts always come from the signup rows; the optional cache only
// holds a recent count and is dropped on every write.
package capacity

import (
	"context"
	"fmt"

	"ms-community/internal/logger"
	"ms-community/internal/models"
)

type DBLayer interface {
	TaskCapacities(ctx context.Context, eventID int64) ([]models.TaskCapacity, error)
	TaskRequirement(ctx context.Context, taskID int64) (eventID int64, required int, err error)
	CountSignups(ctx context.Context, taskID int64) (int, error)
}

// Cache is implemented by internal/redis. SetSignedUp stores a count only if
// DeleteSignedUp has not run since generation was read.
type Cache interface {
	GetSignedUp(ctx context.Context, taskID int64) (int, bool, error)
	SignedUpGeneration(ctx context.Context, taskID int64) (int64, error)
	SetSignedUp(ctx context.Context, taskID int64, count int, generation int64) (bool, error)
	DeleteSignedUp(ctx context.Context, taskID int64) error
}

type Aggregator struct {
	DB     DBLayer
	Cache  Cache
	Logger *logger.Logger
}

// NewAggregator builds an aggregator. cache may be nil.
func NewAggregator(db DBLayer, cache Cache, log *logger.Logger) *Aggregator {
	return &Aggregator{DB: db, Cache: cache, Logger: log}
}

// ForEvent returns the capacity of every task of the event. An event without
// tasks yields an empty slice.
func (a *Aggregator) ForEvent(ctx context.Context, eventID int64) ([]models.TaskCapacity, error) {
	rows, err := a.DB.TaskCapacities(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := make([]models.TaskCapacity, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.NewTaskCapacity(row.TaskID, row.EventID, row.RequiredVolunteers, row.SignedUpVolunteers))
	}
	return out, nil
}

func (a *Aggregator) ForTask(ctx context.Context, taskID int64) (models.TaskCapacity, error) {
	eventID, required, err := a.DB.TaskRequirement(ctx, taskID)
	if err != nil {
		return models.TaskCapacity{}, err
	}

	var generation int64
	cacheable := false
	if a.Cache != nil {
		n, ok, err := a.Cache.GetSignedUp(ctx, taskID)
		if err != nil {
			a.warn(fmt.Sprintf("cache read for task %d failed: %v", taskID, err))
		} else if ok {
			return models.NewTaskCapacity(taskID, eventID, required, n), nil
		}

		// Read before counting: a sign-up landing after this point moves the
		// generation and the count below is not cached.
		if generation, err = a.Cache.SignedUpGeneration(ctx, taskID); err != nil {
			a.warn(fmt.Sprintf("cache generation for task %d failed: %v", taskID, err))
		} else {
			cacheable = true
		}
	}

	n, err := a.DB.CountSignups(ctx, taskID)
	if err != nil {
		return models.TaskCapacity{}, err
	}

	if cacheable {
		stored, err := a.Cache.SetSignedUp(ctx, taskID, n, generation)
		if err != nil {
			a.warn(fmt.Sprintf("cache write for task %d failed: %v", taskID, err))
		} else if !stored && a.Logger != nil {
			a.Logger.Debug("CAPACITY", fmt.Sprintf("task %d changed while counting, count not cached", taskID))
		}
	}
	return models.NewTaskCapacity(taskID, eventID, required, n), nil
}

// Invalidate drops the cached count of a task. Callers invoke it after every
// signup insert and task delete.
func (a *Aggregator) Invalidate(ctx context.Context, taskID int64) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.DeleteSignedUp(ctx, taskID); err != nil {
		a.warn(fmt.Sprintf("cache invalidate for task %d failed: %v", taskID, err))
	}
}

// Annotate copies derived counts onto tasks of one event.
func (a *Aggregator) Annotate(ctx context.Context, eventID int64, tasks []models.Task) error {
	caps, err := a.ForEvent(ctx, eventID)
	if err != nil {
		return err
	}
	byID := make(map[int64]models.TaskCapacity, len(caps))
	for _, c := range caps {
		byID[c.TaskID] = c
	}
	for i := range tasks {
		tasks[i].WithCapacity(byID[tasks[i].TaskID])
	}
	return nil
}

func (a *Aggregator) warn(msg string) {
	if a.Logger != nil {
		a.Logger.Warn("CAPACITY", msg)
	}
}
