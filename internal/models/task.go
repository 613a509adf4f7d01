package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TaskStatus string

const (
	TaskStatusOpen   TaskStatus = "Open"
	TaskStatusClosed TaskStatus = "Closed"
)

func (s TaskStatus) Valid() bool {
	return s == TaskStatusOpen || s == TaskStatusClosed
}

type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	TaskID             int64      `bun:"task_id,pk,autoincrement" json:"task_id"`
	EventID            int64      `bun:"event_id,notnull" json:"event_id"`
	Title              string     `bun:"title,notnull" json:"title"`
	Description        string     `bun:"description" json:"description"`
	RequiredVolunteers int        `bun:"required_volunteers,notnull" json:"required_volunteers"`
	DeadlineTime       *time.Time `bun:"deadline_time,nullzero" json:"deadline_time"`
	Status             TaskStatus `bun:"status,notnull" json:"status"`

	// Derived from the signup rows at read time, never persisted.
	SignedUpVolunteers int  `bun:"-" json:"signed_up_volunteers"`
	IsFull             bool `bun:"-" json:"is_full"`
}

// TaskInput is the editable part of a task. Update replaces all of it.
type TaskInput struct {
	EventID            int64      `json:"event_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	RequiredVolunteers int        `json:"required_volunteers"`
	DeadlineTime       *time.Time `json:"deadline_time,omitempty"`
	Status             TaskStatus `json:"status,omitempty"`
}

// TaskCapacity is the capacity view of a single task.
type TaskCapacity struct {
	TaskID             int64 `bun:"task_id" json:"task_id"`
	EventID            int64 `bun:"event_id" json:"event_id"`
	RequiredVolunteers int   `bun:"required_volunteers" json:"required_volunteers"`
	SignedUpVolunteers int   `bun:"signed_up_volunteers" json:"signed_up_volunteers"`
	IsFull             bool  `bun:"-" json:"is_full"`
}

func NewTaskCapacity(taskID, eventID int64, required, signedUp int) TaskCapacity {
	return TaskCapacity{
		TaskID:             taskID,
		EventID:            eventID,
		RequiredVolunteers: required,
		SignedUpVolunteers: signedUp,
		IsFull:             signedUp >= required,
	}
}

// WithCapacity copies the derived counts onto the task.
func (t *Task) WithCapacity(c TaskCapacity) {
	t.SignedUpVolunteers = c.SignedUpVolunteers
	t.IsFull = c.SignedUpVolunteers >= t.RequiredVolunteers
}
