// Package recurrence expands one event and its task template into a spaced
// series of future copies.
package recurrence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-community/internal/apperrors"
	"ms-community/internal/kafka"
	"ms-community/internal/logger"
	"ms-community/internal/models"
)

// EventCreator is the event registry as the generator sees it. Copies go
// through the same validation and ownership rules as a direct create.
type EventCreator interface {
	Get(ctx context.Context, eventID int64) (*models.Event, error)
	Authorize(actor models.Actor, event *models.Event) error
	Create(ctx context.Context, actor models.Actor, in models.EventInput) (*models.Event, error)
	Delete(ctx context.Context, actor models.Actor, eventID int64) error
}

type TaskCreator interface {
	ListTemplate(ctx context.Context, eventID int64) ([]models.Task, error)
	Create(ctx context.Context, actor models.Actor, in models.TaskInput) (*models.Task, error)
}

// RunStore keeps idempotent runs. AcquireRun reports false while another
// caller holds key.
type RunStore interface {
	AcquireRun(ctx context.Context, key, owner string) (bool, error)
	ReleaseRun(ctx context.Context, key, owner string) error
	LoadRun(ctx context.Context, key string) ([]byte, bool, error)
	SaveRun(ctx context.Context, key string, data []byte) error
}

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusReplayed  Status = "replayed"
)

type Request struct {
	SourceEventID  int64  `json:"source_event_id"`
	Unit           Unit   `json:"unit"`
	Interval       int    `json:"interval"`
	Count          int    `json:"count"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type Iteration struct {
	Index   int        `json:"index"`
	Start   time.Time  `json:"start_datetime"`
	End     *time.Time `json:"end_datetime,omitempty"`
	Status  Status     `json:"status"`
	EventID int64      `json:"event_id,omitempty"`
	TaskIDs []int64    `json:"task_ids,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type Result struct {
	RunID         string      `json:"run_id"`
	SourceEventID int64       `json:"source_event_id"`
	Unit          Unit        `json:"unit"`
	Interval      int         `json:"interval"`
	Count         int         `json:"count"`
	Iterations    []Iteration `json:"iterations"`
	Created       int         `json:"created"`
	Replayed      int         `json:"replayed"`
	Failed        int         `json:"failed"`
	Skipped       int         `json:"skipped"`
}

// EventIDs lists the copies that exist after the run, in iteration order.
func (r *Result) EventIDs() []int64 {
	ids := make([]int64, 0, len(r.Iterations))
	for _, it := range r.Iterations {
		if it.Status == StatusSucceeded || it.Status == StatusReplayed {
			ids = append(ids, it.EventID)
		}
	}
	return ids
}

func (r *Result) tally() {
	r.Created, r.Replayed, r.Failed, r.Skipped = 0, 0, 0, 0
	for _, it := range r.Iterations {
		switch it.Status {
		case StatusSucceeded:
			r.Created++
		case StatusReplayed:
			r.Replayed++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
	}
}

func (r *Result) matches(req Request) bool {
	return r.SourceEventID == req.SourceEventID && r.Unit == req.Unit && r.Interval == req.Interval && r.Count == req.Count
}

type Generator struct {
	Events    EventCreator
	Tasks     TaskCreator
	Runs      RunStore
	Publisher kafka.Publisher
	MaxCount  int
	Logger    *logger.Logger
}

func NewGenerator(events EventCreator, tasks TaskCreator, runs RunStore, maxCount int, log *logger.Logger) *Generator {
	return &Generator{
		Events:    events,
		Tasks:     tasks,
		Runs:      runs,
		Publisher: kafka.NopPublisher{},
		MaxCount:  maxCount,
		Logger:    log,
	}
}

// Generate creates req.Count copies of the source event, one iteration at a
// time. Iterations are independent: a failed one is reported and the run moves
// on. When any iteration failed or was skipped the result is returned together
// with an error wrapping apperrors.ErrPartialFailure.
func (g *Generator) Generate(ctx context.Context, actor models.Actor, req Request) (*Result, error) {
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := g.validate(req); err != nil {
		return nil, err
	}

	source, err := g.Events.Get(ctx, req.SourceEventID)
	if err != nil {
		return nil, err
	}
	if err := g.Events.Authorize(actor, source); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:         uuid.New().String(),
		SourceEventID: req.SourceEventID,
		Unit:          req.Unit,
		Interval:      req.Interval,
		Count:         req.Count,
		Iterations:    []Iteration{},
	}
	if req.Count == 0 {
		return result, nil
	}

	var previous *Result
	storeKey := runKey(actor, req.IdempotencyKey)
	if req.IdempotencyKey != "" && g.Runs != nil {
		release, err := g.acquire(ctx, storeKey, result.RunID)
		if err != nil {
			return nil, err
		}
		defer release()

		previous, err = g.load(ctx, storeKey)
		if err != nil {
			return nil, err
		}
		if previous != nil {
			if !previous.matches(req) {
				return nil, apperrors.Validation("idempotency key %q was used for a different recurrence request", req.IdempotencyKey)
			}
			result.RunID = previous.RunID
		}
	}

	template, err := g.Tasks.ListTemplate(ctx, source.EventID)
	if err != nil {
		return nil, err
	}

	g.Logger.LogEvent("RECURRENCE", source.EventID, fmt.Sprintf("run %s: %d x every %d %s, %d template tasks, by %d",
		result.RunID, req.Count, req.Interval, req.Unit, len(template), actor.UserID))

	for _, occ := range Schedule(source.StartDatetime, source.EndDatetime, req.Unit, req.Interval, req.Count) {
		it := Iteration{Index: occ.Index, Start: occ.Start, End: occ.End}

		switch done := previous.done(occ.Index); {
		case done != nil:
			it.Status = StatusReplayed
			it.EventID = done.EventID
			it.TaskIDs = done.TaskIDs
		case ctx.Err() != nil:
			it.Status = StatusSkipped
			it.Error = ctx.Err().Error()
		default:
			g.runIteration(ctx, actor, source, template, &it)
		}
		result.Iterations = append(result.Iterations, it)
	}
	result.tally()

	// The outcome is recorded even when the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	if req.IdempotencyKey != "" && g.Runs != nil {
		g.save(persistCtx, storeKey, result)
	}
	if err := g.Publisher.Publish(persistCtx, kafka.TopicRecurrenceCompleted, fmt.Sprint(source.EventID), result); err != nil {
		g.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish recurrence run %s: %v", result.RunID, err))
	}

	g.Logger.LogEvent("RECURRENCE", source.EventID, fmt.Sprintf("run %s finished: created=%d replayed=%d failed=%d skipped=%d",
		result.RunID, result.Created, result.Replayed, result.Failed, result.Skipped))

	if result.Failed > 0 || result.Skipped > 0 {
		return result, fmt.Errorf("%w: %d of %d iterations failed, %d skipped",
			apperrors.ErrPartialFailure, result.Failed, result.Count, result.Skipped)
	}
	return result, nil
}

// runKey scopes an idempotency key to the user who sent it.
func runKey(actor models.Actor, key string) string {
	return fmt.Sprintf("%d:%s", actor.UserID, key)
}

func (g *Generator) validate(req Request) error {
	switch req.Unit {
	case Day, Week, Month:
	default:
		return apperrors.Validation("unknown interval unit %q (want day, week or month)", req.Unit)
	}
	if req.Interval <= 0 {
		return apperrors.Validation("interval must be a positive integer, got %d", req.Interval)
	}
	if req.Count < 0 {
		return apperrors.Validation("count cannot be negative, got %d", req.Count)
	}
	if g.MaxCount > 0 && req.Count > g.MaxCount {
		return apperrors.Validation("count %d exceeds the limit of %d", req.Count, g.MaxCount)
	}
	return nil
}

// runIteration creates one copy with its tasks. A task failure deletes the
// copy again so that an iteration either fully exists or not at all.
func (g *Generator) runIteration(ctx context.Context, actor models.Actor, source *models.Event, template []models.Task, it *Iteration) {
	published := source.IsPublished
	event, err := g.Events.Create(ctx, actor, models.EventInput{
		Title:         source.Title,
		Category:      source.Category,
		StartDatetime: it.Start,
		EndDatetime:   it.End,
		LocationName:  source.LocationName,
		Description:   source.Description,
		IsPublished:   &published,
	})
	if err != nil {
		it.Status = StatusFailed
		it.Error = err.Error()
		g.Logger.Warn("RECURRENCE", fmt.Sprintf("Copy %d of event %d failed: %v", it.Index, source.EventID, err))
		return
	}

	taskIDs := make([]int64, 0, len(template))
	for _, t := range template {
		task, err := g.Tasks.Create(ctx, actor, models.TaskInput{
			EventID:            event.EventID,
			Title:              t.Title,
			Description:        t.Description,
			RequiredVolunteers: t.RequiredVolunteers,
		})
		if err != nil {
			it.Status = StatusFailed
			it.Error = fmt.Sprintf("task %q: %v", t.Title, err)
			g.compensate(ctx, actor, source.EventID, event.EventID, it)
			return
		}
		taskIDs = append(taskIDs, task.TaskID)
	}

	it.Status = StatusSucceeded
	it.EventID = event.EventID
	it.TaskIDs = taskIDs
}

func (g *Generator) compensate(ctx context.Context, actor models.Actor, sourceID, eventID int64, it *Iteration) {
	if err := g.Events.Delete(context.WithoutCancel(ctx), actor, eventID); err != nil {
		// The half-built copy stays behind; report its id so it can be removed by hand.
		it.EventID = eventID
		it.Error = fmt.Sprintf("%s; cleanup of event %d failed: %v", it.Error, eventID, err)
		g.Logger.Error("RECURRENCE", fmt.Sprintf("Copy %d of event %d left incomplete event %d: %v", it.Index, sourceID, eventID, err))
		return
	}
	g.Logger.Warn("RECURRENCE", fmt.Sprintf("Copy %d of event %d rolled back: %s", it.Index, sourceID, it.Error))
}

func (g *Generator) acquire(ctx context.Context, key, owner string) (func(), error) {
	ok, err := g.Runs.AcquireRun(ctx, key, owner)
	if err != nil {
		return nil, apperrors.Store("acquire recurrence run", err)
	}
	if !ok {
		return nil, apperrors.Conflict("recurrence run %q is already in progress", key)
	}
	return func() {
		if err := g.Runs.ReleaseRun(context.WithoutCancel(ctx), key, owner); err != nil {
			g.Logger.Warn("RECURRENCE", fmt.Sprintf("Failed to release run %q: %v", key, err))
		}
	}, nil
}

func (g *Generator) load(ctx context.Context, key string) (*Result, error) {
	data, ok, err := g.Runs.LoadRun(ctx, key)
	if err != nil {
		return nil, apperrors.Store("load recurrence run", err)
	}
	if !ok {
		return nil, nil
	}
	var prev Result
	if err := json.Unmarshal(data, &prev); err != nil {
		g.Logger.Warn("RECURRENCE", fmt.Sprintf("Ignoring unreadable run %q: %v", key, err))
		return nil, nil
	}
	return &prev, nil
}

func (g *Generator) save(ctx context.Context, key string, result *Result) {
	data, err := json.Marshal(result)
	if err == nil {
		err = g.Runs.SaveRun(ctx, key, data)
	}
	if err != nil {
		g.Logger.Error("RECURRENCE", fmt.Sprintf("Failed to store run %q: %v", key, err))
	}
}

// done returns the iteration with index when an earlier run already created it.
func (r *Result) done(index int) *Iteration {
	if r == nil {
		return nil
	}
	for i := range r.Iterations {
		it := &r.Iterations[i]
		if it.Index == index && (it.Status == StatusSucceeded || it.Status == StatusReplayed) {
			return it
		}
	}
	return nil
}
