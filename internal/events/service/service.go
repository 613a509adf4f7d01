package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-community/internal/apperrors"
	"ms-community/internal/kafka"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/policy"
)

type EventDBLayer interface {
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) error
	UpdateEvent(ctx context.Context, event *models.Event) error
	SetPublished(ctx context.Context, eventID int64, published bool) error
	DeleteEventCascade(ctx context.Context, eventID int64) ([]int64, error)
	ListPublic(ctx context.Context) ([]models.Event, error)
	ListWithOrganizer(ctx context.Context, organizerID int64) ([]models.EventWithOrganizer, error)
}

// CapacityInvalidator drops cached counts of deleted tasks.
type CapacityInvalidator interface {
	Invalidate(ctx context.Context, taskID int64)
}

type EventService struct {
	DB        EventDBLayer
	Ownership policy.Ownership
	Publisher kafka.Publisher
	Capacity  CapacityInvalidator
	Logger    *logger.Logger
}

// EventChange is the payload of the event topics.
type EventChange struct {
	EventID int64         `json:"event_id"`
	ActorID int64         `json:"actor_id"`
	Event   *models.Event `json:"event,omitempty"`
	TaskIDs []int64       `json:"task_ids,omitempty"`
}

func NewEventService(db EventDBLayer, ownership policy.Ownership, log *logger.Logger) *EventService {
	return &EventService{
		DB:        db,
		Ownership: ownership,
		Publisher: kafka.NopPublisher{},
		Logger:    log,
	}
}

// Create stores a new event owned by actor. Events are published unless the
// input says otherwise.
func (s *EventService) Create(ctx context.Context, actor models.Actor, in models.EventInput) (*models.Event, error) {
	if !actor.IsOrganizerClass() {
		return nil, apperrors.Forbidden("role %q may not create events", actor.Role)
	}
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}

	event := &models.Event{
		OrganizerID: actor.UserID,
		IsPublished: true,
		CreatedAt:   time.Now().UTC(),
	}
	applyInput(event, in)

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		s.Logger.Error("EVENT", fmt.Sprintf("Failed to create event %q: %v", in.Title, err))
		return nil, err
	}

	s.Logger.LogEvent("CREATE", event.EventID, fmt.Sprintf("%q on %s by %d", event.Title, event.StartDatetime.Format(time.RFC3339), actor.UserID))
	s.publish(ctx, kafka.TopicEventCreated, EventChange{EventID: event.EventID, ActorID: actor.UserID, Event: event})
	return event, nil
}

func (s *EventService) Get(ctx context.Context, eventID int64) (*models.Event, error) {
	return s.DB.GetEvent(ctx, eventID)
}

// IsPublished reports false for missing events.
func (s *EventService) IsPublished(ctx context.Context, eventID int64) (bool, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return event.IsPublished, nil
}

// Authorize applies the ownership policy to an already loaded event.
func (s *EventService) Authorize(actor models.Actor, event *models.Event) error {
	if err := s.Ownership.Authorize(actor, event); err != nil {
		s.Logger.LogSecurity("FORBIDDEN", err.Error())
		return err
	}
	return nil
}

// Update replaces every editable field. A nil IsPublished keeps the current
// flag.
func (s *EventService) Update(ctx context.Context, actor models.Actor, eventID int64, in models.EventInput) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(actor, event); err != nil {
		return nil, err
	}
	if err := normalizeInput(&in); err != nil {
		return nil, err
	}

	applyInput(event, in)
	if err := s.DB.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}

	s.Logger.LogEvent("UPDATE", eventID, fmt.Sprintf("by %d", actor.UserID))
	s.publish(ctx, kafka.TopicEventUpdated, EventChange{EventID: eventID, ActorID: actor.UserID, Event: event})
	return event, nil
}

func (s *EventService) SetPublished(ctx context.Context, actor models.Actor, eventID int64, published bool) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(actor, event); err != nil {
		return nil, err
	}
	if err := s.DB.SetPublished(ctx, eventID, published); err != nil {
		return nil, err
	}
	event.IsPublished = published

	s.Logger.LogEvent("PUBLISH", eventID, fmt.Sprintf("published=%t by %d", published, actor.UserID))
	s.publish(ctx, kafka.TopicEventUpdated, EventChange{EventID: eventID, ActorID: actor.UserID, Event: event})
	return event, nil
}

// Delete removes the event with its tasks, their signups and its registrations.
func (s *EventService) Delete(ctx context.Context, actor models.Actor, eventID int64) error {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.Authorize(actor, event); err != nil {
		return err
	}

	taskIDs, err := s.DB.DeleteEventCascade(ctx, eventID)
	if err != nil {
		s.Logger.Error("EVENT", fmt.Sprintf("Failed to delete event %d: %v", eventID, err))
		return err
	}
	if s.Capacity != nil {
		for _, taskID := range taskIDs {
			s.Capacity.Invalidate(ctx, taskID)
		}
	}

	s.Logger.LogEvent("DELETE", eventID, fmt.Sprintf("with %d tasks by %d", len(taskIDs), actor.UserID))
	s.publish(ctx, kafka.TopicEventDeleted, EventChange{EventID: eventID, ActorID: actor.UserID, TaskIDs: taskIDs})
	return nil
}

func (s *EventService) ListPublic(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListPublic(ctx)
}

// ListForOrganizer returns every event to an admin and an organizer's own
// events otherwise.
func (s *EventService) ListForOrganizer(ctx context.Context, actor models.Actor) ([]models.EventWithOrganizer, error) {
	switch {
	case actor.IsAdmin():
		return s.DB.ListWithOrganizer(ctx, 0)
	case actor.IsOrganizerClass():
		return s.DB.ListWithOrganizer(ctx, actor.UserID)
	default:
		return nil, apperrors.Forbidden("role %q has no organizer events", actor.Role)
	}
}

func (s *EventService) publish(ctx context.Context, topic string, change EventChange) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, topic, fmt.Sprint(change.EventID), change); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for event %d: %v", topic, change.EventID, err))
	}
}

func normalizeInput(in *models.EventInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.LocationName = strings.TrimSpace(in.LocationName)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" {
		return apperrors.Validation("title is required")
	}
	if in.Category == "" {
		in.Category = models.DefaultCategory
	}
	if !in.Category.Valid() {
		return apperrors.Validation("unknown category %q", in.Category)
	}
	if in.StartDatetime.IsZero() {
		return apperrors.Validation("start_datetime is required")
	}
	if in.EndDatetime != nil && in.EndDatetime.Before(in.StartDatetime) {
		return apperrors.Validation("end_datetime %s is before start_datetime %s",
			in.EndDatetime.Format(time.RFC3339), in.StartDatetime.Format(time.RFC3339))
	}
	return nil
}

func applyInput(event *models.Event, in models.EventInput) {
	event.Title = in.Title
	event.Category = in.Category
	event.StartDatetime = in.StartDatetime.UTC()
	event.EndDatetime = nil
	if in.EndDatetime != nil {
		end := in.EndDatetime.UTC()
		event.EndDatetime = &end
	}
	event.LocationName = in.LocationName
	event.Description = in.Description
	if in.IsPublished != nil {
		event.IsPublished = *in.IsPublished
	}
}
