package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-community/internal/apperrors"
	"ms-community/internal/identity"
	"ms-community/internal/kafka"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/policy"
)

type AttendanceDBLayer interface {
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	InsertRegistration(ctx context.Context, reg *models.EventRegistration) error
	ListRegistrations(ctx context.Context, eventID int64) ([]models.EventRegistration, error)
	Summary(ctx context.Context, eventID int64) (*models.AttendanceSummary, error)
}

type IdentityResolver interface {
	Resolve(ctx context.Context, req identity.Request) (identity.Identity, error)
}

type AttendanceService struct {
	DB         AttendanceDBLayer
	Identity   IdentityResolver
	Publisher  kafka.Publisher
	Visibility policy.ContactVisibility
	Logger     *logger.Logger
}

// RegistrationCreated is published on every accepted registration.
type RegistrationCreated struct {
	RegistrationID int64  `json:"registration_id"`
	EventID        int64  `json:"event_id"`
	UserID         *int64 `json:"user_id,omitempty"`
	Adults         int    `json:"adults"`
	Children       int    `json:"children"`
	OnSite         bool   `json:"onsite"`
}

func NewAttendanceService(db AttendanceDBLayer, resolver IdentityResolver, log *logger.Logger) *AttendanceService {
	return &AttendanceService{
		DB:         db,
		Identity:   resolver,
		Publisher:  kafka.NopPublisher{},
		Visibility: policy.AllOrganizers,
		Logger:     log,
	}
}

// Register records a headcount claim on a published event. An event id that
// references nothing is a validation error; an unpublished event looks missing.
func (s *AttendanceService) Register(ctx context.Context, eventID int64, req identity.Request, adults, children int, comment string) (*models.EventRegistration, error) {
	if adults < 0 || children < 0 {
		return nil, apperrors.Validation("headcount cannot be negative (adults=%d, children=%d)", adults, children)
	}
	if adults+children == 0 {
		return nil, apperrors.Validation("at least one attendee is required")
	}

	event, err := s.DB.GetEvent(ctx, eventID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Validation("event %d does not exist", eventID)
	}
	if err != nil {
		return nil, err
	}
	if !event.IsPublished {
		return nil, apperrors.NotFound("event %d", eventID)
	}

	id, err := s.Identity.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	reg := &models.EventRegistration{
		EventID:       eventID,
		AdultsCount:   adults,
		ChildrenCount: children,
		Comment:       strings.TrimSpace(comment),
		CreatedAt:     time.Now().UTC(),
	}
	identity.ApplyToRegistration(id, reg)

	if err := s.DB.InsertRegistration(ctx, reg); err != nil {
		s.Logger.Error("ATTENDANCE", fmt.Sprintf("Failed to register %s on event %d: %v", id, eventID, err))
		return nil, err
	}

	s.Logger.LogEvent("REGISTER", eventID, fmt.Sprintf("%s, %d adults %d children, onsite=%t", id, adults, children, req.OnSite))
	if err := s.Publisher.Publish(ctx, kafka.TopicRegistrationCreated, fmt.Sprint(eventID), RegistrationCreated{
		RegistrationID: reg.RegistrationID,
		EventID:        eventID,
		UserID:         reg.UserID,
		Adults:         adults,
		Children:       children,
		OnSite:         req.OnSite,
	}); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish registration %d: %v", reg.RegistrationID, err))
	}
	return reg, nil
}

// ListForEvent returns the registrations newest first. Guest contacts are
// blanked when the visibility policy hides them from actor.
func (s *AttendanceService) ListForEvent(ctx context.Context, actor models.Actor, eventID int64) ([]models.EventRegistration, error) {
	if !actor.IsOrganizerClass() {
		return nil, apperrors.Forbidden("role %q may not list registrations", actor.Role)
	}
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	regs, err := s.DB.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !s.Visibility.ShowContacts(actor, event) {
		for i := range regs {
			policy.RedactRegistration(&regs[i])
		}
	}
	return regs, nil
}

// Summary is the public headcount. Unpublished events report not found.
func (s *AttendanceService) Summary(ctx context.Context, eventID int64) (*models.AttendanceSummary, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsPublished {
		return nil, apperrors.NotFound("event %d", eventID)
	}
	return s.DB.Summary(ctx, eventID)
}
