package analytics

import (
	"context"
	"fmt"
	"time"

	"ms-community/internal/apperrors"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/policy"
)

type AnalyticsDBLayer interface {
	CountEvents(ctx context.Context) (int, error)
	CountEventsAfter(ctx context.Context, t time.Time) (int, error)
	CountUniqueVolunteers(ctx context.Context) (int, error)
	SumAttendees(ctx context.Context) (int, error)
	ListRegistrations(ctx context.Context, eventID int64) ([]models.EventRegistration, error)
	ListVolunteers(ctx context.Context, eventID int64) ([]models.VolunteerWithTask, error)
	EventTotals(ctx context.Context, eventIDs []int64) (map[int64]*EventSummary, error)
}

type EventGetter interface {
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
}

// Service handles analytics operations
type Service struct {
	DB         AnalyticsDBLayer
	Events     EventGetter
	Ownership  policy.Ownership
	Visibility policy.ContactVisibility
	Logger     *logger.Logger
}

// GlobalStats is the organizer dashboard headline.
type GlobalStats struct {
	TotalEvents      int       `json:"total_events"`
	UniqueVolunteers int       `json:"unique_volunteers"`
	TotalAttendees   int       `json:"total_attendees"`
	FutureEvents     int       `json:"future_events"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// EventDetails lists who is coming to an event and who volunteers for it.
type EventDetails struct {
	EventID    int64                      `json:"event_id"`
	Attendees  []models.EventRegistration `json:"attendees"`
	Volunteers []models.VolunteerWithTask `json:"volunteers"`
}

// EventSummary is the per-event row of a batch request.
type EventSummary struct {
	EventID            int64 `json:"event_id"`
	Tasks              int   `json:"tasks"`
	RequiredVolunteers int   `json:"required_volunteers"`
	SignedUpVolunteers int   `json:"signed_up_volunteers"`
	Registrations      int   `json:"registrations"`
	Attendees          int   `json:"attendees"`
}

func NewService(db AnalyticsDBLayer, events EventGetter, log *logger.Logger) *Service {
	return &Service{
		DB:         db,
		Events:     events,
		Ownership:  policy.OwnerOrAdmin,
		Visibility: policy.AllOrganizers,
		Logger:     log,
	}
}

// GlobalStats counts across every event. Future events start after now.
func (s *Service) GlobalStats(ctx context.Context, actor models.Actor, now time.Time) (*GlobalStats, error) {
	if !actor.IsOrganizerClass() {
		return nil, apperrors.Forbidden("role %q may not read statistics", actor.Role)
	}

	stats := &GlobalStats{GeneratedAt: now.UTC()}
	var err error
	if stats.TotalEvents, err = s.DB.CountEvents(ctx); err != nil {
		return nil, err
	}
	if stats.UniqueVolunteers, err = s.DB.CountUniqueVolunteers(ctx); err != nil {
		return nil, err
	}
	if stats.TotalAttendees, err = s.DB.SumAttendees(ctx); err != nil {
		return nil, err
	}
	if stats.FutureEvents, err = s.DB.CountEventsAfter(ctx, now); err != nil {
		return nil, err
	}
	return stats, nil
}

// EventDetails returns attendees newest first and volunteers with their task.
// Guest contact numbers follow the visibility policy.
func (s *Service) EventDetails(ctx context.Context, actor models.Actor, eventID int64) (*EventDetails, error) {
	if !actor.IsOrganizerClass() {
		return nil, apperrors.Forbidden("role %q may not read event details", actor.Role)
	}
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	attendees, err := s.DB.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	volunteers, err := s.DB.ListVolunteers(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if !s.Visibility.ShowContacts(actor, event) {
		for i := range attendees {
			policy.RedactRegistration(&attendees[i])
		}
		for i := range volunteers {
			policy.RedactSignup(&volunteers[i].VolunteerSignup)
		}
		s.Logger.Debug("ANALYTICS", fmt.Sprintf("Contacts of event %d redacted for actor %d", eventID, actor.UserID))
	}

	return &EventDetails{EventID: eventID, Attendees: attendees, Volunteers: volunteers}, nil
}

// EventSummaries aggregates the events actor may manage among eventIDs.
// Unknown and foreign ids are dropped from the answer rather than failing it.
func (s *Service) EventSummaries(ctx context.Context, actor models.Actor, eventIDs []int64) ([]EventSummary, error) {
	if !actor.IsOrganizerClass() {
		return nil, apperrors.Forbidden("role %q may not read statistics", actor.Role)
	}

	allowed := make([]int64, 0, len(eventIDs))
	seen := make(map[int64]bool, len(eventIDs))
	for _, id := range eventIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		event, err := s.Events.GetEvent(ctx, id)
		if err != nil {
			if apperrors.Kind(err) == apperrors.ErrNotFound {
				continue
			}
			return nil, err
		}
		if s.Ownership.CanModify(actor, event) {
			allowed = append(allowed, id)
		}
	}
	s.Logger.Debug("ANALYTICS", fmt.Sprintf("Batch summary for actor %d: %d of %d events allowed", actor.UserID, len(allowed), len(eventIDs)))

	totals, err := s.DB.EventTotals(ctx, allowed)
	if err != nil {
		return nil, err
	}
	out := make([]EventSummary, 0, len(allowed))
	for _, id := range allowed {
		out = append(out, *totals[id])
	}
	return out, nil
}
