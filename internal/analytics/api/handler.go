package analytics_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-community/internal/analytics"
	"ms-community/internal/apperrors"
	"ms-community/internal/auth"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/utils"
)

const maxBatchEvents = 100

type Service interface {
	GlobalStats(ctx context.Context, actor models.Actor, now time.Time) (*analytics.GlobalStats, error)
	EventDetails(ctx context.Context, actor models.Actor, eventID int64) (*analytics.EventDetails, error)
	EventSummaries(ctx context.Context, actor models.Actor, eventIDs []int64) ([]analytics.EventSummary, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service Service
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewHandler(service Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log, Now: time.Now}
}

// RegisterRoutes registers the analytics routes on a router that already
// requires an organizer-class actor.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/stats/global", h.GetGlobalStats)
	r.Post("/api/stats/events/batch", h.GetEventSummaries)
	r.Get("/api/events/{id}/details", h.GetEventDetails)
}

func (h *Handler) GetGlobalStats(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	h.Logger.Info("API", fmt.Sprintf("GetGlobalStats: actor=%d", actor.UserID))

	stats, err := h.Service.GlobalStats(r.Context(), actor, h.Now())
	if err != nil {
		h.fail(w, "GetGlobalStats", "Failed to calculate statistics", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Statistics", stats)
}

func (h *Handler) GetEventDetails(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "GetEventDetails", "Invalid event id", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("GetEventDetails: eventId=%d actor=%d", eventID, actor.UserID))

	details, err := h.Service.EventDetails(r.Context(), actor, eventID)
	if err != nil {
		h.fail(w, "GetEventDetails", "Failed to load event details", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Event details", details)
}

type batchRequest struct {
	EventIDs []int64 `json:"event_ids"`
}

func (h *Handler) GetEventSummaries(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	var body batchRequest
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "GetEventSummaries", "Invalid request body", err)
		return
	}
	if len(body.EventIDs) > maxBatchEvents {
		h.fail(w, "GetEventSummaries", "Too many events",
			apperrors.Validation("at most %d event ids per request, got %d", maxBatchEvents, len(body.EventIDs)))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("GetEventSummaries: %d events actor=%d", len(body.EventIDs), actor.UserID))

	summaries, err := h.Service.EventSummaries(r.Context(), actor, body.EventIDs)
	if err != nil {
		h.fail(w, "GetEventSummaries", "Failed to summarize events", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Event summaries", summaries)
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.RespondError(w, message, err)
}
