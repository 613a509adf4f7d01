package event_api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"ms-community/internal/auth"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/utils"
)

// EventService is the part of events.EventService the handlers call.
type EventService interface {
	Create(ctx context.Context, actor models.Actor, in models.EventInput) (*models.Event, error)
	Get(ctx context.Context, eventID int64) (*models.Event, error)
	Update(ctx context.Context, actor models.Actor, eventID int64, in models.EventInput) (*models.Event, error)
	SetPublished(ctx context.Context, actor models.Actor, eventID int64, published bool) (*models.Event, error)
	Delete(ctx context.Context, actor models.Actor, eventID int64) error
	ListPublic(ctx context.Context) ([]models.Event, error)
	ListForOrganizer(ctx context.Context, actor models.Actor) ([]models.EventWithOrganizer, error)
}

// QRRenderer draws the on-site registration code of an event.
type QRRenderer interface {
	OnsitePNG(eventID int64) ([]byte, error)
}

type Handler struct {
	EventService EventService
	QR           QRRenderer
	Logger       *logger.Logger
}

func NewHandler(eventService EventService, qr QRRenderer, log *logger.Logger) *Handler {
	return &Handler{EventService: eventService, QR: qr, Logger: log}
}

func (h *Handler) ListPublicEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.EventService.ListPublic(r.Context())
	if err != nil {
		h.fail(w, "ListPublicEvents", "Failed to list events", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Events", list)
}

func (h *Handler) ListOrganizerEvents(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	h.Logger.Info("API", fmt.Sprintf("ListOrganizerEvents: actor=%d role=%s", actor.UserID, actor.Role))

	list, err := h.EventService.ListForOrganizer(r.Context(), actor)
	if err != nil {
		h.fail(w, "ListOrganizerEvents", "Failed to list events", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Events", list)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CreateEvent: actor=%d", actor.UserID))

	var in models.EventInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateEvent", "Invalid request body", err)
		return
	}

	event, err := h.EventService.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "CreateEvent", "Failed to create event", err)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, "Event created", event)
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "UpdateEvent", "Invalid event id", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UpdateEvent: eventId=%d actor=%d", eventID, actor.UserID))

	var in models.EventInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateEvent", "Invalid request body", err)
		return
	}

	event, err := h.EventService.Update(r.Context(), actor, eventID, in)
	if err != nil {
		h.fail(w, "UpdateEvent", "Failed to update event", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Event updated", event)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "DeleteEvent", "Invalid event id", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("DeleteEvent: eventId=%d actor=%d", eventID, actor.UserID))

	if err := h.EventService.Delete(r.Context(), actor, eventID); err != nil {
		h.fail(w, "DeleteEvent", "Failed to delete event", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Event deleted", nil)
}

func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, true)
}

func (h *Handler) UnpublishEvent(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, false)
}

func (h *Handler) setPublished(w http.ResponseWriter, r *http.Request, published bool) {
	actor, _ := auth.ActorFromContext(r.Context())
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "SetPublished", "Invalid event id", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("SetPublished: eventId=%d published=%t actor=%d", eventID, published, actor.UserID))

	event, err := h.EventService.SetPublished(r.Context(), actor, eventID, published)
	if err != nil {
		h.fail(w, "SetPublished", "Failed to change event visibility", err)
		return
	}
	msg := "Event unpublished"
	if published {
		msg = "Event published"
	}
	utils.RespondSuccess(w, http.StatusOK, msg, event)
}

// OnsiteQR serves the PNG that venue posters link to walk-up registration.
func (h *Handler) OnsiteQR(w http.ResponseWriter, r *http.Request) {
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "OnsiteQR", "Invalid event id", err)
		return
	}
	if _, err := h.EventService.Get(r.Context(), eventID); err != nil {
		h.fail(w, "OnsiteQR", "Event not found", err)
		return
	}

	png, err := h.QR.OnsitePNG(eventID)
	if err != nil {
		h.fail(w, "OnsiteQR", "Failed to render QR code", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.RespondError(w, message, err)
}
