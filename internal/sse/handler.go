package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-community/internal/apperrors"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/utils"
)

// Snapshotter supplies the capacity of an event's tasks when a client connects.
type Snapshotter interface {
	ForEvent(ctx context.Context, eventID int64) ([]models.TaskCapacity, error)
}

// EventChecker reports whether an event is publicly visible.
type EventChecker interface {
	IsPublished(ctx context.Context, eventID int64) (bool, error)
}

type Handler struct {
	Emitter  *CapacityEmitter
	Capacity Snapshotter
	Events   EventChecker
	Logger   *logger.Logger
}

func NewHandler(emitter *CapacityEmitter, capacity Snapshotter, events EventChecker, log *logger.Logger) *Handler {
	return &Handler{Emitter: emitter, Capacity: capacity, Events: events, Logger: log}
}

// StreamTaskCapacity streams capacity frames for one published event: a
// snapshot of every task first, then one frame per sign-up.
func (h *Handler) StreamTaskCapacity(w http.ResponseWriter, r *http.Request) {
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		utils.RespondError(w, "Invalid event id", err)
		return
	}

	published, err := h.Events.IsPublished(r.Context(), eventID)
	if err != nil {
		utils.RespondError(w, "Failed to load event", err)
		return
	}
	if !published {
		utils.RespondError(w, "Event not found", apperrors.NotFound("event %d", eventID))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Streaming unsupported", "response writer cannot flush"))
		return
	}

	ctx := r.Context()
	updates := h.Emitter.Subscribe(ctx, eventID)

	snapshot, err := h.Capacity.ForEvent(ctx, eventID)
	if err != nil {
		utils.RespondError(w, "Failed to load capacity", err)
		return
	}

	setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"event_id\":%d}\n\n", eventID)
	for _, c := range snapshot {
		h.writeFrame(w, c)
	}
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to capacity stream for event %d", eventID))

	for {
		select {
		case c, ok := <-updates:
			if !ok {
				return
			}
			h.writeFrame(w, c)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from capacity stream for event %d", eventID))
			return
		}
	}
}

func (h *Handler) writeFrame(w http.ResponseWriter, c models.TaskCapacity) {
	jsonData, err := json.Marshal(c)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize capacity frame: %v", err))
		return
	}
	fmt.Fprintf(w, "event: capacity\ndata: %s\n\n", jsonData)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
