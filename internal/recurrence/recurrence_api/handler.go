package recurrence_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-community/internal/apperrors"
	"ms-community/internal/auth"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/recurrence"
	"ms-community/internal/utils"
)

type Generator interface {
	Generate(ctx context.Context, actor models.Actor, req recurrence.Request) (*recurrence.Result, error)
}

type Handler struct {
	Generator Generator
	Logger    *logger.Logger
}

func NewHandler(gen Generator, log *logger.Logger) *Handler {
	return &Handler{Generator: gen, Logger: log}
}

// GenerateRequest is the recurrence body. The Idempotency-Key header is used
// when the body carries no key.
type GenerateRequest struct {
	IntervalUnit   string `json:"interval_unit"`
	IntervalValue  int    `json:"interval_value"`
	RepeatCount    int    `json:"repeat_count"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Generate answers 201 when every copy exists, 207 with the per-iteration
// report when some failed, and 200 for an empty or fully replayed run.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "Generate", "Invalid event id", err)
		return
	}

	var body GenerateRequest
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "Generate", "Invalid request body", err)
		return
	}
	unit, err := recurrence.ParseUnit(body.IntervalUnit)
	if err != nil {
		h.fail(w, "Generate", "Invalid interval unit", err)
		return
	}
	key := body.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	h.Logger.Info("API", fmt.Sprintf("Generate: eventId=%d unit=%s interval=%d count=%d key=%q actor=%d",
		eventID, unit, body.IntervalValue, body.RepeatCount, key, actor.UserID))

	result, err := h.Generator.Generate(r.Context(), actor, recurrence.Request{
		SourceEventID:  eventID,
		Unit:           unit,
		Interval:       body.IntervalValue,
		Count:          body.RepeatCount,
		IdempotencyKey: key,
	})
	switch {
	case errors.Is(err, apperrors.ErrPartialFailure) && result != nil:
		h.Logger.Warn("API", fmt.Sprintf("Generate: eventId=%d %v", eventID, err))
		resp := utils.ErrorResponse("Some occurrences could not be created", err.Error())
		resp.Code = apperrors.CodePartialFailure
		resp.Data = result
		utils.RespondJSON(w, http.StatusMultiStatus, resp)
	case err != nil:
		h.fail(w, "Generate", "Failed to generate occurrences", err)
	case result.Created > 0:
		utils.RespondSuccess(w, http.StatusCreated, fmt.Sprintf("Created %d occurrences", result.Created), result)
	default:
		utils.RespondSuccess(w, http.StatusOK, "Nothing to create", result)
	}
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.RespondError(w, message, err)
}
