package attendance_api

import (
	"context"
	"fmt"
	"net/http"

	"ms-community/internal/auth"
	"ms-community/internal/identity"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/utils"
)

type AttendanceService interface {
	Register(ctx context.Context, eventID int64, req identity.Request, adults, children int, comment string) (*models.EventRegistration, error)
	ListForEvent(ctx context.Context, actor models.Actor, eventID int64) ([]models.EventRegistration, error)
	Summary(ctx context.Context, eventID int64) (*models.AttendanceSummary, error)
}

type Handler struct {
	AttendanceService AttendanceService
	Logger            *logger.Logger
}

func NewHandler(attendanceService AttendanceService, log *logger.Logger) *Handler {
	return &Handler{AttendanceService: attendanceService, Logger: log}
}

// RegisterRequest is the registration body. Contact is accepted as an alias of
// Whatsapp for older clients.
type RegisterRequest struct {
	Name     string `json:"name"`
	Whatsapp string `json:"whatsapp"`
	Contact  string `json:"contact"`
	UkPhone  string `json:"uk_phone"`
	Adults   *int   `json:"adults"`
	Children *int   `json:"children"`
	Comment  string `json:"comment"`
}

func (b RegisterRequest) headcount() (adults, children int) {
	adults, children = 1, 0
	if b.Adults != nil {
		adults = *b.Adults
	}
	if b.Children != nil {
		children = *b.Children
	}
	return adults, children
}

// Register accepts guest details or a bearer token. ?onsite=1 marks a walk-up
// registration from the venue QR code.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "Register", "Invalid event id", err)
		return
	}

	var body RegisterRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &body); err != nil {
			h.fail(w, "Register", "Invalid request body", err)
			return
		}
	}

	contact := body.Whatsapp
	if contact == "" {
		contact = body.Contact
	}
	req := identity.Request{
		Name:             body.Name,
		Contact:          contact,
		SecondaryContact: body.UkPhone,
		OnSite:           r.URL.Query().Get("onsite") == "1",
	}
	if actor, ok := auth.ActorFromContext(r.Context()); ok {
		userID := actor.UserID
		req.UserID = &userID
	}
	adults, children := body.headcount()
	h.Logger.Info("API", fmt.Sprintf("Register: eventId=%d onsite=%t authenticated=%t", eventID, req.OnSite, req.UserID != nil))

	reg, err := h.AttendanceService.Register(r.Context(), eventID, req, adults, children, body.Comment)
	if err != nil {
		h.fail(w, "Register", "Registration failed", err)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, "Registered", reg)
}

func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "ListRegistrations", "Invalid event id", err)
		return
	}

	list, err := h.AttendanceService.ListForEvent(r.Context(), actor, eventID)
	if err != nil {
		h.fail(w, "ListRegistrations", "Failed to list registrations", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Registrations", list)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "Summary", "Invalid event id", err)
		return
	}

	summary, err := h.AttendanceService.Summary(r.Context(), eventID)
	if err != nil {
		h.fail(w, "Summary", "Failed to load attendance", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Attendance", summary)
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.RespondError(w, message, err)
}
