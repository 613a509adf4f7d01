package task_api

import (
	"context"
	"fmt"
	"net/http"

	"ms-community/internal/auth"
	"ms-community/internal/identity"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	tasks "ms-community/internal/tasks/service"
	"ms-community/internal/utils"
)

// TaskService is the part of tasks.TaskService the handlers call.
type TaskService interface {
	Create(ctx context.Context, actor models.Actor, in models.TaskInput) (*models.Task, error)
	Update(ctx context.Context, actor models.Actor, taskID int64, in models.TaskInput) (*models.Task, error)
	Delete(ctx context.Context, actor models.Actor, taskID int64) error
	Get(ctx context.Context, taskID int64) (*models.Task, error)
	List(ctx context.Context, actor models.Actor, eventID int64) ([]models.Task, error)
	ListPublic(ctx context.Context, eventID int64) ([]models.Task, error)
	SignUp(ctx context.Context, taskID int64, req identity.Request, comment string) (*tasks.SignupResult, error)
}

type Handler struct {
	TaskService TaskService
	Logger      *logger.Logger
}

func NewHandler(taskService TaskService, log *logger.Logger) *Handler {
	return &Handler{TaskService: taskService, Logger: log}
}

// SignupRequest is the guest sign-up body. Authenticated callers may send an
// empty body.
type SignupRequest struct {
	Name     string `json:"name"`
	Whatsapp string `json:"whatsapp"`
	UkPhone  string `json:"uk_phone"`
	Comment  string `json:"comment"`
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CreateTask: actor=%d", actor.UserID))

	var in models.TaskInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateTask", "Invalid request body", err)
		return
	}

	task, err := h.TaskService.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "CreateTask", "Failed to create task", err)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, "Task created", task)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	taskID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "UpdateTask", "Invalid task id", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UpdateTask: taskId=%d actor=%d", taskID, actor.UserID))

	var in models.TaskInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "UpdateTask", "Invalid request body", err)
		return
	}

	task, err := h.TaskService.Update(r.Context(), actor, taskID, in)
	if err != nil {
		h.fail(w, "UpdateTask", "Failed to update task", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Task updated", task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	taskID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "DeleteTask", "Invalid task id", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("DeleteTask: taskId=%d actor=%d", taskID, actor.UserID))

	if err := h.TaskService.Delete(r.Context(), actor, taskID); err != nil {
		h.fail(w, "DeleteTask", "Failed to delete task", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Task deleted", nil)
}

func (h *Handler) ListEventTasks(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "ListEventTasks", "Invalid event id", err)
		return
	}

	list, err := h.TaskService.List(r.Context(), actor, eventID)
	if err != nil {
		h.fail(w, "ListEventTasks", "Failed to list tasks", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Tasks", list)
}

func (h *Handler) ListPublicTasks(w http.ResponseWriter, r *http.Request) {
	eventID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "ListPublicTasks", "Invalid event id", err)
		return
	}

	list, err := h.TaskService.ListPublic(r.Context(), eventID)
	if err != nil {
		h.fail(w, "ListPublicTasks", "Failed to list tasks", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Tasks", list)
}

func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	taskID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "GetCapacity", "Invalid task id", err)
		return
	}

	task, err := h.TaskService.Get(r.Context(), taskID)
	if err != nil {
		h.fail(w, "GetCapacity", "Failed to load task", err)
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Capacity",
		models.NewTaskCapacity(task.TaskID, task.EventID, task.RequiredVolunteers, task.SignedUpVolunteers))
}

// SignUp accepts a guest body or, with a bearer token, the caller's own
// account.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	taskID, err := utils.IDParam(r, "id")
	if err != nil {
		h.fail(w, "SignUp", "Invalid task id", err)
		return
	}

	var body SignupRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &body); err != nil {
			h.fail(w, "SignUp", "Invalid request body", err)
			return
		}
	}

	req := identity.Request{Name: body.Name, Contact: body.Whatsapp, SecondaryContact: body.UkPhone}
	if actor, ok := auth.ActorFromContext(r.Context()); ok {
		userID := actor.UserID
		req.UserID = &userID
	}
	h.Logger.Info("API", fmt.Sprintf("SignUp: taskId=%d authenticated=%t", taskID, req.UserID != nil))

	result, err := h.TaskService.SignUp(r.Context(), taskID, req, body.Comment)
	if err != nil {
		h.fail(w, "SignUp", "Sign-up failed", err)
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, "Signed up", result)
}

func (h *Handler) fail(w http.ResponseWriter, op, message string, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	utils.RespondError(w, message, err)
}
