package tasks

import (
	"context"
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

type TaskDBLayer interface {
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	GetTaskByID(ctx context.Context, taskID int64) (*models.Task, error)
	CreateTask(ctx context.Context, task *models.Task) error
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, taskID int64) error
	ListTasks(ctx context.Context, eventID int64) ([]models.Task, error)
	ListPublicTasks(ctx context.Context, eventID int64) ([]models.Task, error)
	InsertSignup(ctx context.Context, signup *models.VolunteerSignup) error
	InsertSignupWithinCapacity(ctx context.Context, signup *models.VolunteerSignup) (bool, error)
}

type CapacityReader interface {
	ForTask(ctx context.Context, taskID int64) (models.TaskCapacity, error)
	Annotate(ctx context.Context, eventID int64, tasks []models.Task) error
	Invalidate(ctx context.Context, taskID int64)
}

type IdentityResolver interface {
	Resolve(ctx context.Context, req identity.Request) (identity.Identity, error)
}

// TaskLocker serializes enforced sign-ups on one task across instances.
type TaskLocker interface {
	WithTaskLock(ctx context.Context, taskID int64, fn func(ctx context.Context) error) error
}

type CapacityBroadcaster interface {
	Emit(c models.TaskCapacity)
}

type TaskService struct {
	DB        TaskDBLayer
	Capacity  CapacityReader
	Identity  IdentityResolver
	Locker    TaskLocker
	Publisher kafka.Publisher
	Emitter   CapacityBroadcaster
	Ownership policy.Ownership
	Policy    policy.Capacity
	Logger    *logger.Logger
}

// SignupCreated is published on every accepted sign-up.
type SignupCreated struct {
	SignupID int64               `json:"signup_id"`
	TaskID   int64               `json:"task_id"`
	EventID  int64               `json:"event_id"`
	UserID   *int64              `json:"user_id,omitempty"`
	Capacity models.TaskCapacity `json:"capacity"`
}

// SignupResult is what a volunteer gets back.
type SignupResult struct {
	Signup   *models.VolunteerSignup `json:"signup"`
	Capacity models.TaskCapacity     `json:"capacity"`
}

func NewTaskService(db TaskDBLayer, capacity CapacityReader, resolver IdentityResolver, log *logger.Logger) *TaskService {
	return &TaskService{
		DB:        db,
		Capacity:  capacity,
		Identity:  resolver,
		Publisher: kafka.NopPublisher{},
		Ownership: policy.OwnerOrAdmin,
		Policy:    policy.Unbounded,
		Logger:    log,
	}
}

func (s *TaskService) Create(ctx context.Context, actor models.Actor, in models.TaskInput) (*models.Task, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	status := models.TaskStatusOpen
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, apperrors.Validation("unknown task status %q", in.Status)
		}
		status = in.Status
	}

	if _, err := s.authorizedEvent(ctx, actor, in.EventID); err != nil {
		return nil, err
	}

	task := &models.Task{
		EventID:            in.EventID,
		Title:              in.Title,
		Description:        in.Description,
		RequiredVolunteers: in.RequiredVolunteers,
		DeadlineTime:       in.DeadlineTime,
		Status:             status,
	}
	if err := s.DB.CreateTask(ctx, task); err != nil {
		s.Logger.Error("TASK", fmt.Sprintf("Failed to create task on event %d: %v", in.EventID, err))
		return nil, err
	}
	task.WithCapacity(models.NewTaskCapacity(task.TaskID, task.EventID, task.RequiredVolunteers, 0))

	s.Logger.LogTask("CREATE", task.TaskID, fmt.Sprintf("event %d, %q needs %d", task.EventID, task.Title, task.RequiredVolunteers))
	return task, nil
}

// Update replaces title, description, required headcount and deadline. The
// status label and the parent event never change.
func (s *TaskService) Update(ctx context.Context, actor models.Actor, taskID int64, in models.TaskInput) (*models.Task, error) {
	task, err := s.DB.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	in.EventID = task.EventID
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if _, err := s.authorizedEvent(ctx, actor, task.EventID); err != nil {
		return nil, err
	}

	task.Title = in.Title
	task.Description = in.Description
	task.RequiredVolunteers = in.RequiredVolunteers
	task.DeadlineTime = in.DeadlineTime
	if err := s.DB.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	c, err := s.Capacity.ForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.WithCapacity(c)

	s.Logger.LogTask("UPDATE", taskID, fmt.Sprintf("now needs %d", task.RequiredVolunteers))
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, actor models.Actor, taskID int64) error {
	task, err := s.DB.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := s.authorizedEvent(ctx, actor, task.EventID); err != nil {
		return err
	}
	if err := s.DB.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.Capacity.Invalidate(ctx, taskID)

	s.Logger.LogTask("DELETE", taskID, fmt.Sprintf("removed from event %d", task.EventID))
	return nil
}

func (s *TaskService) Get(ctx context.Context, taskID int64) (*models.Task, error) {
	task, err := s.DB.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	c, err := s.Capacity.ForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.WithCapacity(c)
	return task, nil
}

// List is the organizer view of an event's tasks with live capacity.
func (s *TaskService) List(ctx context.Context, actor models.Actor, eventID int64) ([]models.Task, error) {
	if !actor.IsOrganizerClass() {
		return nil, apperrors.Forbidden("role %q may not list organizer tasks", actor.Role)
	}
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.annotated(ctx, eventID, s.DB.ListTasks)
}

// ListPublic lists the tasks of a published event. Unpublished events look
// missing.
func (s *TaskService) ListPublic(ctx context.Context, eventID int64) ([]models.Task, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsPublished {
		return nil, apperrors.NotFound("event %d", eventID)
	}
	return s.annotated(ctx, eventID, s.DB.ListPublicTasks)
}

// ListTemplate returns an event's tasks without capacity, in listing order.
func (s *TaskService) ListTemplate(ctx context.Context, eventID int64) ([]models.Task, error) {
	return s.DB.ListTasks(ctx, eventID)
}

func (s *TaskService) annotated(ctx context.Context, eventID int64, list func(context.Context, int64) ([]models.Task, error)) ([]models.Task, error) {
	tasks, err := list(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.Capacity.Annotate(ctx, eventID, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SignUp records a volunteer on a task. Under the unbounded policy the insert
// always happens; under the enforced policy a full task fails with ErrTaskFull.
func (s *TaskService) SignUp(ctx context.Context, taskID int64, req identity.Request, comment string) (*SignupResult, error) {
	task, err := s.DB.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	// On-site placeholders only apply to attendance.
	req.OnSite = false
	id, err := s.Identity.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	signup := &models.VolunteerSignup{
		TaskID:    taskID,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}
	identity.ApplyToSignup(id, signup)

	switch s.Policy {
	case policy.Enforced:
		err = s.signUpEnforced(ctx, task, signup)
	default:
		err = s.DB.InsertSignup(ctx, signup)
	}
	if err != nil {
		s.Logger.Warn("SIGNUP", fmt.Sprintf("Sign-up on task %d by %s refused: %v", taskID, id, err))
		return nil, err
	}

	s.Capacity.Invalidate(ctx, taskID)
	c, err := s.Capacity.ForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if c.SignedUpVolunteers > c.RequiredVolunteers {
		s.Logger.Warn("SIGNUP", fmt.Sprintf("Task %d is over-subscribed: %d of %d", taskID, c.SignedUpVolunteers, c.RequiredVolunteers))
	}

	if s.Emitter != nil {
		s.Emitter.Emit(c)
	}
	s.publish(ctx, kafka.TopicSignupCreated, taskID, SignupCreated{
		SignupID: signup.SignupID,
		TaskID:   taskID,
		EventID:  task.EventID,
		UserID:   signup.UserID,
		Capacity: c,
	})

	s.Logger.Info("SIGNUP", fmt.Sprintf("Signup %d on task %d by %s (%d/%d)", signup.SignupID, taskID, id, c.SignedUpVolunteers, c.RequiredVolunteers))
	return &SignupResult{Signup: signup, Capacity: c}, nil
}

func (s *TaskService) signUpEnforced(ctx context.Context, task *models.Task, signup *models.VolunteerSignup) error {
	insert := func(ctx context.Context) error {
		inserted, err := s.DB.InsertSignupWithinCapacity(ctx, signup)
		if err != nil {
			return err
		}
		if !inserted {
			return apperrors.TaskFull(task.TaskID, task.RequiredVolunteers)
		}
		return nil
	}
	if s.Locker == nil {
		return insert(ctx)
	}
	return s.Locker.WithTaskLock(ctx, task.TaskID, insert)
}

func (s *TaskService) authorizedEvent(ctx context.Context, actor models.Actor, eventID int64) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.Ownership.Authorize(actor, event); err != nil {
		s.Logger.LogSecurity("FORBIDDEN", err.Error())
		return nil, err
	}
	return event, nil
}

func (s *TaskService) publish(ctx context.Context, topic string, taskID int64, payload interface{}) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, topic, fmt.Sprint(taskID), payload); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for task %d: %v", topic, taskID, err))
	}
}

func validateInput(in *models.TaskInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.EventID <= 0 {
		return apperrors.Validation("event_id is required")
	}
	if in.Title == "" {
		return apperrors.Validation("title is required")
	}
	if in.RequiredVolunteers <= 0 {
		return apperrors.Validation("required_volunteers must be a positive integer, got %d", in.RequiredVolunteers)
	}
	return nil
}
