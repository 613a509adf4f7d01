package task_api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-community/internal/apperrors"
	"ms-community/internal/auth"
	"ms-community/internal/identity"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	tasks "ms-community/internal/tasks/service"
	"ms-community/internal/utils"
)

type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) Create(ctx context.Context, actor models.Actor, in models.TaskInput) (*models.Task, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) Update(ctx context.Context, actor models.Actor, taskID int64, in models.TaskInput) (*models.Task, error) {
	args := m.Called(ctx, actor, taskID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) Delete(ctx context.Context, actor models.Actor, taskID int64) error {
	return m.Called(ctx, actor, taskID).Error(0)
}

func (m *MockTaskService) Get(ctx context.Context, taskID int64) (*models.Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) List(ctx context.Context, actor models.Actor, eventID int64) ([]models.Task, error) {
	args := m.Called(ctx, actor, eventID)
	return args.Get(0).([]models.Task), args.Error(1)
}

func (m *MockTaskService) ListPublic(ctx context.Context, eventID int64) ([]models.Task, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]models.Task), args.Error(1)
}

func (m *MockTaskService) SignUp(ctx context.Context, taskID int64, req identity.Request, comment string) (*tasks.SignupResult, error) {
	args := m.Called(ctx, taskID, req, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tasks.SignupResult), args.Error(1)
}

var organizer = models.Actor{UserID: 4, Role: models.RoleOrganizer}

func router(h *Handler, actor *models.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != nil {
				req = req.WithContext(auth.WithActor(req.Context(), *actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/api/tasks", h.CreateTask)
	r.Put("/api/tasks/{id}", h.UpdateTask)
	r.Delete("/api/tasks/{id}", h.DeleteTask)
	r.Get("/api/tasks/{id}/capacity", h.GetCapacity)
	r.Post("/api/tasks/{id}/signup", h.SignUp)
	r.Get("/api/events/{id}/tasks", h.ListEventTasks)
	r.Get("/api/events/{id}/tasks/public", h.ListPublicTasks)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	var resp utils.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateTaskHandler(t *testing.T) {
	svc := new(MockTaskService)
	h := NewHandler(svc, logger.NewWithWriter(io.Discard))

	in := models.TaskInput{EventID: 3, Title: "Setup", RequiredVolunteers: 2}
	svc.On("Create", mock.Anything, organizer, in).Return(&models.Task{TaskID: 9, EventID: 3, Title: "Setup", RequiredVolunteers: 2}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"event_id":3,"title":"Setup","required_volunteers":2}`))
	router(h, &organizer).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	svc.AssertExpectations(t)
}

func TestCreateTaskHandlerMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"validation", apperrors.Validation("title is required"), http.StatusBadRequest, apperrors.CodeValidation},
		{"not found", apperrors.NotFound("event 3"), http.StatusNotFound, apperrors.CodeNotFound},
		{"forbidden", apperrors.Forbidden("not yours"), http.StatusForbidden, apperrors.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTaskService)
			svc.On("Create", mock.Anything, organizer, mock.Anything).Return(nil, tt.err)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"event_id":3}`))
			router(NewHandler(svc, logger.NewWithWriter(io.Discard)), &organizer).ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.kind, decode(t, rec).Code)
		})
	}
}

func TestCreateTaskHandlerBadJSON(t *testing.T) {
	svc := new(MockTaskService)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"event_id":`))
	router(NewHandler(svc, logger.NewWithWriter(io.Discard)), &organizer).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignUpHandlerGuest(t *testing.T) {
	svc := new(MockTaskService)
	want := identity.Request{Name: "Ola", Contact: "+447700900222", SecondaryContact: "07700900222"}
	svc.On("SignUp", mock.Anything, int64(12), want, "after 5pm").
		Return(&tasks.SignupResult{Signup: &models.VolunteerSignup{SignupID: 1, TaskID: 12}, Capacity: models.NewTaskCapacity(12, 3, 2, 1)}, nil)

	rec := httptest.NewRecorder()
	body := `{"name":"Ola","whatsapp":"+447700900222","uk_phone":"07700900222","comment":"after 5pm"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/12/signup", strings.NewReader(body))
	router(NewHandler(svc, logger.NewWithWriter(io.Discard)), nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestSignUpHandlerAuthenticatedNeedsNoBody(t *testing.T) {
	svc := new(MockTaskService)
	volunteer := models.Actor{UserID: 21, Role: models.RoleUser}
	userID := int64(21)
	svc.On("SignUp", mock.Anything, int64(12), identity.Request{UserID: &userID}, "").
		Return(&tasks.SignupResult{Signup: &models.VolunteerSignup{SignupID: 2, TaskID: 12, UserID: &userID}}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/12/signup", nil)
	router(NewHandler(svc, logger.NewWithWriter(io.Discard)), &volunteer).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestSignUpHandlerTaskFull(t *testing.T) {
	svc := new(MockTaskService)
	svc.On("SignUp", mock.Anything, int64(5), mock.Anything, "").Return(nil, apperrors.TaskFull(5, 2))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/5/signup", strings.NewReader(`{"name":"A","whatsapp":"+44"}`))
	router(NewHandler(svc, logger.NewWithWriter(io.Discard)), nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperrors.CodeTaskFull, decode(t, rec).Code)
}

func TestInvalidIDParam(t *testing.T) {
	svc := new(MockTaskService)
	rec := httptest.NewRecorder()
	router(NewHandler(svc, logger.NewWithWriter(io.Discard)), &organizer).
		ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/tasks/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCapacityHandler(t *testing.T) {
	svc := new(MockTaskService)
	svc.On("Get", mock.Anything, int64(8)).Return(&models.Task{TaskID: 8, EventID: 2, RequiredVolunteers: 3, SignedUpVolunteers: 3}, nil)

	rec := httptest.NewRecorder()
	router(NewHandler(svc, logger.NewWithWriter(io.Discard)), nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/8/capacity", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data models.TaskCapacity `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Data.IsFull)
	assert.Equal(t, 3, resp.Data.SignedUpVolunteers)
}

func TestListPublicTasksHandler(t *testing.T) {
	svc := new(MockTaskService)
	svc.On("ListPublic", mock.Anything, int64(2)).Return([]models.Task{{TaskID: 1, EventID: 2}}, nil)

	rec := httptest.NewRecorder()
	router(NewHandler(svc, logger.NewWithWriter(io.Discard)), nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/2/tasks/public", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
