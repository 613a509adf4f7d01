package recurrence_api

import (
	"context"
	"encoding/json"
	"fmt"
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
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/recurrence"
	"ms-community/internal/utils"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, actor models.Actor, req recurrence.Request) (*recurrence.Result, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurrence.Result), args.Error(1)
}

var organizer = models.Actor{UserID: 4, Role: models.RoleOrganizer}

func serve(gen Generator, req *http.Request) *httptest.ResponseRecorder {
	h := NewHandler(gen, logger.NewWithWriter(io.Discard))
	r := chi.NewRouter()
	r.Post("/api/events/{id}/recurrence", h.Generate)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(auth.WithActor(req.Context(), organizer)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	var resp utils.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGenerateCreated(t *testing.T) {
	gen := new(MockGenerator)
	want := recurrence.Request{SourceEventID: 8, Unit: recurrence.Week, Interval: 1, Count: 4}
	gen.On("Generate", mock.Anything, organizer, want).Return(&recurrence.Result{RunID: "r1", Created: 4}, nil)

	body := `{"interval_unit":"week","interval_value":1,"repeat_count":4}`
	rec := serve(gen, httptest.NewRequest(http.MethodPost, "/api/events/8/recurrence", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	gen.AssertExpectations(t)
}

func TestGenerateIdempotencyKeyFromHeader(t *testing.T) {
	gen := new(MockGenerator)
	want := recurrence.Request{SourceEventID: 8, Unit: recurrence.Month, Interval: 2, Count: 3, IdempotencyKey: "abc"}
	gen.On("Generate", mock.Anything, organizer, want).Return(&recurrence.Result{RunID: "r1", Replayed: 3}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/events/8/recurrence", strings.NewReader(`{"interval_unit":"months","interval_value":2,"repeat_count":3}`))
	req.Header.Set("Idempotency-Key", "abc")
	rec := serve(gen, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	gen.AssertExpectations(t)
}

func TestGeneratePartialFailureIsMultiStatus(t *testing.T) {
	gen := new(MockGenerator)
	result := &recurrence.Result{RunID: "r2", Count: 5, Created: 2, Failed: 3}
	gen.On("Generate", mock.Anything, organizer, mock.Anything).
		Return(result, fmt.Errorf("%w: 3 of 5 iterations failed, 0 skipped", apperrors.ErrPartialFailure))

	rec := serve(gen, httptest.NewRequest(http.MethodPost, "/api/events/8/recurrence", strings.NewReader(`{"interval_unit":"day","interval_value":1,"repeat_count":5}`)))

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, apperrors.CodePartialFailure, resp.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["created"])
}

func TestGenerateRejectsUnknownUnit(t *testing.T) {
	gen := new(MockGenerator)
	rec := serve(gen, httptest.NewRequest(http.MethodPost, "/api/events/8/recurrence", strings.NewReader(`{"interval_unit":"year","interval_value":1,"repeat_count":1}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateMapsErrors(t *testing.T) {
	for _, tt := range []struct {
		err  error
		code int
	}{
		{apperrors.Validation("interval must be a positive integer"), http.StatusBadRequest},
		{apperrors.Forbidden("not yours"), http.StatusForbidden},
		{apperrors.Conflict("run in progress"), http.StatusConflict},
	} {
		gen := new(MockGenerator)
		gen.On("Generate", mock.Anything, organizer, mock.Anything).Return(nil, tt.err)
		rec := serve(gen, httptest.NewRequest(http.MethodPost, "/api/events/8/recurrence", strings.NewReader(`{"interval_unit":"day","interval_value":0,"repeat_count":1}`)))
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
	}
}
