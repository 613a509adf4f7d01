package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-community/internal/auth"
	"ms-community/internal/config"
	"ms-community/internal/kafka"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/testutil"
	"ms-community/internal/utils"
)

const testSecret = "router-secret"

type fixture struct {
	app       *App
	db        *bun.DB
	server    *httptest.Server
	publisher *kafka.MemoryPublisher
	organizer *models.User
}

func setup(t *testing.T) *fixture {
	t.Setenv("JWT_SECRET", testSecret)
	cfg := config.Load()
	require.NoError(t, cfg.Validate())

	db := testutil.NewDB(t)
	publisher := &kafka.MemoryPublisher{}
	app := NewApp(Deps{
		DB:        db,
		Publisher: publisher,
		Verifier:  auth.NewHMACVerifier(testSecret),
		Config:    cfg,
		Logger:    logger.NewWithWriter(io.Discard),
	})
	srv := httptest.NewServer(app.Router())
	t.Cleanup(srv.Close)

	return &fixture{
		app:       app,
		db:        db,
		server:    srv,
		publisher: publisher,
		organizer: testutil.SeedUser(t, db, "Olive", models.RoleOrganizer),
	}
}

func (f *fixture) token(t *testing.T, actor models.Actor) string {
	token, err := auth.IssueToken(testSecret, actor, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, utils.APIResponse) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, payload)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var resp utils.APIResponse
	if res.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	}
	return res, resp
}

func dataID(t *testing.T, resp utils.APIResponse, field string) int64 {
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "unexpected data %T", resp.Data)
	id, ok := data[field].(float64)
	require.True(t, ok, "missing %s", field)
	return int64(id)
}

func TestHealthz(t *testing.T) {
	f := setup(t)

	res, resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, res.Header.Get("Content-Type"))
}

func TestCORSPreflight(t *testing.T) {
	f := setup(t)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, "http://localhost:5173", res.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://elsewhere.example")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestOrganizerRoutesRequireToken(t *testing.T) {
	f := setup(t)

	res, resp := f.do(t, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", resp.Code)

	userToken := f.token(t, models.Actor{UserID: 99, Role: models.RoleUser})
	res, _ = f.do(t, http.MethodGet, "/api/stats/global", userToken, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = f.do(t, http.MethodPost, "/api/tasks", userToken, models.TaskInput{EventID: 1, Title: "x", RequiredVolunteers: 1})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestEventLifecycleOverHTTP(t *testing.T) {
	f := setup(t)
	token := f.token(t, models.Actor{UserID: f.organizer.UserID, Role: models.RoleOrganizer})
	start := time.Date(2026, 11, 7, 10, 0, 0, 0, time.UTC)

	res, resp := f.do(t, http.MethodPost, "/api/events", token, models.EventInput{
		Title:         "Park clean-up",
		StartDatetime: start,
		LocationName:  "Riverside",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	eventID := dataID(t, resp, "event_id")

	res, resp = f.do(t, http.MethodPost, "/api/tasks", token, models.TaskInput{
		EventID:            eventID,
		Title:              "Litter pickers",
		RequiredVolunteers: 2,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	taskID := dataID(t, resp, "task_id")

	res, _ = f.do(t, http.MethodGet, "/api/events/public", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/signup", taskID), "", map[string]string{
		"name":     "Grace",
		"whatsapp": "+447700900123",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, resp.Error)

	res, resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d/capacity", taskID), "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	capacity := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, capacity["signed_up_volunteers"])
	assert.Equal(t, false, capacity["is_full"])

	res, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/events/%d/register", eventID), "", map[string]interface{}{
		"name":     "Alan",
		"whatsapp": "+447700900456",
		"adults":   2,
		"children": 1,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res, resp = f.do(t, http.MethodGet, fmt.Sprintf("/api/events/%d/attendance/summary", eventID), "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	summary := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 3, summary["total"])

	res, resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/events/%d/recurrence", eventID), token, map[string]interface{}{
		"interval_unit":  "week",
		"interval_value": 1,
		"repeat_count":   2,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, resp.Error)

	res, _ = f.do(t, http.MethodGet, "/api/events", token, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 3, testutil.Count(t, f.db, (*models.Event)(nil), ""))
}
