package sse

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-community/internal/logger"
	"ms-community/internal/models"
)

func TestEmitterFanOutPerEvent(t *testing.T) {
	e := NewCapacityEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := e.Subscribe(ctx, 1)
	b := e.Subscribe(ctx, 1)
	other := e.Subscribe(ctx, 2)
	assert.Equal(t, 2, e.ClientCount(1))

	e.Emit(models.NewTaskCapacity(10, 1, 3, 1))

	for _, ch := range []<-chan models.TaskCapacity{a, b} {
		select {
		case c := <-ch:
			assert.Equal(t, int64(10), c.TaskID)
			assert.Equal(t, 1, c.SignedUpVolunteers)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive frame")
		}
	}

	select {
	case <-other:
		t.Fatal("frame leaked to another event")
	default:
	}
}

func TestEmitterDropsFramesForSlowClients(t *testing.T) {
	e := NewCapacityEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.Subscribe(ctx, 1)
	for i := 0; i < clientBuffer+5; i++ {
		e.Emit(models.NewTaskCapacity(10, 1, 50, i))
	}
	assert.Len(t, ch, clientBuffer)
}

func TestEmitterRemovesClientOnCancel(t *testing.T) {
	e := NewCapacityEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	ch := e.Subscribe(ctx, 7)
	cancel()

	assert.Eventually(t, func() bool { return e.ClientCount(7) == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}

type stubSnapshot struct{ caps []models.TaskCapacity }

func (s stubSnapshot) ForEvent(context.Context, int64) ([]models.TaskCapacity, error) {
	return s.caps, nil
}

type stubEvents map[int64]bool

func (s stubEvents) IsPublished(_ context.Context, id int64) (bool, error) { return s[id], nil }

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/events/{id}/tasks/stream", h.StreamTaskCapacity)
	return r
}

func TestStreamTaskCapacity(t *testing.T) {
	emitter := NewCapacityEmitter()
	h := NewHandler(emitter, stubSnapshot{caps: []models.TaskCapacity{models.NewTaskCapacity(3, 1, 2, 0)}},
		stubEvents{1: true}, logger.NewWithWriter(io.Discard))

	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events/1/tasks/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") && !strings.Contains(line, "connected") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.JSONEq(t, `{"task_id":3,"event_id":1,"required_volunteers":2,"signed_up_volunteers":0,"is_full":false}`, readData())

	require.Eventually(t, func() bool { return emitter.ClientCount(1) == 1 }, time.Second, 5*time.Millisecond)
	emitter.Emit(models.NewTaskCapacity(3, 1, 2, 2))
	assert.JSONEq(t, `{"task_id":3,"event_id":1,"required_volunteers":2,"signed_up_volunteers":2,"is_full":true}`, readData())
}

func TestStreamTaskCapacityUnpublished(t *testing.T) {
	h := NewHandler(NewCapacityEmitter(), stubSnapshot{}, stubEvents{}, logger.NewWithWriter(io.Discard))

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/9/tasks/stream", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
