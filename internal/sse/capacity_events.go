package sse

import (
	"context"
	"sync"

	"ms-community/internal/models"
)

const clientBuffer = 10

// CapacityEmitter fans task capacity updates out to the stream clients of each
// event.
type CapacityEmitter struct {
	// key: eventID, value: client channels
	clients map[int64][]chan models.TaskCapacity
	mu      sync.RWMutex
}

func NewCapacityEmitter() *CapacityEmitter {
	return &CapacityEmitter{
		clients: make(map[int64][]chan models.TaskCapacity),
	}
}

// Subscribe registers a client for an event. The channel is closed once ctx is
// done.
func (e *CapacityEmitter) Subscribe(ctx context.Context, eventID int64) <-chan models.TaskCapacity {
	clientChan := make(chan models.TaskCapacity, clientBuffer)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts one task's capacity to its event's clients.
func (e *CapacityEmitter) Emit(c models.TaskCapacity) {
	// Send while holding the read lock so remove cannot close a channel mid-send.
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[c.EventID] {
		// Non-blocking: a slow client misses frames instead of stalling sign-ups.
		select {
		case clientChan <- c:
		default:
		}
	}
}

func (e *CapacityEmitter) remove(eventID int64, clientChan chan models.TaskCapacity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

// ClientCount returns the number of clients currently subscribed to an event
func (e *CapacityEmitter) ClientCount(eventID int64) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
