// Package hub implements the process-wide publish/subscribe channel with a
// closed set of named topics. Delivery is synchronous in-process fan-out to
// the subscribers registered at publish time; there are no other guarantees.
package hub

import (
	"sync"

	"github.com/starford/skald/internal/event"
)

// Topic names a hub channel.
type Topic string

const (
	TaskUpdated          Topic = "taskUpdated"
	TaskColumnUpdated    Topic = "taskColumnUpdated"
	FocusEditor          Topic = "focusEditor"
	SSENoteUpdated       Topic = "sseNoteUpdated"
	SSETaskUpdated       Topic = "sseTaskUpdated"
	SSETaskColumnUpdated Topic = "sseTaskColumnUpdated"
	AuthExpired          Topic = "authExpired"
)

// Handler receives a published payload.
type Handler func(event.Payload)

// Hub fans published payloads out to topic subscribers. One Hub is
// constructed per application instance and passed by reference.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[Topic]map[int]Handler
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[Topic]map[int]Handler)}
}

// Subscribe registers fn for a topic and returns an unsubscribe function.
// Unsubscribing twice is harmless.
func (h *Hub) Subscribe(t Topic, fn Handler) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.subs[t] == nil {
		h.subs[t] = make(map[int]Handler)
	}
	h.subs[t][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[t], id)
	}
}

// Publish delivers p to every current subscriber of t, synchronously, in
// the publisher's goroutine. Handlers are snapshotted under the lock so a
// handler may subscribe or unsubscribe without deadlocking.
func (h *Hub) Publish(t Topic, p event.Payload) {
	h.mu.Lock()
	handlers := make([]Handler, 0, len(h.subs[t]))
	for _, fn := range h.subs[t] {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(p)
	}
}
