package hub

import (
	"testing"

	"github.com/starford/skald/internal/event"
)

func TestPublishReachesSubscribers(t *testing.T) {
	h := New()

	var got []string
	h.Subscribe(TaskUpdated, func(p event.Payload) {
		got = append(got, p.TaskName)
	})
	h.Subscribe(TaskUpdated, func(p event.Payload) {
		got = append(got, p.TaskName)
	})

	h.Publish(TaskUpdated, event.Payload{TaskName: "buy milk"})

	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	h := New()

	calls := 0
	h.Subscribe(FocusEditor, func(event.Payload) { calls++ })

	h.Publish(SSENoteUpdated, event.Payload{NoteUUID: "n1"})
	if calls != 0 {
		t.Errorf("focusEditor handler fired for sseNoteUpdated")
	}
	h.Publish(FocusEditor, event.Payload{})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestUnsubscribe(t *testing.T) {
	h := New()

	calls := 0
	cancel := h.Subscribe(SSETaskUpdated, func(event.Payload) { calls++ })

	h.Publish(SSETaskUpdated, event.Payload{})
	cancel()
	cancel() // second call is a no-op
	h.Publish(SSETaskUpdated, event.Payload{})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHandlerMaySubscribeDuringPublish(t *testing.T) {
	h := New()

	late := 0
	h.Subscribe(TaskColumnUpdated, func(event.Payload) {
		h.Subscribe(TaskColumnUpdated, func(event.Payload) { late++ })
	})

	// Must not deadlock; the new handler sees only later publishes.
	h.Publish(TaskColumnUpdated, event.Payload{})
	if late != 0 {
		t.Errorf("late handler fired on the publish that registered it")
	}
	h.Publish(TaskColumnUpdated, event.Payload{})
	if late != 1 {
		t.Errorf("late = %d, want 1", late)
	}
}
