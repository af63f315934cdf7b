package devserver

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/skald/internal/event"
)

func recv(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return ""
}

func TestSubscribeHello(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	s := recv(t, ch)
	if !strings.Contains(s, "event: connected") {
		t.Errorf("missing hello event type in %q", s)
	}
	if !strings.Contains(s, "session_id") {
		t.Errorf("missing session id in %q", s)
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	recv(t, ch) // hello

	b.Publish(event.KindNoteUpdated, event.Payload{NoteUUID: "note-1", Title: "Today"})

	s := recv(t, ch)
	if !strings.Contains(s, "event: note_updated") {
		t.Errorf("missing event type in %q", s)
	}
	if !strings.Contains(s, `"note_uuid":"note-1"`) {
		t.Errorf("missing payload in %q", s)
	}
	if !strings.HasSuffix(s, "\n\n") {
		t.Errorf("frame not terminated by blank line: %q", s)
	}
}

func TestHeartbeat(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	recv(t, ch) // hello

	s := recv(t, ch)
	if s != ": ping\n\n" {
		t.Errorf("expected heartbeat comment, got %q", s)
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBroker(time.Minute)
	ch := b.Subscribe()
	recv(t, ch) // hello

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}

	// Publishing after Close must not panic or block.
	b.Publish(event.KindNoteUpdated, event.Payload{NoteUUID: "x"})
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()

	ch := b.Subscribe()
	recv(t, ch) // hello
	b.Unsubscribe(ch)

	for range ch {
	}
	// Channel drained and closed; publish goes nowhere.
	b.Publish(event.KindTaskUpdated, event.Payload{TaskUUID: "t"})
}
