package stream

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/skald/internal/auth"
	"github.com/starford/skald/internal/event"
	"github.com/starford/skald/internal/hub"
	"github.com/starford/skald/internal/testutil"
)

func testTokens(t *testing.T, token string) *auth.TokenStore {
	t.Helper()
	return testutil.Tokens(t, token)
}

func testLogger() *slog.Logger {
	return testutil.Logger()
}

func TestBackoffDelaySequence(t *testing.T) {
	base := 1000 * time.Millisecond
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	for i, w := range want {
		if got := backoffDelay(base, i+1); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestRetryBudgetExhaustion(t *testing.T) {
	c := New("http://127.0.0.1:0/api/events/stream", testTokens(t, ""), hub.New(), testLogger(), time.Millisecond, 5)

	for i := 0; i < 5; i++ {
		c.handleDisconnect()
	}
	c.mu.Lock()
	attempts := c.attempts
	c.mu.Unlock()
	if attempts != 5 {
		t.Fatalf("attempts = %d, want 5", attempts)
	}

	// Sixth failure must not schedule another retry.
	c.handleDisconnect()
	c.mu.Lock()
	attempts = c.attempts
	c.mu.Unlock()
	if attempts != 5 {
		t.Errorf("attempts = %d after exhaustion, want 5", attempts)
	}

	c.ResetReconnect()
	c.mu.Lock()
	attempts = c.attempts
	c.mu.Unlock()
	if attempts != 0 {
		t.Errorf("attempts = %d after reset, want 0", attempts)
	}
}

func TestConnectWithoutTokenIsNoop(t *testing.T) {
	c := New("http://127.0.0.1:0/api/events/stream", testTokens(t, ""), hub.New(), testLogger(), time.Millisecond, 5)
	c.Connect()
	if c.Connected() {
		t.Error("client claims connected without a token")
	}
}

func TestConnectDeliversEventsAndHub(t *testing.T) {
	frames := "event: connected\ndata: {\"session_id\":\"srv\"}\n\n" +
		"event: note_updated\ndata: {\"note_uuid\":\"n1\"}\n\n" +
		"event: task_updated\ndata: {\"task_uuid\":\"t1\"}\n\n"

	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, frames)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	h := hub.New()
	c := New(srv.URL+"/api/events/stream", testTokens(t, "tok"), h, testLogger(), time.Millisecond, 5)

	noteCh := make(chan event.Payload, 1)
	c.On(event.KindNoteUpdated, func(p event.Payload) { noteCh <- p })

	hubCh := make(chan event.Payload, 1)
	h.Subscribe(hub.SSETaskUpdated, func(p event.Payload) { hubCh <- p })

	c.Connect()
	defer c.Disconnect()

	select {
	case p := <-noteCh:
		if p.NoteUUID != "n1" {
			t.Errorf("note_uuid = %q, want n1", p.NoteUUID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for note_updated handler")
	}

	select {
	case p := <-hubCh:
		if p.TaskUUID != "t1" {
			t.Errorf("task_uuid = %q, want t1", p.TaskUUID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for hub republish")
	}

	if got, _ := gotAuth.Load().(string); got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/events/stream", testTokens(t, "tok"), hub.New(), testLogger(), time.Millisecond, 5)
	c.Connect()
	c.Connect()
	c.Connect()
	defer c.Disconnect()

	time.Sleep(200 * time.Millisecond)
	if n := conns.Load(); n != 1 {
		t.Errorf("connections = %d, want 1", n)
	}
}

func TestMalformedPayloadKeepsConnection(t *testing.T) {
	frames := "event: note_updated\ndata: {not json\n\n" +
		"event: note_updated\ndata: {\"note_uuid\":\"good\"}\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, frames)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/events/stream", testTokens(t, "tok"), hub.New(), testLogger(), time.Millisecond, 5)
	ch := make(chan event.Payload, 2)
	c.On(event.KindNoteUpdated, func(p event.Payload) { ch <- p })

	c.Connect()
	defer c.Disconnect()

	select {
	case p := <-ch:
		if p.NoteUUID != "good" {
			t.Errorf("note_uuid = %q, want good (bad frame should be dropped)", p.NoteUUID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for surviving event")
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		// Close immediately so the client sees a stream end.
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/events/stream", testTokens(t, "tok"), hub.New(), testLogger(), time.Millisecond, 5)
	c.Connect()
	time.Sleep(50 * time.Millisecond)
	c.Disconnect()
	before := conns.Load()

	time.Sleep(200 * time.Millisecond)
	if after := conns.Load(); after != before {
		t.Errorf("connections grew from %d to %d after Disconnect", before, after)
	}
}

func TestReconnectAfterStreamEnd(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		if n >= 2 {
			<-r.Context().Done()
		}
		// First connection ends immediately to force a retry.
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/events/stream", testTokens(t, "tok"), hub.New(), testLogger(), time.Millisecond, 5)
	c.Connect()
	defer c.Disconnect()

	deadline := time.After(2 * time.Second)
	for conns.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("no reconnect observed, connections = %d", conns.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestReconnectCycleRestoresRetryBudget(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/events/stream", testTokens(t, "tok"), hub.New(), testLogger(), time.Millisecond, 5)
	defer c.Disconnect()

	// The reconnect cycle a config reload performs: tear down, clear the
	// budget, dial fresh. Disconnect exhausts the attempt counter, so the
	// reset has to land after it for backoff to survive a failed dial.
	c.Disconnect()
	c.ResetReconnect()
	c.Connect()

	deadline := time.After(2 * time.Second)
	for conns.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("backoff never retried against the down server, connections = %d", conns.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
