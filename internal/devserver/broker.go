// Package devserver runs a self-contained fake daybook API with a live
// push-event endpoint. It exists for local development and integration
// tests of the sync layer: it speaks exactly the wire contract the client
// consumes, including the connected hello and comment heartbeats.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/skald/internal/event"
	"github.com/starford/skald/internal/session"
)

// Broker fans push events out to connected stream subscribers.
//
// Concurrency model: a single internal loop goroutine owns the subscriber
// set. Public methods talk to the loop through channels, so no mutexes are
// required.
type Broker struct {
	heartbeat time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan frame

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

type frame struct {
	kind    event.Kind
	payload event.Payload
}

// NewBroker creates a broker emitting `: ping` comments every heartbeat
// interval. A non-positive interval defaults to 15 seconds.
func NewBroker(heartbeat time.Duration) *Broker {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	b := &Broker{
		heartbeat:     heartbeat,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan frame, 256),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Subscriber buffer full; drop rather than block the loop.
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			// Hello frame so the client can confirm the link.
			send(ch, encodeFrame(event.KindConnected, event.Payload{SessionID: session.ID()}))

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case f := <-b.publishCh:
			raw := encodeFrame(f.kind, f.payload)
			for ch := range clients {
				send(ch, raw)
			}

		case <-ticker.C:
			for ch := range clients {
				send(ch, []byte(": ping\n\n"))
			}
		}
	}
}

func encodeFrame(kind event.Kind, p event.Payload) []byte {
	data, err := json.Marshal(p)
	if err != nil {
		data = []byte("{}")
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", kind, data))
}

// Publish broadcasts a push event to all subscribers.
func (b *Broker) Publish(kind event.Kind, p event.Payload) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- frame{kind: kind, payload: p}:
	case <-b.stopped:
	}
}

// Subscribe adds a stream subscriber and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// Close stops the loop and closes all subscriber channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// ServeHTTP is the push-event stream endpoint (GET /events/stream).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
