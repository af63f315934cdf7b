// Package stream maintains the long-lived push-event connection to the
// daybook server. It parses the text/event-stream wire format, dispatches
// typed events to registered handlers and the process-wide hub, and
// survives transient disconnects with exponential backoff.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/starford/skald/internal/auth"
	"github.com/starford/skald/internal/event"
	"github.com/starford/skald/internal/hub"
)

// Defaults for the reconnect policy.
const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5
)

// Handler receives a parsed push event.
type Handler func(event.Payload)

// Client is the push-event stream client. One logical connection exists at
// a time; Connect is idempotent while connected or connecting.
type Client struct {
	url    string
	tokens *auth.TokenStore
	hub    *hub.Hub
	logger *slog.Logger
	httpc  *http.Client

	baseDelay   time.Duration
	maxAttempts int

	mu         sync.Mutex
	cancel     context.CancelFunc
	connecting bool
	attempts   int
	gen        int
	retryTimer *time.Timer
	nextID     int
	handlers   map[event.Kind]map[int]Handler
}

// New creates a stream client for the given stream URL. delay and
// maxAttempts fall back to the defaults when non-positive.
func New(url string, tokens *auth.TokenStore, h *hub.Hub, logger *slog.Logger, delay time.Duration, maxAttempts int) *Client {
	if delay <= 0 {
		delay = DefaultBaseDelay
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		url:         url,
		tokens:      tokens,
		hub:         h,
		logger:      logger,
		httpc:       &http.Client{},
		baseDelay:   delay,
		maxAttempts: maxAttempts,
		handlers:    make(map[event.Kind]map[int]Handler),
	}
}

// On registers a handler for an event kind and returns an unregister
// function.
func (c *Client) On(kind event.Kind, fn Handler) (off func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.handlers[kind] == nil {
		c.handlers[kind] = make(map[int]Handler)
	}
	c.handlers[kind][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[kind], id)
	}
}

// Connect opens the stream connection. It is a no-op while a connection or
// connection attempt is in flight, and a logged no-op when no auth token is
// stored.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.cancel != nil || c.connecting {
		c.mu.Unlock()
		return
	}
	token := c.tokens.Token()
	if token == "" {
		c.mu.Unlock()
		c.logger.Warn("stream: no auth token, skipping connection")
		return
	}
	c.connecting = true
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	gen := c.gen
	c.mu.Unlock()

	go c.run(ctx, token, gen)
}

// Disconnect aborts any in-flight request and exhausts the retry budget so
// no automatic reconnect fires. Idempotent; a later explicit Connect (after
// ResetReconnect) resumes service.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.connecting = false
	c.attempts = c.maxAttempts
	// Invalidate any goroutine still running for the old connection so it
	// cannot reset the counter or schedule a retry after this point.
	c.gen++
	c.logger.Info("stream: disconnected")
}

// ResetReconnect clears the attempt counter so a client whose retry budget
// is exhausted can connect again. Called after a fresh login.
func (c *Client) ResetReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = 0
}

// Connected reports whether a connection or connection attempt is active.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil || c.connecting
}

func (c *Client) run(ctx context.Context, token string, gen int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.logger.Error("stream: build request failed", slog.String("error", err.Error()))
		c.handleDisconnectGen(gen)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("stream: connecting", slog.String("url", c.url))
	res, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("stream: connection failed", slog.String("error", err.Error()))
		c.handleDisconnectGen(gen)
		return
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		c.logger.Warn("stream: unexpected status", slog.Int("status", res.StatusCode))
		c.handleDisconnectGen(gen)
		return
	}

	// Connection is up: clear the attempt counter, unless Disconnect
	// invalidated this generation in the meantime.
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.connecting = false
	c.attempts = 0
	c.mu.Unlock()
	c.logger.Info("stream: connected")

	dec := newFrameDecoder(c.dispatch)
	buf := make([]byte, 4096)
	for {
		n, err := res.Body.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil {
			c.logger.Info("stream: stream ended", slog.String("error", err.Error()))
			c.handleDisconnectGen(gen)
			return
		}
	}
}

// dispatch decodes one frame's payload and fans it out. Parse failures are
// logged and the frame is dropped; the connection stays up.
func (c *Client) dispatch(kind event.Kind, data string) {
	var p event.Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		c.logger.Warn("stream: bad event payload",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.handlers[kind]))
	for _, fn := range c.handlers[kind] {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(p)
	}

	switch kind {
	case event.KindNoteUpdated:
		c.hub.Publish(hub.SSENoteUpdated, p)
	case event.KindTaskUpdated:
		c.hub.Publish(hub.SSETaskUpdated, p)
	case event.KindTaskColumnUpdated:
		c.hub.Publish(hub.SSETaskColumnUpdated, p)
	case event.KindConnected:
		c.logger.Info("stream: server acknowledged connection")
	}
}

// handleDisconnect transitions into the backoff-and-retry cycle. Once the
// attempt budget is spent, automatic retry stops until ResetReconnect.
func (c *Client) handleDisconnect() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.handleDisconnectGen(gen)
}

func (c *Client) handleDisconnectGen(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.connecting = false

	if c.attempts >= c.maxAttempts {
		c.logger.Warn("stream: max reconnect attempts reached")
		return
	}
	c.attempts++
	delay := backoffDelay(c.baseDelay, c.attempts)
	c.logger.Info("stream: reconnecting",
		slog.Duration("delay", delay),
		slog.Int("attempt", c.attempts))

	c.retryTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stale := c.gen != gen
		c.mu.Unlock()
		if stale {
			return
		}
		if c.tokens.Token() != "" {
			c.Connect()
		}
	})
}

// backoffDelay returns base doubled per prior failed attempt:
// base, 2*base, 4*base, ... for attempt = 1, 2, 3, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}
