// Package gateway issues authenticated JSON requests to the daybook API.
// It attaches the bearer token to every request, tags requests with the
// process session ID, and turns auth-expiry status codes into a global
// logout: clear the token, notify the hub, return ErrSessionExpired.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/starford/skald/internal/apperr"
	"github.com/starford/skald/internal/auth"
	"github.com/starford/skald/internal/event"
	"github.com/starford/skald/internal/hub"
	"github.com/starford/skald/internal/session"
)

// Client is the authenticated HTTP gateway.
type Client struct {
	base   string
	http   *http.Client
	tokens *auth.TokenStore
	hub    *hub.Hub
	logger *slog.Logger
}

// New creates a gateway for the given API base URL (e.g. "http://host/api").
func New(base string, tokens *auth.TokenStore, h *hub.Hub, logger *slog.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{},
		tokens: tokens,
		hub:    h,
		logger: logger,
	}
}

// Base returns the API base URL.
func (c *Client) Base() string {
	return c.base
}

// Get issues a GET with optional query parameters and decodes the JSON
// response into out (which may be nil).
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	target := c.base + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, target, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, c.base+path, body, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, c.base+path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, c.base+path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Session-Id", session.ID())
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, target, err)
	}
	defer res.Body.Close()

	if isAuthExpiry(res.StatusCode) {
		c.expireSession()
		return apperr.ErrSessionExpired
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("gateway: %s %s: status %d", method, target, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}

// isAuthExpiry reports whether a status code means the session is gone.
// 422 is included because the server answers it for malformed/expired JWTs.
func isAuthExpiry(code int) bool {
	return code == http.StatusUnauthorized ||
		code == http.StatusForbidden ||
		code == http.StatusUnprocessableEntity
}

func (c *Client) expireSession() {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("gateway: clear token failed", slog.String("error", err.Error()))
	}
	c.logger.Warn("gateway: session expired, logging out")
	c.hub.Publish(hub.AuthExpired, event.Payload{})
}

// LoginResponse is the body returned by POST /login.
type LoginResponse struct {
	Token string `json:"token"`
}

// Login authenticates and stores the returned token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return apperr.ErrBadInput
	}
	var res LoginResponse
	err := c.do(ctx, http.MethodPost, c.base+"/login", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	if err != nil {
		return err
	}
	if res.Token == "" {
		return fmt.Errorf("gateway: login response carried no token")
	}
	return c.tokens.SetToken(res.Token)
}

// Logout clears the stored token and announces the end of the session,
// which also tears down the push-event stream.
func (c *Client) Logout() error {
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	c.hub.Publish(hub.AuthExpired, event.Payload{})
	return nil
}
