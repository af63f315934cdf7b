// Package apperr defines sentinel errors shared across the client layers.
package apperr

import "errors"

var (
	// ErrSessionExpired marks an authentication failure (401/403/422).
	// The gateway has already cleared the stored token and notified the
	// hub by the time a caller sees this.
	ErrSessionExpired = errors.New("session expired")

	// ErrBadInput marks a programming-contract violation (missing
	// required input). Callers short-circuit; nothing retries it.
	ErrBadInput = errors.New("bad input")

	ErrNotFound = errors.New("not found")
)
