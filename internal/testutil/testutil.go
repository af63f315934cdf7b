// Package testutil provides shared test helpers for setting up the local
// store and token state.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/skald/internal/auth"
	"github.com/starford/skald/internal/kvstore"
)

// Logger returns a logger that discards everything, for wiring into
// components under test.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DB creates a temporary key-value store that is automatically cleaned up.
func DB(t *testing.T) *kvstore.DB {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "skald-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	db, err := kvstore.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Tokens creates a token store over a temporary key-value store, seeded
// with token when non-empty.
func Tokens(t *testing.T, token string) *auth.TokenStore {
	t.Helper()
	tokens := auth.NewTokenStore(DB(t))
	if token != "" {
		if err := tokens.SetToken(token); err != nil {
			t.Fatal(err)
		}
	}
	return tokens
}
