// Package auth manages the stored authentication token and user
// preferences on top of the scoped key-value store.
package auth

import (
	"github.com/starford/skald/internal/apperr"
	"github.com/starford/skald/internal/kvstore"
)

const (
	tokenKey     = "token"
	themeKey     = "theme"
	directionKey = "direction"
)

// TokenStore reads and writes the auth token and preferences. The token is
// written only on login/refresh and cleared on logout or auth failure;
// everything else treats it as read-only.
type TokenStore struct {
	kv kvstore.Store
}

// NewTokenStore creates a TokenStore over the given key-value store.
func NewTokenStore(kv kvstore.Store) *TokenStore {
	return &TokenStore{kv: kv}
}

// Token returns the stored token, or "" when none is stored.
func (s *TokenStore) Token() string {
	var token string
	if err := s.kv.Get(kvstore.ScopeAuth, tokenKey, &token); err != nil {
		return ""
	}
	return token
}

// HasToken reports whether a non-empty token is stored.
func (s *TokenStore) HasToken() bool {
	return s.Token() != ""
}

// SetToken stores a new token.
func (s *TokenStore) SetToken(token string) error {
	if token == "" {
		return apperr.ErrBadInput
	}
	return s.kv.Set(kvstore.ScopeAuth, tokenKey, token)
}

// Clear removes the stored token.
func (s *TokenStore) Clear() error {
	return s.kv.Delete(kvstore.ScopeAuth, tokenKey)
}

// Theme returns the stored UI theme preference, or def when unset.
func (s *TokenStore) Theme(def string) string {
	return s.pref(themeKey, def)
}

// SetTheme stores the UI theme preference.
func (s *TokenStore) SetTheme(theme string) error {
	return s.kv.Set(kvstore.ScopePrefs, themeKey, theme)
}

// Direction returns the stored text-direction preference, or def when unset.
func (s *TokenStore) Direction(def string) string {
	return s.pref(directionKey, def)
}

// SetDirection stores the text-direction preference.
func (s *TokenStore) SetDirection(dir string) error {
	return s.kv.Set(kvstore.ScopePrefs, directionKey, dir)
}

func (s *TokenStore) pref(key, def string) string {
	var v string
	if err := s.kv.Get(kvstore.ScopePrefs, key, &v); err != nil || v == "" {
		return def
	}
	return v
}
