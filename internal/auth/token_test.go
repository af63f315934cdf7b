package auth

import (
	"os"
	"testing"

	"github.com/starford/skald/internal/kvstore"
)

func testStore(t *testing.T) *TokenStore {
	t.Helper()
	f, err := os.CreateTemp("", "skald-auth-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := kvstore.Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTokenStore(db)
}

func TestTokenLifecycle(t *testing.T) {
	s := testStore(t)

	if s.HasToken() {
		t.Fatal("fresh store should have no token")
	}
	if err := s.SetToken("jwt-abc"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if got := s.Token(); got != "jwt-abc" {
		t.Errorf("Token = %q, want jwt-abc", got)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.HasToken() {
		t.Error("token should be gone after Clear")
	}
}

func TestSetTokenRejectsEmpty(t *testing.T) {
	s := testStore(t)
	if err := s.SetToken(""); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestPreferenceDefaults(t *testing.T) {
	s := testStore(t)

	if got := s.Theme("light"); got != "light" {
		t.Errorf("Theme default = %q, want light", got)
	}
	if err := s.SetTheme("dark"); err != nil {
		t.Fatal(err)
	}
	if got := s.Theme("light"); got != "dark" {
		t.Errorf("Theme = %q, want dark", got)
	}

	if got := s.Direction("ltr"); got != "ltr" {
		t.Errorf("Direction default = %q, want ltr", got)
	}
	if err := s.SetDirection("rtl"); err != nil {
		t.Fatal(err)
	}
	if got := s.Direction("ltr"); got != "rtl" {
		t.Errorf("Direction = %q, want rtl", got)
	}
}
