package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestLogout(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store)
	user, login := issueSession(t, engine, store)

	if err := engine.Logout(context.Background(), user.ID, login.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if got := store.sessionCount(t, user.ID); got != 0 {
		t.Fatalf("expected session removed, %d remain", got)
	}

	// A second logout with the same token finds nothing.
	err := engine.Logout(context.Background(), user.ID, login.RefreshToken)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid on replay, got %v", err)
	}
}

func TestLogoutLeavesOtherSessions(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store)
	user, first := issueSession(t, engine, store)

	id, _ := EmailIdentifier("buyer@example.com")
	second, err := engine.Login(context.Background(), LoginRequest{
		Identifier: id,
		Password:   "correct horse battery",
	})
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	if err := engine.Logout(context.Background(), user.ID, first.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if got := store.sessionCount(t, user.ID); got != 1 {
		t.Fatalf("expected the other session to survive, got %d", got)
	}

	// The surviving session still refreshes.
	if _, err := engine.Refresh(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("surviving session failed to refresh: %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store)
	user, login := issueSession(t, engine, store)

	id, _ := EmailIdentifier("buyer@example.com")
	for i := 0; i < 2; i++ {
		if _, err := engine.Login(context.Background(), LoginRequest{
			Identifier: id,
			Password:   "correct horse battery",
		}); err != nil {
			t.Fatalf("login %d failed: %v", i+2, err)
		}
	}
	if got := store.sessionCount(t, user.ID); got != 3 {
		t.Fatalf("expected 3 sessions, got %d", got)
	}

	if err := engine.LogoutAll(context.Background(), user.ID); err != nil {
		t.Fatalf("logout all failed: %v", err)
	}
	if got := store.sessionCount(t, user.ID); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}

	_, err := engine.Refresh(context.Background(), login.RefreshToken)
	if !errors.Is(err, ErrSessionCompromised) {
		t.Fatalf("revoked refresh token must fail, got %v", err)
	}
}

func TestLogoutUnknownUser(t *testing.T) {
	engine := newTestEngine(t, newMockStore())

	err := engine.Logout(context.Background(), "no-such-user", "some-token")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := engine.LogoutAll(context.Background(), "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLogoutEmptyToken(t *testing.T) {
	store := newMockStore()
	engine := newTestEngine(t, store)
	user, _ := issueSession(t, engine, store)

	if err := engine.Logout(context.Background(), user.ID, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}
