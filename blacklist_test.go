package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestRevokeAccessToken(t *testing.T) {
	store := newMockStore()
	engine, mr := newTestEngineWithRedis(t, store)
	ctx := context.Background()

	_, login := issueSession(t, engine, store)

	if _, err := engine.Validate(ctx, login.AccessToken); err != nil {
		t.Fatalf("fresh token failed validation: %v", err)
	}

	if err := engine.RevokeAccessToken(ctx, login.AccessToken); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	_, err := engine.Validate(ctx, login.AccessToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if got := engine.Metrics().Value(MetricBlacklistRejected); got != 1 {
		t.Fatalf("expected rejection metric 1, got %d", got)
	}

	// The marker self-expires with the token's lifetime.
	mr.FastForward(engine.config.JWT.AccessTTL * 2)
	revoked, err := engine.IsAccessTokenRevoked(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("revocation check failed: %v", err)
	}
	if revoked {
		t.Fatal("marker must expire with the token")
	}
}

func TestBlacklistAddFailsOpen(t *testing.T) {
	engine := newTestEngine(t, newMockStore())
	ctx := context.Background()

	// A token whose expiry cannot be decoded is skipped without error.
	if err := engine.RevokeAccessToken(ctx, "garbage-token"); err != nil {
		t.Fatalf("undecodable token must not fail revoke: %v", err)
	}

	revoked, err := engine.IsAccessTokenRevoked(ctx, "garbage-token")
	if err != nil {
		t.Fatalf("revocation check failed: %v", err)
	}
	if revoked {
		t.Fatal("skipped token must not appear revoked")
	}
}

func TestBlacklistCheckFailsClosed(t *testing.T) {
	store := newMockStore()
	engine, mr := newTestEngineWithRedis(t, store)
	ctx := context.Background()

	_, login := issueSession(t, engine, store)

	mr.Close()

	_, err := engine.IsAccessTokenRevoked(ctx, login.AccessToken)
	if !errors.Is(err, ErrBlacklistUnavailable) {
		t.Fatalf("expected ErrBlacklistUnavailable, got %v", err)
	}

	// Validation must reject when the revocation list is unreachable,
	// even though the token itself is perfectly valid.
	_, err = engine.Validate(ctx, login.AccessToken)
	if !errors.Is(err, ErrBlacklistUnavailable) {
		t.Fatalf("expected validation to fail closed, got %v", err)
	}
}

func TestRevokeEmptyToken(t *testing.T) {
	engine := newTestEngine(t, newMockStore())

	if err := engine.RevokeAccessToken(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}
