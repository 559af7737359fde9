package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veloxparts/authcore/internal"
	"github.com/veloxparts/authcore/jwt"
)

// sessionLedger manages the active-session list on a user record. Each
// entry holds the SHA-256 hex digest of one outstanding refresh token;
// the raw token never touches the store.
type sessionLedger struct {
	store    CredentialStore
	tokens   *jwt.Manager
	lifetime time.Duration
}

func newSessionLedger(store CredentialStore, tokens *jwt.Manager, lifetime time.Duration) *sessionLedger {
	return &sessionLedger{
		store:    store,
		tokens:   tokens,
		lifetime: lifetime,
	}
}

func (l *sessionLedger) newEntry(ctx context.Context, refreshToken string, now time.Time) Session {
	return Session{
		TokenHash:  internal.HashToken(refreshToken),
		Device:     deviceFromContext(ctx),
		IP:         clientIPFromContext(ctx),
		LastUsedAt: now,
		ExpiresAt:  now.Add(l.lifetime),
	}
}

// Issue mints a fresh access/refresh pair and appends the session entry.
// The append clears the login-attempt counter and lockout deadline.
func (l *sessionLedger) Issue(ctx context.Context, user *User) (string, string, error) {
	accessToken, err := l.tokens.CreateAccess(user.ID, user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := l.tokens.CreateRefresh(user.ID)
	if err != nil {
		return "", "", err
	}

	entry := l.newEntry(ctx, refreshToken, time.Now())
	if err := l.store.AppendSession(ctx, user.ID, entry); err != nil {
		return "", "", wrapStoreErr(err)
	}

	return accessToken, refreshToken, nil
}

// Rotate exchanges a presented refresh token for a fresh pair. The
// matching entry is atomically replaced, making every refresh token
// single use. No matching hash is a reuse signal: every session is
// revoked and ErrSessionCompromised returned. A matching but expired
// entry is removed by the store and surfaces as ErrSessionExpired.
func (l *sessionLedger) Rotate(ctx context.Context, user *User, presented string) (string, string, error) {
	accessToken, err := l.tokens.CreateAccess(user.ID, user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := l.tokens.CreateRefresh(user.ID)
	if err != nil {
		return "", "", err
	}

	oldHash := internal.HashToken(presented)
	next := l.newEntry(ctx, refreshToken, time.Now())

	switch err := l.store.RotateSession(ctx, user.ID, oldHash, next); {
	case err == nil:
		return accessToken, refreshToken, nil
	case errors.Is(err, ErrSessionHashMismatch):
		if clearErr := l.store.ClearSessions(ctx, user.ID); clearErr != nil {
			return "", "", wrapStoreErr(clearErr)
		}
		return "", "", ErrSessionCompromised
	case errors.Is(err, ErrSessionEntryExpired):
		return "", "", ErrSessionExpired
	default:
		return "", "", wrapStoreErr(err)
	}
}

// RevokeOne removes the entry matching the presented refresh token. An
// unmatched token fails ErrSessionInvalid, identically for "already
// logged out" and "forged token".
func (l *sessionLedger) RevokeOne(ctx context.Context, userID, presented string) error {
	matched, err := l.store.RemoveSession(ctx, userID, internal.HashToken(presented))
	if err != nil {
		return wrapStoreErr(err)
	}
	if !matched {
		return ErrSessionInvalid
	}
	return nil
}

// RevokeAll empties the session list.
func (l *sessionLedger) RevokeAll(ctx context.Context, userID string) error {
	if err := l.store.ClearSessions(ctx, userID); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// wrapStoreErr folds unexpected store failures under ErrStoreUnavailable
// while letting engine sentinels pass through unchanged.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrSessionHashMismatch),
		errors.Is(err, ErrSessionEntryExpired),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
