package authcore

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Login authenticates an identifier/password pair and issues a session.
// Five consecutive mismatches lock the account for the configured
// window; while the lock is active even a correct password is rejected.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e.store == nil || e.passwords == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	if req.Identifier.Value == "" {
		return nil, ErrIdentifierInvalid
	}

	user, err := e.findByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"identifier": req.Identifier.Value, "reason": "unknown_identifier"}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, wrapStoreErr(err)
	}

	if user.Provider != "" && user.Provider != ProviderPassword {
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrWrongProvider, func() map[string]string {
			return map[string]string{"provider": string(user.Provider)}
		})
		return nil, ErrWrongProvider
	}
	if user.Status != StatusActive {
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}
	if user.LockUntil.After(time.Now()) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrAccountLocked, func() map[string]string {
			return map[string]string{"lock_until": user.LockUntil.UTC().Format(time.RFC3339)}
		})
		return nil, ErrAccountLocked
	}

	ok, err := e.passwords.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.recordLoginFailure(ctx, user)
	}

	if e.config.Password.UpgradeOnLogin {
		e.maybeUpgradeHash(ctx, user, req.Password)
	}

	accessToken, refreshToken, err := e.ledger.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventUserLogin, true, user.ID, nil, nil)

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Redacted(),
	}, nil
}

// recordLoginFailure bumps the attempt counter atomically in the store
// so concurrent failures cannot lose an increment. The attempt that
// trips the lockout reports the lock, earlier ones the uniform
// credential error.
func (e *Engine) recordLoginFailure(ctx context.Context, user *User) error {
	attempts, lockedUntil, err := e.store.RecordLoginFailure(
		ctx,
		user.ID,
		e.config.Lockout.MaxAttempts,
		e.config.Lockout.LockDuration,
	)
	if err != nil {
		return wrapStoreErr(err)
	}

	e.metricInc(MetricLoginFailure)
	if !lockedUntil.IsZero() && lockedUntil.After(time.Now()) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventAccountLocked, false, user.ID, ErrAccountLocked, func() map[string]string {
			return map[string]string{"lock_until": lockedUntil.UTC().Format(time.RFC3339)}
		})
		return ErrAccountLocked
	}

	e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": "password_mismatch", "attempts": strconv.Itoa(attempts)}
	})
	return ErrInvalidCredentials
}

// maybeUpgradeHash transparently rehashes the password when the stored
// hash predates the current cost parameters. Best effort.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *User, plaintext string) {
	upgrade, err := e.passwords.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	newHash, err := e.passwords.Hash(plaintext)
	if err != nil {
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, user.ID, newHash); err == nil {
		user.PasswordHash = newHash
	}
}
