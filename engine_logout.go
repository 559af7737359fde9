package authcore

import (
	"context"
	"errors"
)

// Logout revokes the single session matching the presented refresh
// token. An unmatched token fails ErrSessionInvalid whether it was
// already revoked or never valid.
func (e *Engine) Logout(ctx context.Context, userID, refreshToken string) error {
	if e.store == nil || e.ledger == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return ErrMissingToken
	}

	user, err := e.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return wrapStoreErr(err)
	}

	if err := e.ledger.RevokeOne(ctx, user.ID, refreshToken); err != nil {
		e.emitAudit(ctx, auditEventLogout, false, user.ID, err, nil)
		return err
	}

	e.cache.invalidate(ctx, user)

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, user.ID, nil, nil)
	return nil
}

// LogoutAll revokes every session for the user.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e.store == nil || e.ledger == nil {
		return ErrEngineNotReady
	}

	user, err := e.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return wrapStoreErr(err)
	}

	if err := e.ledger.RevokeAll(ctx, user.ID); err != nil {
		return err
	}

	e.cache.invalidate(ctx, user)

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, user.ID, nil, nil)
	return nil
}
