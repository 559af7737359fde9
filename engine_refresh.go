package authcore

import (
	"context"
	"errors"
)

// Refresh exchanges a refresh token for a fresh access/refresh pair.
// Rotation is single use: the presented token's session entry is
// atomically replaced, and a token with no matching entry is treated as
// reuse, revoking every session for the user before the call fails.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e.store == nil || e.tokens == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	user, err := e.store.GetByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshFailure, false, claims.UID, ErrTokenInvalid, nil)
			return nil, ErrTokenInvalid
		}
		return nil, wrapStoreErr(err)
	}

	accessToken, newRefresh, err := e.ledger.Rotate(ctx, user, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		switch {
		case errors.Is(err, ErrSessionCompromised):
			e.metricInc(MetricRefreshReuseDetected)
			e.cache.invalidate(ctx, user)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, user.ID, err, nil)
		case errors.Is(err, ErrSessionExpired):
			e.emitAudit(ctx, auditEventRefreshFailure, false, user.ID, err, nil)
		}
		return nil, err
	}

	e.cache.invalidate(ctx, user)

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventTokenRefreshed, true, user.ID, nil, nil)

	return &RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
	}, nil
}
