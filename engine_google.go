package authcore

import (
	"context"
	"errors"
)

// GoogleLogin exchanges a Google identity token for a session, creating
// the account on first sight of the email. The verifier is an injected
// dependency; without one the deployment has Google auth disabled.
func (e *Engine) GoogleLogin(ctx context.Context, idToken string) (*LoginResult, error) {
	if e.store == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	if e.google == nil {
		return nil, ErrGoogleNotConfigured
	}
	if idToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := e.google.Verify(ctx, idToken)
	if err != nil {
		e.metricInc(MetricGoogleLoginFailure)
		e.emitAudit(ctx, auditEventGoogleLogin, false, "", ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}
	if claims.Email == "" {
		e.metricInc(MetricGoogleLoginFailure)
		e.emitAudit(ctx, auditEventGoogleLogin, false, "", ErrGoogleEmailMissing, nil)
		return nil, ErrGoogleEmailMissing
	}

	id, err := EmailIdentifier(claims.Email)
	if err != nil {
		return nil, ErrGoogleEmailMissing
	}

	user, err := e.findOrCreateGoogleUser(ctx, id, claims)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, err := e.ledger.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricGoogleLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventGoogleLogin, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": id.Value}
	})

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Redacted(),
	}, nil
}

func (e *Engine) findOrCreateGoogleUser(ctx context.Context, id Identifier, claims *GoogleClaims) (*User, error) {
	user, err := e.store.GetByEmail(ctx, id.Value)
	switch {
	case err == nil:
		if user.Status != StatusActive {
			e.emitAudit(ctx, auditEventGoogleLogin, false, user.ID, ErrAccountDisabled, nil)
			return nil, ErrAccountDisabled
		}
		if err := e.ensureProvider(ctx, user, ProviderGoogle); err != nil {
			return nil, err
		}
		return user, nil
	case errors.Is(err, ErrUserNotFound):
		// fall through to create
	default:
		return nil, wrapStoreErr(err)
	}

	created, err := e.store.Create(ctx, &User{
		Email:              id.Value,
		Provider:           ProviderGoogle,
		Status:             StatusActive,
		Role:               e.config.Registration.DefaultRole,
		CustomerType:       e.config.Registration.DefaultCustomerType,
		FirstName:          claims.GivenName,
		LastName:           claims.FamilyName,
		EmailVerified:      true,
		VerificationStatus: VerificationApproved,
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	redacted := created.Redacted()
	_ = e.cache.SetByID(ctx, redacted)
	_ = e.cache.SetByEmail(ctx, redacted)

	return created, nil
}
