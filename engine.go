package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veloxparts/authcore/jwt"
	"github.com/veloxparts/authcore/password"
)

// Engine is the auth orchestrator: registration, password and OTP login,
// Google exchange, refresh rotation with reuse detection, logout, and
// password reset. It owns no persistence of its own; user records live
// in the caller-supplied CredentialStore and transient state in redis.
//
// Engines are built through the Builder and are safe for concurrent use.
type Engine struct {
	config    Config
	store     CredentialStore
	tokens    *jwt.Manager
	passwords *password.Argon2
	ledger    *sessionLedger
	otps      *otpStore
	blacklist *tokenBlacklist
	cache     *userCache
	google    GoogleVerifier
	notifier  *notifyDispatcher
	audit     *auditDispatcher
	metrics   *Metrics
}

// Validate checks an access token for the request path: the revocation
// list is consulted first and fails closed, then the signature and
// claims are verified. The returned identity carries the token's user id
// and role.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AccessIdentity, error) {
	if e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	if e.blacklist != nil {
		revoked, err := e.blacklist.IsBlacklisted(ctx, accessToken)
		if err != nil {
			// Fail closed: an unreachable blacklist rejects the request.
			return nil, err
		}
		if revoked {
			e.metricInc(MetricBlacklistRejected)
			return nil, ErrTokenRevoked
		}
	}

	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	return &AccessIdentity{
		UserID: claims.UID,
		Role:   claims.Role,
	}, nil
}

// RevokeAccessToken blacklists an access token for its remaining
// lifetime. An unparseable token is skipped without error (fail open).
func (e *Engine) RevokeAccessToken(ctx context.Context, accessToken string) error {
	if e.blacklist == nil {
		return ErrEngineNotReady
	}
	if accessToken == "" {
		return ErrMissingToken
	}

	if err := e.blacklist.Add(ctx, accessToken); err != nil {
		return err
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRevoked, true, "", nil, nil)
	return nil
}

// IsAccessTokenRevoked reports whether a token is on the revocation
// list. A store failure surfaces as ErrBlacklistUnavailable and must be
// treated as a rejection.
func (e *Engine) IsAccessTokenRevoked(ctx context.Context, accessToken string) (bool, error) {
	if e.blacklist == nil {
		return false, ErrEngineNotReady
	}
	return e.blacklist.IsBlacklisted(ctx, accessToken)
}

// Metrics exposes the engine's counter set. Nil when disabled.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// NotificationsDropped reports how many outbound notifications were
// discarded because the dispatch buffer was full.
func (e *Engine) NotificationsDropped() uint64 {
	return e.notifier.Dropped()
}

// Close drains and stops the audit and notification dispatchers.
func (e *Engine) Close() {
	e.audit.Close()
	e.notifier.Close()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) notify(n Notification) {
	e.notifier.Submit(n)
}

// findByIdentifier dispatches the store lookup on the identifier kind.
func (e *Engine) findByIdentifier(ctx context.Context, id Identifier) (*User, error) {
	switch id.Kind {
	case IdentifierEmail:
		return e.store.GetByEmail(ctx, id.Value)
	case IdentifierPhone:
		return e.store.GetByPhone(ctx, id.Value)
	default:
		return nil, ErrIdentifierInvalid
	}
}

// ensureProvider pins the auth provider on first identity-establishing
// use. An account with a different provider already set is rejected.
func (e *Engine) ensureProvider(ctx context.Context, user *User, want AuthProvider) error {
	if user.Provider == want {
		return nil
	}
	if user.Provider != "" {
		return ErrWrongProvider
	}
	if err := e.store.SetAuthProvider(ctx, user.ID, want); err != nil {
		return wrapStoreErr(err)
	}
	user.Provider = want
	return nil
}

func mapOTPConsumeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errOTPRecordNotFound):
		return ErrOTPExpired
	case errors.Is(err, errOTPCodeMismatch):
		return ErrOTPInvalid
	case errors.Is(err, errOTPAttemptsSpent):
		return ErrTooManyAttempts
	default:
		return fmt.Errorf("%w: %v", ErrOTPUnavailable, err)
	}
}
