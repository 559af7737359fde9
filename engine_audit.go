package authcore

import (
	"context"
	"errors"
	"time"
)

// Activity event names, stable identifiers for downstream log consumers.
const (
	auditEventUserRegistered       = "USER_REGISTERED"
	auditEventUserLogin            = "USER_LOGIN"
	auditEventLoginFailure         = "LOGIN_FAILURE"
	auditEventAccountLocked        = "ACCOUNT_LOCKED"
	auditEventOTPSent              = "OTP_SENT"
	auditEventOTPVerified          = "OTP_VERIFIED"
	auditEventOTPFailure           = "OTP_FAILURE"
	auditEventGoogleLogin          = "GOOGLE_LOGIN"
	auditEventTokenRefreshed       = "TOKEN_REFRESHED"
	auditEventRefreshReuseDetected = "REFRESH_TOKEN_REUSE_DETECTED"
	auditEventRefreshFailure       = "REFRESH_FAILURE"
	auditEventLogout               = "LOGOUT"
	auditEventLogoutAll            = "LOGOUT_ALL"
	auditEventPasswordResetRequest = "PASSWORD_RESET_REQUESTED"
	auditEventPasswordResetDone    = "PASSWORD_RESET_COMPLETED"
	auditEventPasswordResetFailure = "PASSWORD_RESET_FAILURE"
	auditEventTokenRevoked         = "ACCESS_TOKEN_REVOKED"
)

type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrWrongProvider      AuditErrorCode = "wrong_provider"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrOTPExpired         AuditErrorCode = "otp_expired"
	auditErrOTPInvalid         AuditErrorCode = "otp_invalid"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrSessionCompromised AuditErrorCode = "session_compromised"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrSessionInvalid     AuditErrorCode = "session_invalid"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrIdentifierInvalid):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrWrongProvider):
		return auditErrWrongProvider
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrOTPExpired):
		return auditErrOTPExpired
	case errors.Is(err, ErrOTPInvalid):
		return auditErrOTPInvalid
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrGoogleEmailMissing):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrSessionCompromised):
		return auditErrSessionCompromised
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrOTPUnavailable),
		errors.Is(err, ErrBlacklistUnavailable),
		errors.Is(err, ErrGoogleNotConfigured):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
