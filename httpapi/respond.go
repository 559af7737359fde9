package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veloxparts/authcore"
)

// envelope is the uniform response shape: {success, data, message} on
// success and {success, message, code} on failure.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

func respondError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	writeJSON(w, status, envelope{
		Success: false,
		Message: err.Error(),
		Code:    code,
	})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Success: false,
		Message: message,
		Code:    "BAD_REQUEST",
	})
}

// statusForError maps engine errors onto HTTP statuses. A blacklist
// outage rejects with 401 rather than 503: an unverifiable token must
// not pass.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, authcore.ErrAccountExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, authcore.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, authcore.ErrWrongProvider):
		return http.StatusBadRequest, "WRONG_PROVIDER"
	case errors.Is(err, authcore.ErrAccountDisabled):
		return http.StatusForbidden, "ACCOUNT_DISABLED"
	case errors.Is(err, authcore.ErrAccountLocked):
		return http.StatusLocked, "ACCOUNT_LOCKED"
	case errors.Is(err, authcore.ErrIdentifierInvalid):
		return http.StatusBadRequest, "INVALID_IDENTIFIER"
	case errors.Is(err, authcore.ErrPasswordPolicy):
		return http.StatusBadRequest, "PASSWORD_POLICY"
	case errors.Is(err, authcore.ErrOTPExpired):
		return http.StatusBadRequest, "OTP_EXPIRED"
	case errors.Is(err, authcore.ErrOTPInvalid):
		return http.StatusBadRequest, "OTP_INVALID"
	case errors.Is(err, authcore.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"
	case errors.Is(err, authcore.ErrMissingToken):
		return http.StatusUnauthorized, "MISSING_TOKEN"
	case errors.Is(err, authcore.ErrTokenInvalid):
		return http.StatusUnauthorized, "INVALID_TOKEN"
	case errors.Is(err, authcore.ErrTokenRevoked):
		return http.StatusUnauthorized, "TOKEN_REVOKED"
	case errors.Is(err, authcore.ErrBlacklistUnavailable):
		return http.StatusUnauthorized, "TOKEN_UNVERIFIABLE"
	case errors.Is(err, authcore.ErrSessionCompromised):
		return http.StatusUnauthorized, "SESSION_COMPROMISED"
	case errors.Is(err, authcore.ErrSessionExpired):
		return http.StatusUnauthorized, "SESSION_EXPIRED"
	case errors.Is(err, authcore.ErrSessionInvalid):
		return http.StatusUnauthorized, "INVALID_SESSION"
	case errors.Is(err, authcore.ErrUserNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, authcore.ErrGoogleEmailMissing):
		return http.StatusBadRequest, "GOOGLE_EMAIL_MISSING"
	case errors.Is(err, authcore.ErrGoogleNotConfigured):
		return http.StatusInternalServerError, "NOT_CONFIGURED"
	case errors.Is(err, authcore.ErrStoreUnavailable),
		errors.Is(err, authcore.ErrOTPUnavailable):
		return http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
