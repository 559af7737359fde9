package authcore

import "errors"

var (
	// ErrAccountExists is returned when registration targets an email or
	// phone that already belongs to an account.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials is returned for an unknown identifier or a
	// wrong password. The two cases are deliberately not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrWrongProvider is returned when password login is attempted on an
	// account established through another auth provider.
	ErrWrongProvider = errors.New("account uses a different auth provider")
	// ErrAccountDisabled is returned when the account status is not active.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked is returned while a lockout window is in effect.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrIdentifierInvalid is returned when an identifier is neither a
	// valid email address nor a valid phone number.
	ErrIdentifierInvalid = errors.New("invalid identifier")
	// ErrPasswordPolicy is returned when a password fails policy checks.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrUserNotFound is returned when an operation targets a missing user.
	ErrUserNotFound = errors.New("user not found")

	// ErrOTPExpired is returned when no OTP record exists for the
	// identifier, or the record has expired or been purged.
	ErrOTPExpired = errors.New("otp expired or invalid")
	// ErrOTPInvalid is returned on an OTP mismatch with attempts remaining.
	ErrOTPInvalid = errors.New("invalid otp")
	// ErrTooManyAttempts is returned when the OTP attempt budget is
	// exhausted and the record has been purged.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrOTPUnavailable is returned when the OTP cache backend fails.
	ErrOTPUnavailable = errors.New("otp backend unavailable")

	// ErrMissingToken is returned when a required token is absent.
	ErrMissingToken = errors.New("missing token")
	// ErrTokenInvalid is returned when a token fails verification.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned when an access token has been revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrBlacklistUnavailable is returned when the revocation list cannot
	// be consulted. Callers must treat it as a rejection.
	ErrBlacklistUnavailable = errors.New("token blacklist unavailable")

	// ErrSessionCompromised is returned when a presented refresh token has
	// no matching session. All sessions are revoked before it is returned.
	ErrSessionCompromised = errors.New("refresh token reuse detected")
	// ErrSessionExpired is returned when the matching session entry has
	// passed its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalid is returned on logout with an unmatched refresh
	// token. It covers both "already logged out" and "forged token".
	ErrSessionInvalid = errors.New("invalid session")

	// ErrGoogleNotConfigured is returned when Google login is invoked
	// without a configured verifier.
	ErrGoogleNotConfigured = errors.New("google auth not configured")
	// ErrGoogleEmailMissing is returned when a verified Google identity
	// token carries no email claim.
	ErrGoogleEmailMissing = errors.New("google token missing email claim")

	// ErrStoreUnavailable is returned when the credential store fails.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned when an engine method is invoked
	// before all required dependencies were supplied.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrSessionHashMismatch is the credential-store sentinel for a rotate
	// call whose presented hash matched no session entry.
	ErrSessionHashMismatch = errors.New("session hash mismatch")
	// ErrSessionEntryExpired is the credential-store sentinel for a rotate
	// call whose matching entry was past expiry. The store removes the
	// entry before returning it.
	ErrSessionEntryExpired = errors.New("session entry expired")
)
