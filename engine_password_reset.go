package authcore

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"time"

	"github.com/veloxparts/authcore/internal"
)

// ForgotPassword starts a password reset. It always reports success so
// callers cannot probe which identifiers have accounts; the work happens
// only when the identifier resolves to a password account.
func (e *Engine) ForgotPassword(ctx context.Context, id Identifier) error {
	if e.store == nil {
		return ErrEngineNotReady
	}

	defer sleepResetEnumerationDelay()

	user, err := e.findByIdentifier(ctx, id)
	if err != nil {
		return nil
	}
	if user.Provider != "" && user.Provider != ProviderPassword {
		return nil
	}

	code, err := internal.NewOTP(e.config.PasswordReset.OTPDigits)
	if err != nil {
		return nil
	}

	challenge := &ResetChallenge{
		OTPHash:   internal.HashOTP(code),
		ExpiresAt: time.Now().Add(e.config.PasswordReset.TTL),
	}
	if err := e.store.SetResetChallenge(ctx, user.ID, challenge); err != nil {
		return nil
	}

	channel := ChannelEmail
	recipient := user.Email
	if id.Kind == IdentifierPhone || recipient == "" {
		channel = ChannelSMS
		recipient = user.Phone
	}
	e.notify(Notification{
		Channel:   channel,
		Recipient: recipient,
		Template:  TemplateResetOTP,
		Vars:      map[string]string{"otp": code},
	})

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, nil, nil)
	return nil
}

// ResetPassword completes a reset: the OTP must match the pending
// challenge within its expiry and attempt budget. Success installs the
// new hash, clears the challenge, and revokes every session so stolen
// refresh tokens die with the old password.
func (e *Engine) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if e.store == nil || e.passwords == nil {
		return ErrEngineNotReady
	}

	user, err := e.findByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.resetFailed(ctx, "", ErrOTPExpired)
			return ErrOTPExpired
		}
		return wrapStoreErr(err)
	}
	if user.Reset == nil {
		e.resetFailed(ctx, user.ID, ErrOTPExpired)
		return ErrOTPExpired
	}

	if time.Now().After(user.Reset.ExpiresAt) {
		_ = e.store.SetResetChallenge(ctx, user.ID, nil)
		e.resetFailed(ctx, user.ID, ErrOTPExpired)
		return ErrOTPExpired
	}
	if user.Reset.Attempts >= e.config.PasswordReset.MaxAttempts {
		_ = e.store.SetResetChallenge(ctx, user.ID, nil)
		e.resetFailed(ctx, user.ID, ErrTooManyAttempts)
		return ErrTooManyAttempts
	}

	provided := internal.HashOTP(req.OTP)
	if subtle.ConstantTimeCompare(provided[:], user.Reset.OTPHash[:]) != 1 {
		if err := e.store.IncrementResetAttempts(ctx, user.ID); err != nil {
			return wrapStoreErr(err)
		}
		e.resetFailed(ctx, user.ID, ErrOTPInvalid)
		return ErrOTPInvalid
	}

	newHash, err := e.passwords.Hash(req.NewPassword)
	if err != nil {
		return ErrPasswordPolicy
	}

	if err := e.store.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		return wrapStoreErr(err)
	}
	if err := e.store.ClearSessions(ctx, user.ID); err != nil {
		return wrapStoreErr(err)
	}
	if err := e.store.SetResetChallenge(ctx, user.ID, nil); err != nil {
		return wrapStoreErr(err)
	}

	e.cache.invalidate(ctx, user)

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetDone, true, user.ID, nil, nil)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, userID string, cause error) {
	e.metricInc(MetricPasswordResetFailure)
	e.emitAudit(ctx, auditEventPasswordResetFailure, false, userID, cause, nil)
}

// sleepResetEnumerationDelay adds 20-40ms of jitter to every
// ForgotPassword return so the found and not-found paths are not
// distinguishable by response time.
func sleepResetEnumerationDelay() {
	jitter, err := rand.Int(rand.Reader, big.NewInt(20))
	if err != nil {
		time.Sleep(30 * time.Millisecond)
		return
	}
	time.Sleep(time.Duration(20+jitter.Int64()) * time.Millisecond)
}
