package authcore

import (
	"context"
	"errors"

	"github.com/veloxparts/authcore/internal"
)

// SendPhoneOTP generates a one-time code for the phone number and queues
// it for SMS delivery. Any outstanding code for the number is replaced.
// The account, if one exists, is not consulted; verification decides
// find-or-create.
func (e *Engine) SendPhoneOTP(ctx context.Context, phone string) error {
	id, err := PhoneIdentifier(phone)
	if err != nil {
		return err
	}
	return e.sendOTP(ctx, id)
}

// SendEmailOTP is the email counterpart of SendPhoneOTP.
func (e *Engine) SendEmailOTP(ctx context.Context, email string) error {
	id, err := EmailIdentifier(email)
	if err != nil {
		return err
	}
	return e.sendOTP(ctx, id)
}

func (e *Engine) sendOTP(ctx context.Context, id Identifier) error {
	if e.otps == nil {
		return ErrEngineNotReady
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return err
	}

	if err := e.otps.Save(ctx, id, internal.HashOTP(code), e.config.OTP.TTL); err != nil {
		return ErrOTPUnavailable
	}

	channel := ChannelEmail
	template := TemplateLoginOTP
	if id.Kind == IdentifierPhone {
		channel = ChannelSMS
	}
	e.notify(Notification{
		Channel:   channel,
		Recipient: id.Value,
		Template:  template,
		Vars:      map[string]string{"otp": code},
	})

	e.metricInc(MetricOTPSent)
	e.emitAudit(ctx, auditEventOTPSent, true, "", nil, func() map[string]string {
		return map[string]string{"identifier": id.Value}
	})

	return nil
}

// VerifyPhoneOTP consumes the code for the phone number and signs the
// caller in, creating the account on first use with the phone marked
// verified.
func (e *Engine) VerifyPhoneOTP(ctx context.Context, req VerifyOTPRequest) (*LoginResult, error) {
	id, err := PhoneIdentifier(req.Identifier)
	if err != nil {
		return nil, err
	}
	return e.verifyOTP(ctx, id, req, ProviderPhoneOTP)
}

// VerifyEmailOTP is the email counterpart of VerifyPhoneOTP.
func (e *Engine) VerifyEmailOTP(ctx context.Context, req VerifyOTPRequest) (*LoginResult, error) {
	id, err := EmailIdentifier(req.Identifier)
	if err != nil {
		return nil, err
	}
	return e.verifyOTP(ctx, id, req, ProviderEmailOTP)
}

func (e *Engine) verifyOTP(ctx context.Context, id Identifier, req VerifyOTPRequest, provider AuthProvider) (*LoginResult, error) {
	if e.store == nil || e.otps == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	if req.OTP == "" {
		return nil, ErrOTPInvalid
	}

	if err := e.otps.Consume(ctx, id, internal.HashOTP(req.OTP), e.config.OTP.MaxAttempts); err != nil {
		mapped := mapOTPConsumeError(err)
		e.metricInc(MetricOTPFailure)
		if errors.Is(mapped, ErrTooManyAttempts) {
			e.metricInc(MetricOTPAttemptsExceeded)
		}
		e.emitAudit(ctx, auditEventOTPFailure, false, "", mapped, func() map[string]string {
			return map[string]string{"identifier": id.Value}
		})
		return nil, mapped
	}

	user, err := e.findOrCreateOTPUser(ctx, id, req, provider)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, err := e.ledger.Issue(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricOTPVerified)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventOTPVerified, true, user.ID, nil, func() map[string]string {
		return map[string]string{"identifier": id.Value}
	})

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Redacted(),
	}, nil
}

func (e *Engine) findOrCreateOTPUser(ctx context.Context, id Identifier, req VerifyOTPRequest, provider AuthProvider) (*User, error) {
	user, err := e.findByIdentifier(ctx, id)
	switch {
	case err == nil:
		if user.Status != StatusActive {
			e.emitAudit(ctx, auditEventOTPFailure, false, user.ID, ErrAccountDisabled, nil)
			return nil, ErrAccountDisabled
		}
		if err := e.ensureProvider(ctx, user, provider); err != nil {
			return nil, err
		}
		return user, nil
	case errors.Is(err, ErrUserNotFound):
		// fall through to create
	default:
		return nil, wrapStoreErr(err)
	}

	customerType := req.CustomerType
	if customerType == "" {
		customerType = e.config.Registration.DefaultCustomerType
	}

	fresh := &User{
		Provider:           provider,
		Status:             StatusActive,
		Role:               e.config.Registration.DefaultRole,
		CustomerType:       customerType,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		VerificationStatus: VerificationApproved,
	}
	if id.Kind == IdentifierPhone {
		fresh.Phone = id.Value
		fresh.PhoneVerified = true
	} else {
		fresh.Email = id.Value
		fresh.EmailVerified = true
	}

	created, err := e.store.Create(ctx, fresh)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	redacted := created.Redacted()
	_ = e.cache.SetByID(ctx, redacted)
	_ = e.cache.SetByEmail(ctx, redacted)

	return created, nil
}
