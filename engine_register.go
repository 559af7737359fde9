package authcore

import (
	"context"
	"errors"
)

// Register creates a password account. At least one of email or phone is
// required; whichever is present selects the verification channel. The
// returned token is a short-lived signed access token issued without a
// session entry; a full session is only established on first login.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e.store == nil || e.passwords == nil {
		return nil, ErrEngineNotReady
	}
	if req.Email == "" && req.Phone == "" {
		return nil, ErrIdentifierInvalid
	}

	var email, phone string
	if req.Email != "" {
		id, err := EmailIdentifier(req.Email)
		if err != nil {
			return nil, err
		}
		email = id.Value
	}
	if req.Phone != "" {
		id, err := PhoneIdentifier(req.Phone)
		if err != nil {
			return nil, err
		}
		phone = id.Value
	}

	passwordHash, err := e.passwords.Hash(req.Password)
	if err != nil {
		return nil, ErrPasswordPolicy
	}

	if err := e.checkIdentityFree(ctx, email, phone); err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventUserRegistered, false, "", ErrAccountExists, func() map[string]string {
				return map[string]string{"email": email, "phone": phone}
			})
		}
		return nil, err
	}

	// Verification channel: email wins when both identifiers are given.
	verification := VerificationNone
	if email != "" || phone != "" {
		verification = VerificationPending
	}

	customerType := req.CustomerType
	if customerType == "" {
		customerType = e.config.Registration.DefaultCustomerType
	}

	created, err := e.store.Create(ctx, &User{
		Email:              email,
		Phone:              phone,
		PasswordHash:       passwordHash,
		Provider:           ProviderPassword,
		Status:             StatusActive,
		Role:               e.config.Registration.DefaultRole,
		CustomerType:       customerType,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		VerificationStatus: verification,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventUserRegistered, false, "", ErrAccountExists, func() map[string]string {
				return map[string]string{"email": email, "phone": phone}
			})
			return nil, ErrAccountExists
		}
		return nil, wrapStoreErr(err)
	}

	redacted := created.Redacted()
	_ = e.cache.SetByID(ctx, redacted)
	_ = e.cache.SetByEmail(ctx, redacted)

	e.submitRegistrationNotifications(created)

	token, err := e.tokens.CreateAccess(created.ID, created.Role)
	if err != nil {
		return nil, err
	}

	req.Password = ""
	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventUserRegistered, true, created.ID, nil, func() map[string]string {
		return map[string]string{"email": email, "phone": phone, "role": created.Role}
	})

	return &RegisterResult{
		Token: token,
		User:  redacted,
	}, nil
}

func (e *Engine) checkIdentityFree(ctx context.Context, email, phone string) error {
	if email != "" {
		if _, err := e.store.GetByEmail(ctx, email); err == nil {
			return ErrAccountExists
		} else if !errors.Is(err, ErrUserNotFound) {
			return wrapStoreErr(err)
		}
	}
	if phone != "" {
		if _, err := e.store.GetByPhone(ctx, phone); err == nil {
			return ErrAccountExists
		} else if !errors.Is(err, ErrUserNotFound) {
			return wrapStoreErr(err)
		}
	}
	return nil
}

// submitRegistrationNotifications queues the welcome message and the
// verification prompt. Delivery is fire and forget; a full buffer or a
// failed send never rolls back registration.
func (e *Engine) submitRegistrationNotifications(user *User) {
	switch {
	case user.Email != "":
		e.notify(Notification{
			Channel:   ChannelEmail,
			Recipient: user.Email,
			Template:  TemplateUserRegistered,
			Vars:      map[string]string{"firstName": user.FirstName},
		})
		e.notify(Notification{
			Channel:   ChannelEmail,
			Recipient: user.Email,
			Template:  TemplateVerifyEmail,
			Vars:      map[string]string{"firstName": user.FirstName},
		})
	case user.Phone != "":
		e.notify(Notification{
			Channel:   ChannelSMS,
			Recipient: user.Phone,
			Template:  TemplateVerifySMS,
			Vars:      map[string]string{"firstName": user.FirstName},
		})
	}
}
