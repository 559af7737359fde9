package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veloxparts/authcore/internal"
)

func resetEngine(t *testing.T, store *mockCredentialStore) (*Engine, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	engine := newTestEngine(t, store, func(b *Builder) {
		b.WithNotificationSender(sender)
	})
	return engine, sender
}

func TestForgotPasswordAlwaysSucceeds(t *testing.T) {
	store := newMockStore()
	engine, _ := resetEngine(t, store)
	ctx := context.Background()

	google := store.addUser(t, &User{
		Email:    "oauth@example.com",
		Provider: ProviderGoogle,
		Status:   StatusActive,
	})

	unknown, _ := EmailIdentifier("nobody@example.com")
	if err := engine.ForgotPassword(ctx, unknown); err != nil {
		t.Fatalf("unknown identifier must not error: %v", err)
	}

	oauth, _ := EmailIdentifier("oauth@example.com")
	if err := engine.ForgotPassword(ctx, oauth); err != nil {
		t.Fatalf("non-password account must not error: %v", err)
	}
	if store.rawUser(t, google.ID).Reset != nil {
		t.Fatal("no challenge may be created for a non-password account")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	store := newMockStore()
	engine, sender := resetEngine(t, store)
	ctx := context.Background()

	user := seedPasswordUser(t, engine, store, "buyer@example.com", "old password 1")

	id, _ := EmailIdentifier("buyer@example.com")
	login, err := engine.Login(ctx, LoginRequest{Identifier: id, Password: "old password 1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := engine.ForgotPassword(ctx, id); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	code := sender.waitFor(t, TemplateResetOTP).Vars["otp"]

	err = engine.ResetPassword(ctx, ResetPasswordRequest{
		Identifier:  id,
		OTP:         code,
		NewPassword: "new password 1",
	})
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	raw := store.rawUser(t, user.ID)
	if raw.Reset != nil {
		t.Fatal("challenge must be cleared after a successful reset")
	}
	if len(raw.Sessions) != 0 {
		t.Fatalf("reset must revoke every session, %d remain", len(raw.Sessions))
	}

	// Old credentials and old refresh tokens are dead.
	if _, err := engine.Login(ctx, LoginRequest{Identifier: id, Password: "old password 1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must fail, got %v", err)
	}
	if _, err := engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrSessionCompromised) {
		t.Fatalf("old refresh token must be revoked, got %v", err)
	}

	if _, err := engine.Login(ctx, LoginRequest{Identifier: id, Password: "new password 1"}); err != nil {
		t.Fatalf("new password must work: %v", err)
	}
}

func TestResetPasswordWrongOTP(t *testing.T) {
	store := newMockStore()
	engine, sender := resetEngine(t, store)
	ctx := context.Background()

	user := seedPasswordUser(t, engine, store, "buyer@example.com", "old password 1")
	id, _ := EmailIdentifier("buyer@example.com")

	if err := engine.ForgotPassword(ctx, id); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	code := sender.waitFor(t, TemplateResetOTP).Vars["otp"]

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}

	err := engine.ResetPassword(ctx, ResetPasswordRequest{Identifier: id, OTP: wrong, NewPassword: "new password 1"})
	if !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
	if got := store.rawUser(t, user.ID).Reset.Attempts; got != 1 {
		t.Fatalf("expected 1 recorded attempt, got %d", got)
	}

	// The challenge survives a wrong guess; the right code still works.
	err = engine.ResetPassword(ctx, ResetPasswordRequest{Identifier: id, OTP: code, NewPassword: "new password 1"})
	if err != nil {
		t.Fatalf("reset with correct code failed: %v", err)
	}
}

func TestResetPasswordExpiredChallenge(t *testing.T) {
	store := newMockStore()
	engine, _ := resetEngine(t, store)
	ctx := context.Background()

	user := seedPasswordUser(t, engine, store, "buyer@example.com", "old password 1")
	hash := internal.HashOTP("123456")
	err := store.SetResetChallenge(ctx, user.ID, &ResetChallenge{
		OTPHash:   hash,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("failed to seed challenge: %v", err)
	}

	id, _ := EmailIdentifier("buyer@example.com")
	err = engine.ResetPassword(ctx, ResetPasswordRequest{Identifier: id, OTP: "123456", NewPassword: "new password 1"})
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if store.rawUser(t, user.ID).Reset != nil {
		t.Fatal("expired challenge must be cleared")
	}
}

func TestResetPasswordAttemptExhaustion(t *testing.T) {
	store := newMockStore()
	engine, sender := resetEngine(t, store)
	ctx := context.Background()

	user := seedPasswordUser(t, engine, store, "buyer@example.com", "old password 1")
	id, _ := EmailIdentifier("buyer@example.com")

	if err := engine.ForgotPassword(ctx, id); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	code := sender.waitFor(t, TemplateResetOTP).Vars["otp"]

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}

	for i := 0; i < 5; i++ {
		err := engine.ResetPassword(ctx, ResetPasswordRequest{Identifier: id, OTP: wrong, NewPassword: "new password 1"})
		if !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("attempt %d: expected ErrOTPInvalid, got %v", i+1, err)
		}
	}

	err := engine.ResetPassword(ctx, ResetPasswordRequest{Identifier: id, OTP: wrong, NewPassword: "new password 1"})
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if store.rawUser(t, user.ID).Reset != nil {
		t.Fatal("exhausted challenge must be cleared")
	}

	// Even the right code fails once the budget is spent.
	err = engine.ResetPassword(ctx, ResetPasswordRequest{Identifier: id, OTP: code, NewPassword: "new password 1"})
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired after exhaustion, got %v", err)
	}
}

func TestResetPasswordNoChallenge(t *testing.T) {
	store := newMockStore()
	engine, _ := resetEngine(t, store)

	seedPasswordUser(t, engine, store, "buyer@example.com", "old password 1")

	id, _ := EmailIdentifier("buyer@example.com")
	err := engine.ResetPassword(context.Background(), ResetPasswordRequest{
		Identifier:  id,
		OTP:         "123456",
		NewPassword: "new password 1",
	})
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired with no pending challenge, got %v", err)
	}
}

func TestResetPasswordWeakNewPassword(t *testing.T) {
	store := newMockStore()
	engine, sender := resetEngine(t, store)
	ctx := context.Background()

	seedPasswordUser(t, engine, store, "buyer@example.com", "old password 1")
	id, _ := EmailIdentifier("buyer@example.com")

	if err := engine.ForgotPassword(ctx, id); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	code := sender.waitFor(t, TemplateResetOTP).Vars["otp"]

	err := engine.ResetPassword(ctx, ResetPasswordRequest{Identifier: id, OTP: code, NewPassword: "short"})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}
