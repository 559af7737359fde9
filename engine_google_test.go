package authcore

import (
	"context"
	"errors"
	"testing"
)

func googleEngine(t *testing.T, store *mockCredentialStore, verifier GoogleVerifier) *Engine {
	t.Helper()
	return newTestEngine(t, store, func(b *Builder) {
		b.WithGoogleVerifier(verifier)
	})
}

func TestGoogleLoginCreatesAccount(t *testing.T) {
	store := newMockStore()
	engine := googleEngine(t, store, &fakeGoogleVerifier{
		claims: &GoogleClaims{
			Subject:    "g-123",
			Email:      "buyer@gmail.com",
			GivenName:  "Sipho",
			FamilyName: "Dlamini",
		},
	})

	result, err := engine.GoogleLogin(context.Background(), "valid-google-token")
	if err != nil {
		t.Fatalf("google login failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected a full session")
	}

	user := store.rawUser(t, result.User.ID)
	if user.Provider != ProviderGoogle {
		t.Fatalf("expected google provider, got %q", user.Provider)
	}
	if !user.EmailVerified {
		t.Fatal("google email is trusted as verified")
	}
	if user.FirstName != "Sipho" || user.LastName != "Dlamini" {
		t.Fatalf("profile names not applied: %q %q", user.FirstName, user.LastName)
	}
}

func TestGoogleLoginExistingAccount(t *testing.T) {
	store := newMockStore()
	engine := googleEngine(t, store, &fakeGoogleVerifier{
		claims: &GoogleClaims{Email: "buyer@gmail.com"},
	})

	existing := store.addUser(t, &User{
		Email:    "buyer@gmail.com",
		Provider: ProviderGoogle,
		Status:   StatusActive,
		Role:     "customer",
	})

	result, err := engine.GoogleLogin(context.Background(), "valid-google-token")
	if err != nil {
		t.Fatalf("google login failed: %v", err)
	}
	if result.User.ID != existing.ID {
		t.Fatalf("expected existing account %q, got %q", existing.ID, result.User.ID)
	}
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	engine := newTestEngine(t, newMockStore())

	_, err := engine.GoogleLogin(context.Background(), "any-token")
	if !errors.Is(err, ErrGoogleNotConfigured) {
		t.Fatalf("expected ErrGoogleNotConfigured, got %v", err)
	}
}

func TestGoogleLoginBadToken(t *testing.T) {
	engine := googleEngine(t, newMockStore(), &fakeGoogleVerifier{
		err: errors.New("signature mismatch"),
	})

	_, err := engine.GoogleLogin(context.Background(), "tampered-token")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestGoogleLoginMissingEmail(t *testing.T) {
	engine := googleEngine(t, newMockStore(), &fakeGoogleVerifier{
		claims: &GoogleClaims{Subject: "g-123"},
	})

	_, err := engine.GoogleLogin(context.Background(), "valid-google-token")
	if !errors.Is(err, ErrGoogleEmailMissing) {
		t.Fatalf("expected ErrGoogleEmailMissing, got %v", err)
	}
}

func TestGoogleLoginWrongProvider(t *testing.T) {
	store := newMockStore()
	engine := googleEngine(t, store, &fakeGoogleVerifier{
		claims: &GoogleClaims{Email: "buyer@example.com"},
	})

	store.addUser(t, &User{
		Email:    "buyer@example.com",
		Provider: ProviderPassword,
		Status:   StatusActive,
	})

	_, err := engine.GoogleLogin(context.Background(), "valid-google-token")
	if !errors.Is(err, ErrWrongProvider) {
		t.Fatalf("expected ErrWrongProvider, got %v", err)
	}
}

func TestGoogleLoginEmptyToken(t *testing.T) {
	engine := googleEngine(t, newMockStore(), &fakeGoogleVerifier{})

	_, err := engine.GoogleLogin(context.Background(), "")
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}
