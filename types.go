package authcore

import (
	"context"
	"time"
)

// AuthProvider identifies how an account was established. It is set once
// on the first identity-establishing action and is immutable afterwards
// except from the empty value.
type AuthProvider string

const (
	ProviderPassword AuthProvider = "password"
	ProviderPhoneOTP AuthProvider = "phone_otp"
	ProviderEmailOTP AuthProvider = "email_otp"
	ProviderGoogle   AuthProvider = "google"
)

// AccountStatus gates every login path. Inactive accounts cannot
// authenticate through any flow.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusInactive AccountStatus = "inactive"
)

// VerificationStatus tracks whether the account identity has been
// confirmed through its verification channel.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationNone     VerificationStatus = "none"
)

// Session is one entry in a user's active-session list. TokenHash is the
// SHA-256 hex digest of the refresh token; the raw token is never stored.
type Session struct {
	TokenHash  string
	Device     string
	IP         string
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// ResetChallenge is the transient password-reset sub-record. It is
// cleared on success, expiry, or attempt exhaustion.
type ResetChallenge struct {
	OTPHash   [32]byte
	ExpiresAt time.Time
	Attempts  int
}

// User is the credential-store record the engine reads and mutates.
// Email or Phone must be set; both are unique within the store.
type User struct {
	ID                 string
	Email              string
	Phone              string
	PasswordHash       string
	Provider           AuthProvider
	Status             AccountStatus
	Role               string
	CustomerType       string
	FirstName          string
	LastName           string
	EmailVerified      bool
	PhoneVerified      bool
	VerificationStatus VerificationStatus
	LoginAttempts      int
	LockUntil          time.Time
	Sessions           []Session
	Reset              *ResetChallenge
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RedactedUser is the externally visible projection of a User. It carries
// no password hash, session list, or reset state and is what the engine
// caches and returns from login flows.
type RedactedUser struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email,omitempty"`
	Phone              string             `json:"phone,omitempty"`
	Provider           AuthProvider       `json:"provider,omitempty"`
	Status             AccountStatus      `json:"status"`
	Role               string             `json:"role"`
	CustomerType       string             `json:"customerType,omitempty"`
	FirstName          string             `json:"firstName,omitempty"`
	LastName           string             `json:"lastName,omitempty"`
	EmailVerified      bool               `json:"emailVerified"`
	PhoneVerified      bool               `json:"phoneVerified"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
}

// Redacted returns the cacheable projection of u.
func (u *User) Redacted() RedactedUser {
	return RedactedUser{
		ID:                 u.ID,
		Email:              u.Email,
		Phone:              u.Phone,
		Provider:           u.Provider,
		Status:             u.Status,
		Role:               u.Role,
		CustomerType:       u.CustomerType,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		EmailVerified:      u.EmailVerified,
		PhoneVerified:      u.PhoneVerified,
		VerificationStatus: u.VerificationStatus,
	}
}

// CredentialStore is the caller-supplied persistence contract. All
// mutating calls that touch the session list or the login-attempt
// counter must be atomic per user; see RotateSession and
// RecordLoginFailure in particular.
type CredentialStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)

	// Create persists a new user and returns the stored record. A
	// duplicate email or phone yields ErrAccountExists.
	Create(ctx context.Context, user *User) (*User, error)

	// SetAuthProvider sets the provider on an account whose provider is
	// still empty.
	SetAuthProvider(ctx context.Context, userID string, provider AuthProvider) error

	// RecordLoginFailure atomically increments the login-attempt counter
	// and, when the new count reaches maxAttempts, sets the lockout
	// deadline to now+lockFor. It returns the new count and deadline.
	RecordLoginFailure(ctx context.Context, userID string, maxAttempts int, lockFor time.Duration) (int, time.Time, error)

	// AppendSession adds a session entry and clears the login-attempt
	// counter and lockout deadline in the same write.
	AppendSession(ctx context.Context, userID string, entry Session) error

	// RotateSession atomically removes the entry matching oldHash and
	// appends next. No matching entry yields ErrSessionHashMismatch with
	// the list untouched. A matching but expired entry is removed and
	// ErrSessionEntryExpired returned. Two concurrent rotations of the
	// same hash must not both succeed.
	RotateSession(ctx context.Context, userID string, oldHash string, next Session) error

	// RemoveSession removes the entry matching tokenHash and reports
	// whether a match existed.
	RemoveSession(ctx context.Context, userID string, tokenHash string) (bool, error)

	ClearSessions(ctx context.Context, userID string) error
	UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error

	// SetResetChallenge stores the reset sub-record; nil clears it.
	SetResetChallenge(ctx context.Context, userID string, challenge *ResetChallenge) error
	IncrementResetAttempts(ctx context.Context, userID string) error
}

// GoogleClaims is the subset of a verified Google identity token the
// engine consumes.
type GoogleClaims struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
}

// GoogleVerifier validates a Google-issued identity token against
// Google's key infrastructure. Injected so tests can substitute a fake.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleClaims, error)
}

type RegisterRequest struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Password     string
	CustomerType string
}

type RegisterResult struct {
	Token string
	User  RedactedUser
}

type LoginRequest struct {
	Identifier Identifier
	Password   string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         RedactedUser
}

// VerifyOTPRequest carries the identifier value, the presented code, and
// the profile fields applied when the flow creates a new account.
type VerifyOTPRequest struct {
	Identifier   string
	OTP          string
	FirstName    string
	LastName     string
	CustomerType string
}

type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

type ResetPasswordRequest struct {
	Identifier  Identifier
	OTP         string
	NewPassword string
}

// AccessIdentity is the result of validating an access token.
type AccessIdentity struct {
	UserID string
	Role   string
}
