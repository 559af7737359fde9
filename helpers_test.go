package authcore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.PrivateKey = []byte("test-secret-key-for-hs256-signing")
	cfg.JWT.Issuer = "authcore-test"
	// cheap argon2 so the suite stays fast
	cfg.Password = PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	return cfg
}

func newTestEngine(t *testing.T, store CredentialStore, opts ...func(*Builder)) *Engine {
	t.Helper()
	engine, _ := newTestEngineWithRedis(t, store, opts...)
	return engine
}

func newTestEngineWithRedis(t *testing.T, store CredentialStore, opts ...func(*Builder)) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, client := newTestRedis(t)

	b := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithCredentialStore(store)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, mr
}

// mockCredentialStore is an in-memory CredentialStore with the embedded
// session semantics the engine relies on. All mutations hold the mutex,
// so rotate behaves as a compare-and-swap.
type mockCredentialStore struct {
	mu      sync.Mutex
	users   map[string]*User
	byEmail map[string]string
	byPhone map[string]string
	nextID  int

	failAll error // when set, every call fails with this error
}

func newMockStore() *mockCredentialStore {
	return &mockCredentialStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}
}

func (m *mockCredentialStore) addUser(t *testing.T, user *User) *User {
	t.Helper()
	created, err := m.Create(context.Background(), user)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return created
}

func cloneUser(u *User) *User {
	out := *u
	out.Sessions = append([]Session(nil), u.Sessions...)
	if u.Reset != nil {
		reset := *u.Reset
		out.Reset = &reset
	}
	return &out
}

func (m *mockCredentialStore) get(id string) (*User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (m *mockCredentialStore) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	user, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return cloneUser(user), nil
}

func (m *mockCredentialStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(m.users[id]), nil
}

func (m *mockCredentialStore) GetByPhone(_ context.Context, phone string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	id, ok := m.byPhone[phone]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(m.users[id]), nil
}

func (m *mockCredentialStore) Create(_ context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}

	if user.Email != "" {
		if _, exists := m.byEmail[user.Email]; exists {
			return nil, ErrAccountExists
		}
	}
	if user.Phone != "" {
		if _, exists := m.byPhone[user.Phone]; exists {
			return nil, ErrAccountExists
		}
	}

	stored := cloneUser(user)
	if stored.ID == "" {
		m.nextID++
		stored.ID = fmt.Sprintf("user-%d", m.nextID)
	}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	m.users[stored.ID] = stored
	if stored.Email != "" {
		m.byEmail[stored.Email] = stored.ID
	}
	if stored.Phone != "" {
		m.byPhone[stored.Phone] = stored.ID
	}

	return cloneUser(stored), nil
}

func (m *mockCredentialStore) SetAuthProvider(_ context.Context, userID string, provider AuthProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return err
	}
	if user.Provider == "" {
		user.Provider = provider
	}
	return nil
}

func (m *mockCredentialStore) RecordLoginFailure(_ context.Context, userID string, maxAttempts int, lockFor time.Duration) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return 0, time.Time{}, m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return 0, time.Time{}, err
	}

	user.LoginAttempts++
	if user.LoginAttempts >= maxAttempts {
		user.LockUntil = time.Now().Add(lockFor)
	}
	return user.LoginAttempts, user.LockUntil, nil
}

func (m *mockCredentialStore) AppendSession(_ context.Context, userID string, entry Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return err
	}

	user.Sessions = append(user.Sessions, entry)
	user.LoginAttempts = 0
	user.LockUntil = time.Time{}
	return nil
}

func (m *mockCredentialStore) RotateSession(_ context.Context, userID, oldHash string, next Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return err
	}

	for i, entry := range user.Sessions {
		if entry.TokenHash != oldHash {
			continue
		}
		user.Sessions = append(user.Sessions[:i], user.Sessions[i+1:]...)
		if time.Now().After(entry.ExpiresAt) {
			return ErrSessionEntryExpired
		}
		user.Sessions = append(user.Sessions, next)
		return nil
	}
	return ErrSessionHashMismatch
}

func (m *mockCredentialStore) RemoveSession(_ context.Context, userID, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return false, m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return false, err
	}

	for i, entry := range user.Sessions {
		if entry.TokenHash == tokenHash {
			user.Sessions = append(user.Sessions[:i], user.Sessions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCredentialStore) ClearSessions(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return err
	}
	user.Sessions = nil
	return nil
}

func (m *mockCredentialStore) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return err
	}
	user.PasswordHash = passwordHash
	return nil
}

func (m *mockCredentialStore) SetResetChallenge(_ context.Context, userID string, challenge *ResetChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return err
	}
	if challenge == nil {
		user.Reset = nil
		return nil
	}
	reset := *challenge
	user.Reset = &reset
	return nil
}

func (m *mockCredentialStore) IncrementResetAttempts(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	user, err := m.get(userID)
	if err != nil {
		return err
	}
	if user.Reset != nil {
		user.Reset.Attempts++
	}
	return nil
}

func (m *mockCredentialStore) sessionCount(t *testing.T, userID string) int {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		t.Fatalf("no such user %q", userID)
	}
	return len(user.Sessions)
}

func (m *mockCredentialStore) rawUser(t *testing.T, userID string) *User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		t.Fatalf("no such user %q", userID)
	}
	return cloneUser(user)
}

// captureSender records submitted notifications for assertions.
type captureSender struct {
	mu   sync.Mutex
	sent []Notification
}

func (s *captureSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSender) templates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, n := range s.sent {
		out = append(out, n.Template)
	}
	return out
}

func (s *captureSender) waitFor(t *testing.T, template string) Notification {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		for _, n := range s.sent {
			if n.Template == template {
				s.mu.Unlock()
				return n
			}
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("notification %q never delivered", template)
	return Notification{}
}

// fakeGoogleVerifier returns canned claims or a canned error.
type fakeGoogleVerifier struct {
	claims *GoogleClaims
	err    error
}

func (f *fakeGoogleVerifier) Verify(context.Context, string) (*GoogleClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func seedPasswordUser(t *testing.T, e *Engine, store *mockCredentialStore, email, plaintext string) *User {
	t.Helper()

	hash, err := e.passwords.Hash(plaintext)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	return store.addUser(t, &User{
		Email:        email,
		PasswordHash: hash,
		Provider:     ProviderPassword,
		Status:       StatusActive,
		Role:         "customer",
	})
}
