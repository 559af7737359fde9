// Package pgstore implements authcore.CredentialStore on PostgreSQL.
// Users live in one table and session entries in a child table so the
// rotate and failure-counter paths can be single atomic statements.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veloxparts/authcore"
)

const uniqueViolation = "23505"

// Store is a pgx-backed credential store. Safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `
	id, email, phone, password_hash, provider, status, role, customer_type,
	first_name, last_name, email_verified, phone_verified, verification_status,
	login_attempts, lock_until, reset_otp_hash, reset_expires_at, reset_attempts,
	created_at, updated_at`

func (s *Store) GetByID(ctx context.Context, id string) (*authcore.User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*authcore.User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *Store) GetByPhone(ctx context.Context, phone string) (*authcore.User, error) {
	return s.getBy(ctx, "phone", phone)
}

func (s *Store) getBy(ctx context.Context, column, value string) (*authcore.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column)

	row := s.pool.QueryRow(ctx, query, value)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	if err := s.loadSessions(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Store) loadSessions(ctx context.Context, user *authcore.User) error {
	rows, err := s.pool.Query(ctx, `
		SELECT token_hash, device, ip, last_used_at, expires_at
		FROM user_sessions
		WHERE user_id = $1
		ORDER BY id`, user.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry authcore.Session
		if err := rows.Scan(&entry.TokenHash, &entry.Device, &entry.IP, &entry.LastUsedAt, &entry.ExpiresAt); err != nil {
			return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
		}
		user.Sessions = append(user.Sessions, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	return nil
}

func (s *Store) Create(ctx context.Context, user *authcore.User) (*authcore.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, phone, password_hash, provider, status, role, customer_type,
			first_name, last_name, email_verified, phone_verified, verification_status,
			login_attempts, created_at, updated_at
		) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, 0, $14, $14)`,
		id, user.Email, user.Phone, user.PasswordHash, string(user.Provider),
		string(user.Status), user.Role, user.CustomerType,
		user.FirstName, user.LastName, user.EmailVerified, user.PhoneVerified,
		string(user.VerificationStatus), now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, authcore.ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	return s.GetByID(ctx, id)
}

func (s *Store) SetAuthProvider(ctx context.Context, userID string, provider authcore.AuthProvider) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET provider = $2, updated_at = now()
		WHERE id = $1 AND (provider IS NULL OR provider = '')`,
		userID, string(provider))
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// RecordLoginFailure is a single UPDATE so concurrent failures cannot
// lose an increment; the lockout deadline is set in the same statement
// when the new count reaches the limit.
func (s *Store) RecordLoginFailure(ctx context.Context, userID string, maxAttempts int, lockFor time.Duration) (int, time.Time, error) {
	var (
		attempts  int
		lockUntil *time.Time
	)

	err := s.pool.QueryRow(ctx, `
		UPDATE users SET
			login_attempts = login_attempts + 1,
			lock_until = CASE
				WHEN login_attempts + 1 >= $2 THEN now() + make_interval(secs => $3)
				ELSE lock_until
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING login_attempts, lock_until`,
		userID, maxAttempts, lockFor.Seconds(),
	).Scan(&attempts, &lockUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, time.Time{}, authcore.ErrUserNotFound
		}
		return 0, time.Time{}, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	var deadline time.Time
	if lockUntil != nil {
		deadline = *lockUntil
	}
	return attempts, deadline, nil
}

func (s *Store) AppendSession(ctx context.Context, userID string, entry authcore.Session) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET login_attempts = 0, lock_until = NULL, updated_at = now()
			WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authcore.ErrUserNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO user_sessions (user_id, token_hash, device, ip, last_used_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, entry.TokenHash, entry.Device, entry.IP, entry.LastUsedAt, entry.ExpiresAt)
		return err
	})
}

// RotateSession deletes the matching entry and inserts the replacement
// in one transaction. The DELETE doubles as the compare-and-swap: when
// it removes no row another rotation already spent the hash and the
// caller sees ErrSessionHashMismatch.
func (s *Store) RotateSession(ctx context.Context, userID, oldHash string, next authcore.Session) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var expiresAt time.Time
		err := tx.QueryRow(ctx, `
			DELETE FROM user_sessions
			WHERE user_id = $1 AND token_hash = $2
			RETURNING expires_at`,
			userID, oldHash).Scan(&expiresAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return authcore.ErrSessionHashMismatch
			}
			return err
		}

		if time.Now().After(expiresAt) {
			// Keep the delete, skip the replacement.
			return authcore.ErrSessionEntryExpired
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO user_sessions (user_id, token_hash, device, ip, last_used_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, next.TokenHash, next.Device, next.IP, next.LastUsedAt, next.ExpiresAt)
		return err
	})
}

func (s *Store) RemoveSession(ctx context.Context, userID, tokenHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM user_sessions WHERE user_id = $1 AND token_hash = $2`,
		userID, tokenHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ClearSessions(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func (s *Store) SetResetChallenge(ctx context.Context, userID string, challenge *authcore.ResetChallenge) error {
	var (
		otpHash   []byte
		expiresAt *time.Time
		attempts  int
	)
	if challenge != nil {
		otpHash = challenge.OTPHash[:]
		expiresAt = &challenge.ExpiresAt
		attempts = challenge.Attempts
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			reset_otp_hash = $2, reset_expires_at = $3, reset_attempts = $4,
			updated_at = now()
		WHERE id = $1`,
		userID, otpHash, expiresAt, attempts)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func (s *Store) IncrementResetAttempts(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET reset_attempts = reset_attempts + 1, updated_at = now()
		WHERE id = $1 AND reset_otp_hash IS NOT NULL`,
		userID)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		switch {
		case errors.Is(err, authcore.ErrSessionHashMismatch),
			errors.Is(err, authcore.ErrUserNotFound):
			return err
		case errors.Is(err, authcore.ErrSessionEntryExpired):
			// The expired entry's delete must survive the error return.
			if commitErr := tx.Commit(ctx); commitErr != nil {
				return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, commitErr)
			}
			return err
		default:
			return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*authcore.User, error) {
	var (
		user           authcore.User
		email, phone   *string
		passwordHash   *string
		provider       *string
		lockUntil      *time.Time
		resetOTPHash   []byte
		resetExpiresAt *time.Time
		resetAttempts  int
	)

	err := row.Scan(
		&user.ID, &email, &phone, &passwordHash, &provider, &user.Status,
		&user.Role, &user.CustomerType, &user.FirstName, &user.LastName,
		&user.EmailVerified, &user.PhoneVerified, &user.VerificationStatus,
		&user.LoginAttempts, &lockUntil, &resetOTPHash, &resetExpiresAt,
		&resetAttempts, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if email != nil {
		user.Email = *email
	}
	if phone != nil {
		user.Phone = *phone
	}
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if provider != nil {
		user.Provider = authcore.AuthProvider(*provider)
	}
	if lockUntil != nil {
		user.LockUntil = *lockUntil
	}
	if len(resetOTPHash) == 32 && resetExpiresAt != nil {
		reset := &authcore.ResetChallenge{
			ExpiresAt: *resetExpiresAt,
			Attempts:  resetAttempts,
		}
		copy(reset.OTPHash[:], resetOTPHash)
		user.Reset = reset
	}

	return &user, nil
}
