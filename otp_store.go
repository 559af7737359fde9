package authcore

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpRecordVersionV1 = 1

var (
	errOTPRecordNotFound = errors.New("otp record not found")
	errOTPCodeMismatch   = errors.New("otp code mismatch")
	errOTPAttemptsSpent  = errors.New("otp attempts exceeded")
	errOTPRedis          = errors.New("otp redis unavailable")
)

// otpRecord is the cached login-OTP state for one identifier.
type otpRecord struct {
	CodeHash [32]byte
	Attempts uint16
}

// otpStore keeps login OTPs in redis, keyed by identifier kind and
// value, with the configured TTL bounding their lifetime.
type otpStore struct {
	redis  *redis.Client
	prefix string
}

func newOTPStore(redisClient *redis.Client, prefix string) *otpStore {
	return &otpStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *otpStore) key(id Identifier) string {
	kind := "email"
	if id.Kind == IdentifierPhone {
		kind = "phone"
	}
	return s.prefix + ":" + kind + ":" + id.Value
}

// Save stores a fresh OTP digest, replacing any outstanding code for the
// identifier and resetting its attempt counter.
func (s *otpStore) Save(ctx context.Context, id Identifier, codeHash [32]byte, ttl time.Duration) error {
	encoded, err := encodeOTPRecord(&otpRecord{CodeHash: codeHash})
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(id), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOTPRedis, err)
	}

	return nil
}

// Consume verifies a presented digest against the stored record under an
// optimistic transaction. A match deletes the record (single use). A
// mismatch increments the attempt counter; reaching maxAttempts deletes
// the record so later submissions fail as not-found rather than invalid.
func (s *otpStore) Consume(ctx context.Context, id Identifier, providedHash [32]byte, maxAttempts int) error {
	const maxRetries = 4
	key := s.key(id)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOTPRecord(data)
			if err != nil {
				return err
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errOTPAttemptsSpent
				}

				ttl, err := tx.TTL(ctx, key).Result()
				if err != nil {
					return err
				}
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errOTPRecordNotFound
				}

				updated, err := encodeOTPRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errOTPCodeMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return errOTPRecordNotFound
			case errors.Is(err, errOTPRecordNotFound),
				errors.Is(err, errOTPCodeMismatch),
				errors.Is(err, errOTPAttemptsSpent):
				return err
			default:
				return fmt.Errorf("%w: %v", errOTPRedis, err)
			}
		}

		return nil
	}

	return errOTPRecordNotFound
}

func encodeOTPRecord(record *otpRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*otpRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	record := &otpRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
