package authcore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veloxparts/authcore/internal"
	"github.com/veloxparts/authcore/jwt"
)

// tokenBlacklist marks explicitly revoked access tokens in redis. Each
// marker carries a TTL equal to the token's remaining lifetime, so
// entries self-expire exactly when the token would have anyway.
//
// The two paths are deliberately asymmetric: Add fails open on an
// unparseable token, IsBlacklisted fails closed on a store error.
type tokenBlacklist struct {
	redis  *redis.Client
	tokens *jwt.Manager
	prefix string
}

func newTokenBlacklist(redisClient *redis.Client, tokens *jwt.Manager, prefix string) *tokenBlacklist {
	return &tokenBlacklist{
		redis:  redisClient,
		tokens: tokens,
		prefix: prefix,
	}
}

func (b *tokenBlacklist) key(token string) string {
	return b.prefix + ":" + internal.HashToken(token)
}

// Add revokes an access token. A token whose expiry cannot be decoded is
// logged and skipped, it is simply not blacklisted.
func (b *tokenBlacklist) Add(ctx context.Context, token string) error {
	expiry, err := b.tokens.UnverifiedExpiry(token)
	if err != nil {
		log.Printf("authcore: blacklist add skipped, undecodable token: %v", err)
		return nil
	}

	ttl := time.Until(expiry)
	if ttl <= 0 {
		return nil
	}

	if err := b.redis.Set(ctx, b.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBlacklistUnavailable, err)
	}

	return nil
}

// IsBlacklisted reports whether the token was revoked. A store error is
// surfaced as ErrBlacklistUnavailable and must be treated as a
// rejection by callers.
func (b *tokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := b.redis.Exists(ctx, b.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBlacklistUnavailable, err)
	}

	return n > 0, nil
}
