package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errCacheMiss = errors.New("user cache miss")

// userCache holds redacted user projections in redis, keyed by id and by
// email. It is a read-through convenience only; every write path
// invalidates, and a miss or store error is never fatal.
type userCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func newUserCache(redisClient *redis.Client, cfg CacheConfig) *userCache {
	if !cfg.Enabled || redisClient == nil {
		return nil
	}
	return &userCache{
		redis:  redisClient,
		prefix: cfg.RedisPrefix,
		ttl:    cfg.TTL,
	}
}

func (c *userCache) idKey(id string) string {
	return c.prefix + ":id:" + id
}

func (c *userCache) emailKey(email string) string {
	return c.prefix + ":email:" + email
}

func (c *userCache) SetByID(ctx context.Context, user RedactedUser) error {
	if c == nil || user.ID == "" {
		return nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.idKey(user.ID), data, c.ttl).Err()
}

func (c *userCache) SetByEmail(ctx context.Context, user RedactedUser) error {
	if c == nil || user.Email == "" {
		return nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.emailKey(user.Email), data, c.ttl).Err()
}

func (c *userCache) GetByID(ctx context.Context, id string) (RedactedUser, error) {
	var user RedactedUser
	if c == nil {
		return user, errCacheMiss
	}

	data, err := c.redis.Get(ctx, c.idKey(id)).Bytes()
	if err != nil {
		return user, errCacheMiss
	}
	if err := json.Unmarshal(data, &user); err != nil {
		return user, errCacheMiss
	}
	return user, nil
}

func (c *userCache) DelByID(ctx context.Context, id string) error {
	if c == nil || id == "" {
		return nil
	}
	return c.redis.Del(ctx, c.idKey(id)).Err()
}

func (c *userCache) DelByEmail(ctx context.Context, email string) error {
	if c == nil || email == "" {
		return nil
	}
	return c.redis.Del(ctx, c.emailKey(email)).Err()
}

// invalidate drops both projections of a user. Best effort.
func (c *userCache) invalidate(ctx context.Context, user *User) {
	if c == nil || user == nil {
		return
	}
	_ = c.DelByID(ctx, user.ID)
	_ = c.DelByEmail(ctx, user.Email)
}
