package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/veloxparts/authcore/jwt"
	"github.com/veloxparts/authcore/password"
)

// Builder assembles an Engine from its dependencies. A redis client and
// a credential store are mandatory; the Google verifier, notification
// sender, and audit sink are optional.
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithCredentialStore(store).
//		Build()
type Builder struct {
	config    Config
	configSet bool
	redis     *redis.Client
	store     CredentialStore
	google    GoogleVerifier
	sender    NotificationSender
	auditSink AuditSink
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	b.configSet = true
	return b
}

func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithGoogleVerifier(verifier GoogleVerifier) *Builder {
	b.google = verifier
	return b
}

func (b *Builder) WithNotificationSender(sender NotificationSender) *Builder {
	b.sender = sender
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and wires the engine. When no
// verifier was injected but a Google client ID is configured, the
// default idtoken-backed verifier is used.
func (b *Builder) Build() (*Engine, error) {
	if !b.configSet {
		return nil, errors.New("config is required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.store == nil {
		return nil, errors.New("credential store is required")
	}

	cfg := mergeConfigDefaults(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.Session.RefreshLifetime,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	passwords, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	google := b.google
	if google == nil && cfg.Google.ClientID != "" {
		google = NewGoogleVerifier(cfg.Google.ClientID)
	}

	e := &Engine{
		config:    cfg,
		store:     b.store,
		tokens:    tokens,
		passwords: passwords,
		ledger:    newSessionLedger(b.store, tokens, cfg.Session.RefreshLifetime),
		otps:      newOTPStore(b.redis, cfg.OTP.RedisPrefix),
		blacklist: newTokenBlacklist(b.redis, tokens, cfg.Blacklist.RedisPrefix),
		cache:     newUserCache(b.redis, cfg.Cache),
		google:    google,
		notifier:  newNotifyDispatcher(cfg.Notify, b.sender),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	return e, nil
}
