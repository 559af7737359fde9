package authcore

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Zero values are filled in
// from defaultConfig by the builder; instances are treated as immutable
// after Build.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      PasswordConfig
	Lockout       LockoutConfig
	OTP           OTPConfig
	PasswordReset PasswordResetConfig
	Blacklist     BlacklistConfig
	Cache         CacheConfig
	Audit         AuditConfig
	Notify        NotifyConfig
	Metrics       MetricsConfig
	Google        GoogleConfig
	Registration  RegistrationConfig
}

/*
====================================
JWT CONFIG
====================================
*/

type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	// RefreshLifetime bounds both the refresh token expiry and the
	// session entry expiry stamped at issuance.
	RefreshLifetime time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

type LockoutConfig struct {
	MaxAttempts  int
	LockDuration time.Duration
}

/*
====================================
OTP / RESET CONFIG
====================================
*/

type OTPConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int
	RedisPrefix string
}

type PasswordResetConfig struct {
	OTPDigits   int
	TTL         time.Duration
	MaxAttempts int
}

/*
====================================
AUXILIARY STORES
====================================
*/

type BlacklistConfig struct {
	RedisPrefix string
}

type CacheConfig struct {
	Enabled     bool
	TTL         time.Duration
	RedisPrefix string
}

/*
====================================
OBSERVABILITY / DISPATCH
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type NotifyConfig struct {
	BufferSize int
}

type MetricsConfig struct {
	Enabled bool
}

/*
====================================
PROVIDERS
====================================
*/

type GoogleConfig struct {
	ClientID string
}

type RegistrationConfig struct {
	DefaultRole         string
	DefaultCustomerType string
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			RefreshLifetime: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  5,
			LockDuration: 15 * time.Minute,
		},
		OTP: OTPConfig{
			Digits:      6,
			TTL:         10 * time.Minute,
			MaxAttempts: 5,
			RedisPrefix: "aotp",
		},
		PasswordReset: PasswordResetConfig{
			OTPDigits:   6,
			TTL:         10 * time.Minute,
			MaxAttempts: 5,
		},
		Blacklist: BlacklistConfig{
			RedisPrefix: "ablk",
		},
		Cache: CacheConfig{
			Enabled:     true,
			TTL:         time.Hour,
			RedisPrefix: "auc",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Notify: NotifyConfig{
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Registration: RegistrationConfig{
			DefaultRole:         "customer",
			DefaultCustomerType: "retail",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg

	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)

	return out
}

func mergeConfigDefaults(cfg Config) Config {
	def := defaultConfig()

	if cfg.JWT.AccessTTL == 0 {
		cfg.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if cfg.JWT.SigningMethod == "" {
		cfg.JWT.SigningMethod = def.JWT.SigningMethod
	}
	if cfg.Session.RefreshLifetime == 0 {
		cfg.Session.RefreshLifetime = def.Session.RefreshLifetime
	}
	if cfg.Password.Memory == 0 {
		cfg.Password = def.Password
	}
	if cfg.Lockout.MaxAttempts == 0 {
		cfg.Lockout.MaxAttempts = def.Lockout.MaxAttempts
	}
	if cfg.Lockout.LockDuration == 0 {
		cfg.Lockout.LockDuration = def.Lockout.LockDuration
	}
	if cfg.OTP.Digits == 0 {
		cfg.OTP.Digits = def.OTP.Digits
	}
	if cfg.OTP.TTL == 0 {
		cfg.OTP.TTL = def.OTP.TTL
	}
	if cfg.OTP.MaxAttempts == 0 {
		cfg.OTP.MaxAttempts = def.OTP.MaxAttempts
	}
	if cfg.OTP.RedisPrefix == "" {
		cfg.OTP.RedisPrefix = def.OTP.RedisPrefix
	}
	if cfg.PasswordReset.OTPDigits == 0 {
		cfg.PasswordReset.OTPDigits = def.PasswordReset.OTPDigits
	}
	if cfg.PasswordReset.TTL == 0 {
		cfg.PasswordReset.TTL = def.PasswordReset.TTL
	}
	if cfg.PasswordReset.MaxAttempts == 0 {
		cfg.PasswordReset.MaxAttempts = def.PasswordReset.MaxAttempts
	}
	if cfg.Blacklist.RedisPrefix == "" {
		cfg.Blacklist.RedisPrefix = def.Blacklist.RedisPrefix
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}
	if cfg.Cache.RedisPrefix == "" {
		cfg.Cache.RedisPrefix = def.Cache.RedisPrefix
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	if cfg.Notify.BufferSize == 0 {
		cfg.Notify.BufferSize = def.Notify.BufferSize
	}
	if cfg.Registration.DefaultRole == "" {
		cfg.Registration.DefaultRole = def.Registration.DefaultRole
	}
	if cfg.Registration.DefaultCustomerType == "" {
		cfg.Registration.DefaultCustomerType = def.Registration.DefaultCustomerType
	}

	return cfg
}

// Validate rejects configurations the engine cannot run with. Called by
// the builder after defaults are merged.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("jwt access ttl must be positive")
	}
	if c.JWT.SigningMethod != "hs256" && c.JWT.SigningMethod != "ed25519" {
		return errors.New("unsupported jwt signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("jwt private key required")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("jwt leeway out of range")
	}
	if c.Session.RefreshLifetime <= 0 {
		return errors.New("session refresh lifetime must be positive")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be >= 1")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("otp digits must be between 6 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("otp ttl must be positive")
	}
	if c.OTP.MaxAttempts < 1 {
		return errors.New("otp max attempts must be >= 1")
	}
	if c.PasswordReset.OTPDigits < 6 || c.PasswordReset.OTPDigits > 10 {
		return errors.New("reset otp digits must be between 6 and 10")
	}
	if c.PasswordReset.TTL <= 0 {
		return errors.New("reset ttl must be positive")
	}
	if c.PasswordReset.MaxAttempts < 1 {
		return errors.New("reset max attempts must be >= 1")
	}

	return nil
}
