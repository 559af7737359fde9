// Package authcore is the authentication and session engine for the
// spare-parts commerce platform. It covers registration, password login
// with lockout, phone/email OTP login, Google sign-in, refresh-token
// rotation with reuse detection, logout, password reset, and explicit
// access-token revocation.
//
// The engine owns the flow logic only. User records live behind the
// CredentialStore interface (a PostgreSQL implementation ships in
// pgstore), while OTP codes, the token blacklist, and the redacted-user
// cache live in redis. Construct engines with the Builder:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithCredentialStore(store).
//		WithNotificationSender(sender).
//		Build()
//	if err != nil { ... }
//	defer engine.Close()
package authcore
