// Command authd runs the auth service: the engine, its PostgreSQL
// credential store, redis-backed transient stores, and the HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veloxparts/authcore"
	"github.com/veloxparts/authcore/httpapi"
	"github.com/veloxparts/authcore/notify"
	"github.com/veloxparts/authcore/pgstore"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("authd exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtKey := os.Getenv("JWT_SECRET")
	if jwtKey == "" {
		return errors.New("JWT_SECRET is required")
	}

	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgstore.Migrate(pool); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	cfg := authcore.Config{}
	cfg.JWT.PrivateKey = []byte(jwtKey)
	cfg.JWT.Issuer = envOr("JWT_ISSUER", "veloxparts")
	cfg.Google.ClientID = os.Getenv("GOOGLE_CLIENT_ID")

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(pgstore.New(pool)).
		WithNotificationSender(buildSender(logger)).
		WithAuditSink(authcore.NewZapSink(logger.Named("audit"))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	server := httpapi.NewServer(engine, logger, httpapi.Config{
		AllowedOrigins: strings.Split(envOr("CORS_ORIGINS", "*"), ","),
	})

	httpServer := &http.Server{
		Addr:              envOr("LISTEN_ADDR", ":8080"),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildSender wires SMTP for email when configured and logs everything
// else. SMS has no gateway in this deployment and stays log-only.
func buildSender(logger *zap.Logger) authcore.NotificationSender {
	logSender := notify.NewZapSender(logger.Named("notify"))

	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return notify.NewMux().
			Register(authcore.ChannelEmail, logSender).
			Register(authcore.ChannelSMS, logSender)
	}

	port, err := strconv.Atoi(envOr("SMTP_PORT", "465"))
	if err != nil {
		port = 465
	}

	return notify.NewMux().
		Register(authcore.ChannelEmail, notify.NewSMTPSender(notify.SMTPConfig{
			Host:     host,
			Port:     port,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("SMTP_FROM", "no-reply@veloxparts.example"),
		})).
		Register(authcore.ChannelSMS, logSender)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
