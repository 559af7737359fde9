// Package httpapi is the thin HTTP boundary over the auth engine: a chi
// router exposing the /auth routes with the platform's uniform response
// envelope.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/veloxparts/authcore"
)

// Server wires the engine's operations to routes.
type Server struct {
	engine *authcore.Engine
	log    *zap.Logger
	router chi.Router
}

type Config struct {
	AllowedOrigins []string
}

func NewServer(engine *authcore.Engine, logger *zap.Logger, cfg Config) *Server {
	s := &Server{
		engine: engine,
		log:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/phone/send-otp", s.handleSendPhoneOTP)
		r.Post("/phone/verify-otp", s.handleVerifyPhoneOTP)
		r.Post("/email/send-otp", s.handleSendEmailOTP)
		r.Post("/email/verify-otp", s.handleVerifyEmailOTP)
		r.Post("/google", s.handleGoogleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/logout", s.handleLogout)
			r.Post("/all-logouts", s.handleLogoutAll)
		})
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

type identityContextKey struct{}

// requireAuth validates the bearer token, engine-side blacklist check
// included, and stores the resulting identity on the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, authcore.ErrMissingToken)
			return
		}

		identity, err := s.engine.Validate(r.Context(), token)
		if err != nil {
			respondError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromRequest(r *http.Request) *authcore.AccessIdentity {
	identity, _ := r.Context().Value(identityContextKey{}).(*authcore.AccessIdentity)
	return identity
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// requestContext decorates ctx with the caller's IP and device so the
// engine can stamp session entries and audit events.
func requestContext(r *http.Request) context.Context {
	ctx := authcore.WithClientIP(r.Context(), r.RemoteAddr)
	return authcore.WithDevice(ctx, r.UserAgent())
}
