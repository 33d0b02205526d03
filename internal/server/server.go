package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/betforbes/authflow/internal/accesstoken"
	"github.com/betforbes/authflow/internal/auth"
	"github.com/betforbes/authflow/internal/config"
	"github.com/betforbes/authflow/internal/logger"
	"github.com/betforbes/authflow/internal/server/handlers"
	authmiddleware "github.com/betforbes/authflow/internal/server/middleware"
	"github.com/betforbes/authflow/internal/version"
)

const requestTimeout = 60 * time.Second

// Store is everything the server needs from the database. Implemented by *database.Queries.
type Store interface {
	auth.Store
	handlers.Pinger
}

type Server struct {
	pool    *pgxpool.Pool
	store   Store
	config  *config.StubEnvironment
	logger  *slog.Logger
	router  *chi.Mux
	issuer  *accesstoken.Issuer
	service *auth.Service
}

// NewServer builds the authstub router. pool may be nil when the store is not database backed (tests).
// ctx bounds background work such as delayed verification token writes.
func NewServer(
	ctx context.Context,
	pool *pgxpool.Pool,
	store Store,
	cfg *config.StubEnvironment,
	logger *slog.Logger,
) (*Server, error) {
	issuer, err := newIssuer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token issuer: %w", err)
	}

	logger.Info("access token signing key ready",
		slog.String("kid", issuer.KeyID()),
		slog.Bool("persistent", cfg.SigningKeyPath != ""))

	server := &Server{
		pool:   pool,
		store:  store,
		config: cfg,
		logger: logger,
		router: chi.NewRouter(),
		issuer: issuer,
		service: auth.NewService(ctx, store, issuer, auth.Config{
			TokenWriteDelay:      cfg.TokenWriteDelay,
			VerificationTokenTTL: cfg.VerificationTokenTTL,
			SessionTTL:           cfg.SessionTTL,
			BcryptCost:           cfg.BcryptCost,
		}, logger),
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server, nil
}

func newIssuer(cfg *config.StubEnvironment) (*accesstoken.Issuer, error) {
	if cfg.SigningKeyPath == "" {
		return accesstoken.NewIssuer(cfg.TokenIssuer, cfg.AccessTokenTTL)
	}

	key, err := accesstoken.LoadSigningKey(cfg.SigningKeyPath)
	if err != nil {
		return nil, err
	}
	return accesstoken.NewIssuerWithKey(cfg.TokenIssuer, cfg.AccessTokenTTL, key)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("X-Content-Type-Options", "nosniff"))
	s.router.Use(middleware.Timeout(requestTimeout))
}

func (s *Server) registerRoutes() {
	s.router.Get("/health/live", handlers.HandleHealth)
	s.router.Get("/health/ready", handlers.HandleReadiness(s.store))
	s.router.Get("/version", handlers.HandleVersion(version.Get()))
	s.router.Get("/.well-known/jwks.json", handlers.HandleJWKS(s.issuer.PublicKeySet()))

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Use(authmiddleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
		r.Use(authmiddleware.BodyLimit(s.config.MaxRequestSize))

		r.Post("/register", handlers.HandleRegister(s.service))
		r.Get("/verify-email", handlers.HandleVerifyEmail(s.service))
		r.Post("/login", handlers.HandleLogin(s.service))
	})
}

// Handler exposes the router, e.g. for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr))

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	s.logger.Info("shutting down HTTP server")

	if err := s.shutdown(httpServer); err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// shutdown stops httpServer, then waits for delayed token writes whether or not
// the HTTP shutdown finished in time. The pool must stay open until they land.
func (s *Server) shutdown(httpServer *http.Server) error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	err := httpServer.Shutdown(shutdownCtx)
	s.service.Wait()
	return err
}

func (s *Server) DatabaseShutdown() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("database connection closed")
	}
}
