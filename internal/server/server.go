// Package server wires the keygate HTTP API: routing, middleware, and the
// server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/keygatehq/keygate/internal/event"
	"github.com/keygatehq/keygate/internal/handler"
	"github.com/keygatehq/keygate/internal/openapi"
	"github.com/keygatehq/keygate/internal/server/middleware"
	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	LoginRateLimit  int
	KeyRateLimit    int
	RequireSecure   bool
	Version         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		LoginRateLimit:  10,
		KeyRateLimit:    120,
		RequireSecure:   true,
		Version:         "dev",
	}
}

// Server is the top-level HTTP server for keygate. It owns the Chi router,
// the store, the auth service, the issuer, and the registration event bus.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	authSvc    *service.AuthService
	issuer     *service.Issuer
	bus        *event.Bus
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, authSvc *service.AuthService, issuer *service.Issuer, bus *event.Bus, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		authSvc: authSvc,
		issuer:  issuer,
		bus:     bus,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "WWW-Authenticate"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	sysHandler := handler.NewSystemHandler(s.store, s.cfg.Version)
	adminHandler := handler.NewAdminHandler(s.store, s.authSvc)
	accountHandler := handler.NewAccountHandler(s.store, s.bus)
	keyHandler := handler.NewKeyHandler(s.store, s.issuer)

	// --- Health checks (no auth required) ---
	r.Get("/healthz", sysHandler.Health)
	r.Get("/readyz", sysHandler.Ready)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", s.handleOpenAPI)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Admin session endpoints. Login is rate limited to slow down
		// password guessing.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.cfg.LoginRateLimit))
			r.Post("/admin/session", adminHandler.Login)
		})
		r.Delete("/admin/session", adminHandler.Logout)

		// Management endpoints require an admin JWT.
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(s.authSvc))
			r.Use(middleware.RequireAdmin())

			r.Get("/admins", adminHandler.ListAdmins)
			r.Post("/admins", adminHandler.CreateAdmin)

			r.Get("/accounts", accountHandler.List)
			r.Post("/accounts", accountHandler.Register)
			r.Get("/accounts/{accountId}", accountHandler.Get)
			r.Post("/accounts/{accountId}/lock", accountHandler.Lock)
			r.Post("/accounts/{accountId}/unlock", accountHandler.Unlock)
			r.Get("/accounts/{accountId}/keys", accountHandler.ListKeys)

			r.Get("/keys", keyHandler.List)
			r.Post("/keys", keyHandler.Issue)
			r.Delete("/keys/{keyId}", keyHandler.Cancel)
		})

		// Consumer endpoints authenticate with an API key. Rate limiting is
		// keyed on the presented token so one noisy consumer cannot starve
		// the rest.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByCredential(s.cfg.KeyRateLimit))
			r.Use(middleware.APIKeyAuth(s.authSvc, s.cfg.RequireSecure, s.logger))
			r.Use(middleware.RequireSession())

			r.Get("/whoami", handler.Whoami)
		})
	})

	s.router = r
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	doc := openapi.Generate(scheme+"://"+r.Host, s.cfg.Version)

	data, err := doc.MarshalJSON()
	if err != nil {
		http.Error(w, "failed to marshal spec", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
