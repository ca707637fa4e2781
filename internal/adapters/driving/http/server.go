package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/starwatch/internal/core/ports/driven"
	"github.com/custodia-labs/starwatch/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	authService         driving.AuthService
	subscriptionService driving.SubscriptionService
	reconciler          driving.Reconciler
	scheduler           driving.Scheduler

	// Infrastructure
	taskQueue   driven.TaskQueue
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// Deps groups what the server routes to
type Deps struct {
	AuthService         driving.AuthService
	SubscriptionService driving.SubscriptionService
	Reconciler          driving.Reconciler
	Scheduler           driving.Scheduler
	TaskQueue           driven.TaskQueue
	DB                  Pinger
	Redis               Pinger // can be nil
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		router:              http.NewServeMux(),
		version:             cfg.Version,
		authService:         deps.AuthService,
		subscriptionService: deps.SubscriptionService,
		reconciler:          deps.Reconciler,
		scheduler:           deps.Scheduler,
		taskQueue:           deps.TaskQueue,
		db:                  deps.DB,
		redisClient:         deps.Redis,
	}

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: NewRecoveryMiddleware().Handler(
			NewLoggingMiddleware().Handler(s.router)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the root handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleIssueToken)

	// Subscription endpoints
	s.router.Handle("POST /api/v1/subscriptions", protected(s.handleSubscribe))
	s.router.Handle("DELETE /api/v1/subscriptions", protected(s.handleUnsubscribe))
	s.router.Handle("GET /api/v1/users/{handle}/repos", protected(s.handleListUserRepos))

	// Repository endpoints
	s.router.Handle("GET /api/v1/repos", protected(s.handleListRepos))
	s.router.Handle("GET /api/v1/repos/{id}/state", protected(s.handleGetRepoState))
	s.router.Handle("POST /api/v1/repos/{id}/reconcile", protected(s.handleTriggerReconcile))

	// Queue endpoints
	s.router.Handle("GET /api/v1/queue/stats", protected(s.handleQueueStats))
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM or ctx is done,
// then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
