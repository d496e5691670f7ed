// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just "start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config from the environment and passes it here.
// New() creates: sqlite.DB → feed.Feed → services → handlers → routes.
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mshiraki/hibi/internal/auth"
	"github.com/mshiraki/hibi/internal/feed"
	"github.com/mshiraki/hibi/internal/handler"
	"github.com/mshiraki/hibi/internal/middleware"
	sqliteRepo "github.com/mshiraki/hibi/internal/repository/sqlite"
	"github.com/mshiraki/hibi/internal/service"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy to:
// - Add new config options without changing function signatures
// - Pass config around as a single value
// - Load config from files/env vars in one place
type Config struct {
	Port      int
	DBPath    string // path to the SQLite database file
	JWTSecret string // HMAC key for signing session tokens

	// Google OAuth credentials. Leave empty to run without the browser
	// login flow (the email+password endpoints still work).
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection (db). When the server shuts down,
// we must close this connection to flush any pending writes and release the
// file lock. This is handled in Start() during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
// This is where the entire dependency chain is assembled:
//  1. Create the database connection (sqlite.New)
//  2. Create the snapshot feed (feed.New) shared by the entry service and stream
//  3. Create the service layer with the DB and feed
//  4. Create the handlers with the services
//  5. Wire handlers to routes
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - Handlers get the services (not the repositories or DB)
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package. Import aliases are common in Go when
// package names would otherwise collide or be unclear.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Set up middleware and routes
	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /auth/register         → Create an email+password account
// POST   /auth/login            → Email+password sign-in (JWT cookie + body)
// GET    /auth/google/login     → Redirect to Google's consent page
// GET    /auth/google/callback  → Complete the OAuth flow
// POST   /auth/logout           → Clear the session cookie
// GET    /api/me                → Current user's profile        [auth]
// PATCH  /api/me                → Change the display name       [auth]
// GET    /api/entries           → Current snapshot (JSON)       [auth]
// GET    /api/entries/stream    → Live snapshot feed (SSE)      [auth]
// PUT    /api/entries/{id}      → Create or replace an entry    [auth]
// DELETE /api/entries/{id}      → Delete an entry (idempotent)  [auth]
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	// These run on EVERY request, in order

	// Chi's built-in middleware
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500

	// Our custom logging middleware
	s.router.Use(middleware.Logger(s.logger))

	// === Auth Plumbing ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
	)

	// === Services ===
	// DEPENDENCY CHAIN:
	//   s.db (sqlite.DB) implements both repository interfaces.
	//   The feed is shared: EntryService publishes into it after every
	//   mutation; the stream handler reads from it via Watch.
	//
	// Notice: the handlers never touch the database directly.
	// The services never touch HTTP. Clean separation!
	entryFeed := feed.New()
	entryService := service.NewEntryService(s.db, entryFeed, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, google, s.logger)
	entryHandler := handler.NewEntryHandler(entryService, s.logger)
	streamHandler := handler.NewStreamHandler(entryService, s.logger)

	// === Public Routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
	})

	// === Protected Routes ===
	// RequireAuth rejects requests without a valid JWT (cookie or Bearer
	// header) before any handler runs, so handlers can assume an identity.
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)
		r.Patch("/me", authHandler.HandleUpdateMe)

		r.Get("/entries", entryHandler.HandleList)
		r.Get("/entries/stream", streamHandler.HandleStream)
		r.Put("/entries/{id}", entryHandler.HandleUpsert)
		r.Delete("/entries/{id}", entryHandler.HandleDelete)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
//
// Open SSE streams never finish on their own, so Shutdown alone would hang
// on them until the timeout. We give the server a cancellable BaseContext
// and cancel it before calling Shutdown: every stream handler sees its
// request context end, returns, and releases its feed subscription.
//
// If we skip step 3, the database file might be left in an inconsistent state.
// The `defer s.db.Close()` ensures this happens even if something panics.
func (s *Server) Start() error {
	// Ensure the database is closed when the server stops.
	// This runs AFTER everything else in this function finishes.
	defer s.db.Close()

	// baseCtx is the parent of every request context. Cancelling it is how
	// we tell long-lived SSE streams to wind down.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	// Create the HTTP server.
	// WriteTimeout is deliberately 0: the SSE stream endpoint holds its
	// response open indefinitely, and a write deadline would kill every
	// stream after that interval. Read-side timeouts still apply.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		// Server failed to start
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		// Received shutdown signal
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// End the open SSE streams first, otherwise Shutdown would wait
		// the full timeout for connections that never close themselves.
		stopStreams()

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
