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
// - Clean (main.go stays minimal — just "read env, start the server")
//
// DEPENDENCY INJECTION FLOW:
// main.go passes a Config; New() assembles the whole graph from it:
//
//	sqlite.DB ─┬→ AuthService ──→ AuthHandler
//	           ├→ ChatService ─┬→ SessionHandler
//	           │       ↑       └→ ChatHandler (websocket)
//	           │  llm.Client + tool.Registry
//	python.Executor ─┬→ the code_executor tool (used by ChatService's agent)
//	                 └→ ExecuteHandler (direct REST runs)
//
// This is the "composition root" pattern — all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/scratchpad/internal/auth"
	"github.com/sakif/scratchpad/internal/executor/python"
	"github.com/sakif/scratchpad/internal/handler"
	"github.com/sakif/scratchpad/internal/llm"
	"github.com/sakif/scratchpad/internal/middleware"
	sqliteRepo "github.com/sakif/scratchpad/internal/repository/sqlite"
	"github.com/sakif/scratchpad/internal/service"
	"github.com/sakif/scratchpad/internal/tool"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy to:
// - Add new config options without changing function signatures
// - Pass config around as a single value
// - Load config from files/env vars in one place (main.go)
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs session tokens. The server refuses to start without
	// one; an unsigned or guessably-signed token is an open door.
	JWTSecret string

	// GitHub OAuth is optional. Leave the client ID empty and the server
	// runs with password accounts only.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// AnthropicAPIKey overrides the SDK's environment lookup when set.
	AnthropicAPIKey string
	// Model is stamped onto new sessions; empty falls back to the
	// ANTHROPIC_MODEL environment variable, then the default.
	Model string

	// Executor configures the sandboxed Python runner.
	Executor python.Config
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. When the server shuts down, the
// connection must be closed to flush pending writes and release the file
// lock; Start() handles that during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server and wires the entire dependency graph.
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - Handlers get services (not repositories or the DB)
// - The chat agent gets the executor only through its tool
func New(cfg Config, logger *slog.Logger) (*Server, error) {
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

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware, builds the services, and maps
// every route.
//
// ROUTE STRUCTURE:
//
//	GET    /                          → embedded chat frontend
//	GET    /healthz                   → liveness probe
//	GET    /artifacts/{runID}/{file}  → saved plots (public, unguessable IDs)
//	POST   /api/auth/register         → create account + sign in
//	POST   /api/auth/login            → sign in
//	POST   /api/auth/logout           → clear the auth cookie
//	GET    /auth/github/login         → start the OAuth dance
//	GET    /auth/github/callback      → finish it
//	--- authenticated ---
//	GET    /api/me                    → current user
//	POST   /api/execute               → run Python directly
//	GET    /api/sessions              → list chat sessions
//	POST   /api/sessions              → start a session
//	GET    /api/sessions/{id}         → session + transcript
//	DELETE /api/sessions/{id}         → delete a session
//	GET    /ws/chat?session={id}      → live conversation (websocket)
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// --- auth plumbing ---
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	authService := service.NewAuthService(s.db.Users(), tokens, auth.NewPasswordService(), s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Info("GitHub OAuth not configured, password accounts only")
	}

	// --- execution engine ---
	exec, err := python.New(s.config.Executor, s.logger)
	if err != nil {
		return fmt.Errorf("creating python executor: %w", err)
	}

	// --- model client and tools ---
	var client llm.Client
	if s.config.AnthropicAPIKey != "" {
		client = llm.NewAnthropicClientWithKey(s.config.AnthropicAPIKey)
	} else {
		// The SDK reads ANTHROPIC_API_KEY on its own. Without a key the
		// server still runs; chat turns report the inference failure.
		client = llm.NewAnthropicClient()
	}

	registry := tool.NewRegistry()
	for _, t := range []*tool.Tool{
		tool.NewCodeExecutor(exec),
		tool.NewReadFile(),
		tool.NewListFiles(),
		tool.NewEditFile(),
		tool.NewWebScraper(),
	} {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("registering tool %q: %w", t.Name, err)
		}
	}

	chatService := service.NewChatService(
		s.db.Sessions(), s.db.Messages(), client, registry, s.config.Model, s.logger)

	// --- handlers ---
	appHandler, err := handler.NewAppHandler(s.logger)
	if err != nil {
		return fmt.Errorf("creating app handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	executeHandler := handler.NewExecuteHandler(exec, s.config.Executor.ArtifactsRoot, s.logger)
	sessionHandler := handler.NewSessionHandler(chatService, s.logger)
	chatHandler := handler.NewChatHandler(chatService, s.logger)
	artifactHandler := handler.NewArtifactHandler(s.config.Executor.ArtifactsRoot, s.logger)

	// --- public routes ---
	s.router.Get("/", appHandler.HandleApp)
	s.router.Get("/healthz", handleHealth)

	// Artifacts need no token: run IDs are unguessable, and plot URLs stay
	// shareable.
	s.router.Get("/artifacts/{runID}/{file}", artifactHandler.HandleGet)

	s.router.Post("/api/auth/register", authHandler.HandleRegister)
	s.router.Post("/api/auth/login", authHandler.HandleLogin)
	s.router.Post("/api/auth/logout", authHandler.HandleLogout)
	s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

	// --- authenticated routes ---
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/api/me", authHandler.HandleMe)
		r.Post("/api/execute", executeHandler.HandleExecute)
		r.Post("/api/sessions", sessionHandler.HandleCreate)
		r.Get("/api/sessions", sessionHandler.HandleList)
		r.Get("/api/sessions/{id}", sessionHandler.HandleGet)
		r.Delete("/api/sessions/{id}", sessionHandler.HandleDelete)
		r.Get("/ws/chat", chatHandler.HandleChat)
	})

	return nil
}

// handleHealth answers liveness probes. No auth, no dependencies: if this
// responds, the process is up and routing works.
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases the file lock)
//
// Open websockets do not block shutdown: hijacked connections are outside
// the http.Server's accounting and simply drop when the process exits.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
		// A direct /api/execute call legitimately holds its response for up
		// to the 40 s execution cap, so the write timeout leaves headroom
		// above it. Websockets are unaffected: the upgrade hijacks the
		// connection and clears these deadlines.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
