// Package main is the entry point for the scratchpad server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars, flags, or config files)
// 2. Create dependencies (logger, database connections, etc.)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
// This separation makes the app testable and its components reusable.
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// This project has two: cmd/server (the web app) and cmd/scratchpad (a
// terminal REPL talking to the same agent). Each gets its own main.go.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sakif/scratchpad/internal/executor/python"
	"github.com/sakif/scratchpad/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// slog.New creates a structured logger. slog.NewTextHandler outputs human-readable logs.
	// os.Stdout means logs go to the terminal. slog.LevelDebug enables all log levels.
	//
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	// In production, you'd use LevelInfo or LevelWarn to reduce noise.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ BASIC CONFIGURATION ===
	// os.Getenv returns "" if the variable isn't set, so we check and provide defaults.
	// In a larger app you'd reach for a config library; env vars keep this deployable
	// anywhere a process manager can set an environment.
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// === 3. DATABASE PATH ===
	// Default to "data/scratchpad.db" in the project root; DB_PATH overrides
	// for production deployments (e.g. DB_PATH=/var/lib/scratchpad/prod.db).
	dbPath := "data/scratchpad.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. AUTH CONFIGURATION ===
	// Every useful route sits behind authentication, so a signing secret is
	// not optional. Generate one with: JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is required; generate one with `openssl rand -hex 32`")
		os.Exit(1)
	}

	githubClientID := os.Getenv("GITHUB_CLIENT_ID")
	githubClientSecret := os.Getenv("GITHUB_CLIENT_SECRET")
	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}

	// === 5. EXECUTOR CONFIGURATION ===
	// Start from the defaults (python3 on $PATH, artifacts under the system
	// temp dir, 4 concurrent runs) and override from the environment.
	execCfg := python.DefaultConfig()
	if bin := os.Getenv("PYTHON_BIN"); bin != "" {
		execCfg.PythonBin = bin
	}
	if dir := os.Getenv("ARTIFACTS_DIR"); dir != "" {
		execCfg.ArtifactsRoot = dir
	}
	if maxStr := os.Getenv("MAX_CONCURRENT_RUNS"); maxStr != "" {
		runs, err := strconv.Atoi(maxStr)
		if err != nil || runs < 1 {
			logger.Error("invalid MAX_CONCURRENT_RUNS value", slog.String("value", maxStr))
			os.Exit(1)
		}
		execCfg.MaxConcurrent = runs
	}

	// === 6. MODEL CONFIGURATION ===
	// Without an API key the server still serves everything except chat
	// inference, which is useful for frontend work and direct runs.
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		logger.Warn("ANTHROPIC_API_KEY not set — chat turns will fail until it is")
	}

	// === 7. CREATE AND START THE SERVER ===
	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		JWTSecret:          jwtSecret,
		GitHubClientID:     githubClientID,
		GitHubClientSecret: githubClientSecret,
		GitHubCallbackURL:  githubCallbackURL,
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		Model:              os.Getenv("ANTHROPIC_MODEL"),
		Executor:           execCfg,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
