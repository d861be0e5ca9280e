// Package handler contains the HTTP and WebSocket handlers for the scratchpad application.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc — a function with the right signature
// that automatically satisfies the Handler interface. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, body, headers)
// 2. Call the service layer (or the executor, for direct runs)
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic — they are the "glue" between HTTP
// and the services. The one exception is HandleChat, which owns the WebSocket
// framing because that framing IS transport concern, not business logic.
package handler

import (
	"embed"
	"log/slog"
	"net/http"
)

// The web directory is compiled into the binary at build time, so the server
// is a single self-contained executable with no asset files to deploy
// alongside it.
//
//go:embed web
var webFS embed.FS

// AppHandler serves the chat frontend.
//
// WHY A STRUCT?
// By using a struct, we can:
// 1. Read the embedded page once at startup (cheap anyway, but uniform with the rest)
// 2. Inject dependencies (logger) without global variables
// 3. Group related handlers together
type AppHandler struct {
	index  []byte
	logger *slog.Logger
}

// NewAppHandler loads the embedded frontend page.
//
// go:embed guarantees web/index.html exists at compile time, so the error
// branch here only fires if the embed directive itself is broken. Returning
// the error anyway keeps the constructor shape consistent with the handlers
// that can genuinely fail to build.
func NewAppHandler(logger *slog.Logger) (*AppHandler, error) {
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		return nil, err
	}

	return &AppHandler{
		index:  page,
		logger: logger,
	}, nil
}

// HandleApp serves the single-page chat frontend.
//
// HTTP FLOW:
// 1. Browser sends GET / request
// 2. Chi router matches "/" and calls this handler
// 3. We write the embedded HTML as-is; all dynamic behaviour lives in the
//    page's own JavaScript, which talks back to /api and /ws/chat
func (h *AppHandler) HandleApp(w http.ResponseWriter, r *http.Request) {
	// Set content type header BEFORE writing the body
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(h.index); err != nil {
		// The client went away mid-write; nothing to send, just record it.
		h.logger.Debug("failed to write frontend page",
			slog.String("error", err.Error()),
		)
	}
}
