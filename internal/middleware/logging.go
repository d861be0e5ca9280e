// Package middleware contains the HTTP middleware this server adds on top
// of chi's stock set.
//
// WHAT IS MIDDLEWARE?
// Middleware is a function that wraps an HTTP handler to add cross-cutting
// behaviour (logging, auth, panic recovery) without modifying the handler:
//
//	func MyMiddleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // before the handler runs
//	        next.ServeHTTP(w, r)
//	        // after the handler runs
//	    })
//	}
//
// Chi ships RequestID, RealIP, and Recoverer, and auth lives next to the
// token code in the auth package. The one piece chi does not provide in the
// shape we want is a slog-based access log, so that lives here.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture what the handler did
// with it. The standard interface is write-only: once a handler has run,
// there is no way to ask the writer which status went out, so the wrapper
// records it on the way through.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		// net/http sends an implicit 200 on the first Write
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController. Without
// it the chat websocket could not be hijacked behind this middleware: the
// upgrade needs the real connection, and the controller finds it by walking
// Unwrap chains.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns middleware that writes one structured line per request:
// method, path, status, duration, and response size, tied to chi's request
// ID when one is present.
//
// Server errors log at Error and client errors at Warn, so scanning the log
// at its default level surfaces trouble without grepping for status codes.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w}

			next.ServeHTTP(wrapped, r)

			status := wrapped.status
			if status == 0 {
				// Nothing was written through the wrapper. Either the
				// handler sent no body (net/http's implicit 200) or it
				// hijacked the connection for a websocket and wrote the
				// 101 directly to the socket.
				if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
					status = http.StatusSwitchingProtocols
				} else {
					status = http.StatusOK
				}
			}

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.bytes),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("requestId", reqID))
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request completed", attrs...)
			case status >= http.StatusBadRequest:
				logger.Warn("request completed", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}
