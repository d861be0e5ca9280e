package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/scratchpad/internal/auth"
	"github.com/sakif/scratchpad/internal/model"
	"github.com/sakif/scratchpad/internal/service"
)

// SessionHandler manages the REST side of chat sessions: creating them,
// listing them for the sidebar, fetching a transcript, and deleting them.
// The live conversation itself happens over the websocket (ChatHandler);
// everything here is request/response.
//
// All routes sit behind RequireAuth, so the userID is always in the
// context, and every operation is scoped to it by the service layer.
type SessionHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(chat *service.ChatService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{chat: chat, logger: logger}
}

// HandleCreate starts a new chat session.
//
// HTTP: POST /api/sessions
// BODY: {"title": "optional name"}
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not signed in"})
		return
	}

	// An empty body is fine; the session just gets the default title.
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	session, err := h.chat.StartSession(r.Context(), userID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// HandleList returns the caller's sessions, most recently active first.
//
// HTTP: GET /api/sessions?limit=20&offset=0
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not signed in"})
		return
	}

	// Unparseable numbers fall back to zero; the service applies defaults
	// and clamps, so the handler doesn't police ranges.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	sessions, err := h.chat.ListSessions(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// transcriptResponse bundles a session with its messages. Tool rows carry a
// JSON record in content (see service.ToolRecord); the frontend decodes it
// to render the invocation.
type transcriptResponse struct {
	Session  *model.Session  `json:"session"`
	Messages []model.Message `json:"messages"`
}

// HandleGet returns one session and its full transcript.
//
// HTTP: GET /api/sessions/{id}
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not signed in"})
		return
	}

	session, messages, err := h.chat.GetTranscript(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, transcriptResponse{Session: session, Messages: messages})
}

// HandleDelete removes a session and its transcript.
//
// HTTP: DELETE /api/sessions/{id}
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not signed in"})
		return
	}

	if err := h.chat.DeleteSession(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("session deleted via API", slog.String("sessionID", r.PathValue("id")))
	w.WriteHeader(http.StatusNoContent)
}
