package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/sakif/scratchpad/internal/apperror"
	"github.com/sakif/scratchpad/internal/auth"
	"github.com/sakif/scratchpad/internal/llm"
	"github.com/sakif/scratchpad/internal/service"
)

// Frame types on the chat websocket. The client only ever sends "message";
// the server mirrors the agent's event stream back as the other four.
const (
	frameSessionInit = "session_init"
	frameAssistant   = "assistant"
	frameToolStart   = "tool_start"
	frameToolResult  = "tool_result"
	frameError       = "error"
	frameMessage     = "message"
)

// maxFrameBytes bounds one incoming frame. Comfortably above the service's
// message length cap, so the limit users actually hit is the friendly one.
const maxFrameBytes = 512 * 1024

// wsFrame is the single JSON shape flowing both ways on the socket.
//
//	server → client: {"type":"session_init","content":"<model>"}
//	                 {"type":"assistant","content":"..."}
//	                 {"type":"tool_start","name":"code_executor","content":"<input JSON>"}
//	                 {"type":"tool_result","content":"...","isError":true}
//	                 {"type":"error","content":"..."}
//	client → server: {"type":"message","content":"..."}
type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
	IsError bool   `json:"isError,omitempty"`
}

// ChatHandler runs live conversations over a websocket.
//
// WHY A WEBSOCKET AND NOT PLAIN POSTS?
// One user message can produce many events (assistant text, several tool
// invocations, more text) spread over tens of seconds while Python runs.
// A request/response API could only deliver them all at the end; the socket
// delivers each one the moment the agent produces it.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// HandleChat upgrades the connection and pumps conversation turns until the
// client hangs up.
//
// HTTP: GET /ws/chat?session=<id>
// Auth: Required (the JWT cookie rides along on the upgrade request)
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "not signed in"})
		return
	}

	// Ownership is checked before the upgrade so a rejected client gets a
	// real HTTP status instead of an immediately-closing socket.
	sessionID := r.URL.Query().Get("session")
	session, err := h.chat.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	sock, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	sock.SetReadLimit(maxFrameBytes)

	conn := &wsConn{sock: sock}
	defer conn.close(websocket.StatusInternalError, "unexpected shutdown")

	ctx := r.Context()

	// The first frame tells the client which model this session talks to.
	if err := conn.writeFrame(ctx, wsFrame{Type: frameSessionInit, Content: session.Model}); err != nil {
		return
	}

	h.logger.Info("chat connected",
		slog.String("sessionID", sessionID),
		slog.String("userID", userID),
	)

	for {
		data, err := conn.readMessage(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				h.logger.Debug("chat disconnected", slog.String("sessionID", sessionID))
			} else {
				h.logger.Warn("websocket read failed",
					slog.String("sessionID", sessionID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var in wsFrame
		if err := json.Unmarshal(data, &in); err != nil {
			_ = conn.writeFrame(ctx, wsFrame{Type: frameError, Content: "invalid frame"})
			continue
		}
		if in.Type != frameMessage {
			_ = conn.writeFrame(ctx, wsFrame{Type: frameError, Content: fmt.Sprintf("unknown frame type %q", in.Type)})
			continue
		}

		sink := &wsSink{ctx: ctx, conn: conn, logger: h.logger}
		if err := h.chat.SendMessage(ctx, userID, sessionID, in.Content, sink); err != nil {
			if h.reportTurnError(ctx, conn, err) {
				continue
			}
			return
		}
	}
}

// reportTurnError surfaces a failed turn to the client and reports whether
// the connection is still worth keeping. Validation problems are the
// client's to fix and the socket stays open; anything else (session deleted
// mid-chat, storage trouble) ends the conversation.
func (h *ChatHandler) reportTurnError(ctx context.Context, conn *wsConn, err error) (keep bool) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		_ = conn.writeFrame(ctx, wsFrame{Type: frameError, Content: appErr.Message})
		if errors.Is(err, apperror.ErrValidation) {
			return true
		}
		conn.close(websocket.StatusPolicyViolation, "session unavailable")
		return false
	}

	h.logger.Error("chat turn failed", slog.String("error", err.Error()))
	_ = conn.writeFrame(ctx, wsFrame{Type: frameError, Content: "An internal error occurred"})
	conn.close(websocket.StatusInternalError, "turn failed")
	return false
}

// wsConn wraps the socket with a write mutex. The websocket protocol does
// not allow concurrent writes, and while the turn loop is single-threaded
// today, the mutex keeps the invariant local instead of distributed over
// every caller.
type wsConn struct {
	sock *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

func (c *wsConn) writeFrame(ctx context.Context, f wsFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) readMessage(ctx context.Context) ([]byte, error) {
	_, data, err := c.sock.Read(ctx)
	return data, err
}

func (c *wsConn) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		_ = c.sock.Close(code, reason)
	})
}

// wsSink forwards agent events to the client as frames. Write failures mean
// the client is gone; the turn keeps running so the transcript still fills
// in, and the frames are simply dropped.
type wsSink struct {
	ctx    context.Context
	conn   *wsConn
	logger *slog.Logger
}

func (s *wsSink) AssistantText(text string) {
	s.send(wsFrame{Type: frameAssistant, Content: text})
}

func (s *wsSink) ToolStart(call llm.ToolCall) {
	s.send(wsFrame{Type: frameToolStart, Name: call.Name, Content: prettyJSON(call.Input)})
}

func (s *wsSink) ToolResult(result llm.ToolResult) {
	s.send(wsFrame{Type: frameToolResult, Content: result.Content, IsError: result.IsError})
}

func (s *wsSink) send(f wsFrame) {
	if err := s.conn.writeFrame(s.ctx, f); err != nil {
		s.logger.Debug("dropping frame, client gone", slog.String("type", f.Type))
	}
}

// prettyJSON re-indents a raw JSON value for display. Unparseable input is
// returned as-is; display formatting is never worth failing a turn over.
func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
