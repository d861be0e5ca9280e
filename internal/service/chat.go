// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP/WS layer)   → parses requests, writes responses and frames
//	Service (business layer)  → validates, enforces ownership, orchestrates
//	Repository (data layer)   → reads/writes SQLite
//
// Handlers know about HTTP, services know about rules, repositories know
// about SQL, and none of them reaches across two layers. The payoff shows
// up in the tests: ChatService is tested with an in-memory repository and a
// scripted model client, no HTTP and no database anywhere.
//
// ChatService is where the pieces of a conversation turn meet: it loads the
// stored transcript, hands it to the agent loop together with the model
// client and tool registry, and persists everything the loop produces. The
// terminal front end skips this package entirely (it keeps no transcript);
// the web front end drives every turn through it.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/scratchpad/internal/agent"
	"github.com/sakif/scratchpad/internal/apperror"
	"github.com/sakif/scratchpad/internal/llm"
	"github.com/sakif/scratchpad/internal/model"
	"github.com/sakif/scratchpad/internal/repository"
	"github.com/sakif/scratchpad/internal/tool"
)

const (
	// DefaultSessionTitle is used until the first message names the session.
	DefaultSessionTitle = "New session"

	MaxTitleLength   = 100
	MaxMessageLength = 100000

	DefaultListLimit = 20
	MaxListLimit     = 100

	// autoTitleLength caps titles derived from the first user message.
	autoTitleLength = 60
)

// ChatService owns the conversation lifecycle: sessions, transcripts, and
// running agent turns against the model.
type ChatService struct {
	sessions repository.SessionRepository
	messages repository.MessageRepository
	client   llm.Client
	tools    *tool.Registry
	model    string
	logger   *slog.Logger
}

// NewChatService creates a ChatService. model is the Anthropic model stamped
// onto new sessions; empty means "resolve from the environment".
func NewChatService(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	client llm.Client,
	tools *tool.Registry,
	model string,
	logger *slog.Logger,
) *ChatService {
	if model == "" {
		model = llm.ModelFromEnv()
	}
	return &ChatService{
		sessions: sessions,
		messages: messages,
		client:   client,
		tools:    tools,
		model:    model,
		logger:   logger,
	}
}

// ToolRecord is the JSON stored in a transcript row with role "tool": one
// tool invocation folded together with its result. Transcript renderers
// decode it to show what ran and what came back.
type ToolRecord struct {
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input,omitempty"`
	Content string          `json:"content"`
	IsError bool            `json:"isError,omitempty"`
}

// StartSession creates a new session for ownerID. An empty title gets the
// default; the first message will replace it.
func (s *ChatService) StartSession(ctx context.Context, ownerID, title string) (*model.Session, error) {
	if ownerID == "" {
		return nil, apperror.ValidationFailed("owner", "owner is required")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultSessionTitle
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}

	session := &model.Session{
		OwnerID: ownerID,
		Title:   title,
		Model:   s.model,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("failed to create session",
			slog.String("ownerID", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/chat: creating session: %w", err)
	}

	s.logger.Info("session started",
		slog.String("sessionID", session.ID),
		slog.String("ownerID", ownerID),
		slog.String("model", session.Model),
	)

	return session, nil
}

// ListSessions returns the owner's sessions, most recently active first.
func (s *ChatService) ListSessions(ctx context.Context, ownerID string, limit, offset int) ([]model.Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.sessions.ListByOwner(ctx, ownerID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list sessions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/chat: listing sessions: %w", err)
	}

	return sessions, nil
}

// GetSession returns the session if ownerID owns it. The websocket handler
// uses this on connect, before any frames flow.
func (s *ChatService) GetSession(ctx context.Context, ownerID, sessionID string) (*model.Session, error) {
	return s.authorize(ctx, ownerID, sessionID)
}

// GetTranscript returns a session together with its full message history.
func (s *ChatService) GetTranscript(ctx context.Context, ownerID, sessionID string) (*model.Session, []model.Message, error) {
	session, err := s.authorize(ctx, ownerID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/chat: loading transcript: %w", err)
	}

	return session, messages, nil
}

// DeleteSession removes a session and its transcript.
func (s *ChatService) DeleteSession(ctx context.Context, ownerID, sessionID string) error {
	if _, err := s.authorize(ctx, ownerID, sessionID); err != nil {
		return err
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("service/chat: deleting session: %w", err)
	}

	s.logger.Info("session deleted",
		slog.String("sessionID", sessionID),
		slog.String("ownerID", ownerID),
	)
	return nil
}

// SendMessage runs one conversation turn: persist the user's message, replay
// the stored transcript into a fresh agent, run the turn, and persist
// everything the agent produces. Events stream to sink as they happen, so a
// websocket can render the turn live while the transcript fills in behind it.
//
// The returned error is nil for model-level failures (those surface inside
// the transcript as an assistant apology, same as the terminal front end);
// it is non-nil for context cancellation and persistence failures.
func (s *ChatService) SendMessage(ctx context.Context, ownerID, sessionID, text string, sink agent.Sink) error {
	if strings.TrimSpace(text) == "" {
		return apperror.ValidationFailed("content", "message must not be empty")
	}
	if len(text) > MaxMessageLength {
		return apperror.ValidationFailed("content",
			fmt.Sprintf("message must be %d characters or less", MaxMessageLength))
	}

	session, err := s.authorize(ctx, ownerID, sessionID)
	if err != nil {
		return err
	}

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return err
	}

	// The user's message is durable before any inference happens. If the
	// model call dies, the transcript still shows what was asked.
	userMsg := &model.Message{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   text,
	}
	if err := s.messages.Append(ctx, userMsg); err != nil {
		return fmt.Errorf("service/chat: persisting user message: %w", err)
	}

	if sink == nil {
		sink = agent.NopSink{}
	}
	recorder := &transcriptSink{
		service:   s,
		ctx:       ctx,
		sessionID: sessionID,
		next:      sink,
		pending:   make(map[string]llm.ToolCall),
	}

	ag := agent.New(s.client, s.tools, agent.Config{
		Model:   session.Model,
		Sink:    recorder,
		Logger:  s.logger,
		History: history,
	})

	if err := ag.Send(ctx, text); err != nil {
		return fmt.Errorf("service/chat: sending message: %w", err)
	}

	// Activity bookkeeping is best-effort; the turn itself already succeeded.
	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		s.logger.Warn("failed to touch session",
			slog.String("sessionID", sessionID),
			slog.String("error", err.Error()),
		)
	}
	if session.Title == DefaultSessionTitle {
		if title := autoTitle(text); title != "" {
			if err := s.sessions.Rename(ctx, sessionID, title); err != nil {
				s.logger.Warn("failed to auto-title session",
					slog.String("sessionID", sessionID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return nil
}

// authorize fetches the session and checks ownership. Wrong owner gets
// apperror.ErrForbidden; the handler maps that to 403 while a missing
// session stays a 404.
func (s *ChatService) authorize(ctx context.Context, ownerID, sessionID string) (*model.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperror.ValidationFailed("id", "session ID is required")
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.OwnerID != ownerID {
		return nil, apperror.Forbidden("you do not own this session")
	}

	return session, nil
}

// loadHistory rebuilds the agent's conversation history from stored rows.
//
// Only user and assistant text rows are replayed. Tool rows are display
// data: replaying them would mean reconstructing tool_use/tool_result block
// pairs whose IDs the API no longer knows about, and the text surrounding
// them already carries what the model needs to stay coherent.
func (s *ChatService) loadHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	stored, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading history: %w", err)
	}

	history := make([]llm.Message, 0, len(stored))
	for _, msg := range stored {
		switch msg.Role {
		case model.RoleUser:
			history = append(history, llm.Message{Role: llm.RoleUser, Content: msg.Content})
		case model.RoleAssistant:
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: msg.Content})
		}
	}

	return history, nil
}

// autoTitle derives a session title from the first user message: the first
// line, trimmed and capped.
func autoTitle(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)

	runes := []rune(line)
	if len(runes) > autoTitleLength {
		line = string(runes[:autoTitleLength]) + "..."
	}
	return line
}

// transcriptSink persists agent events as transcript rows and forwards them
// to the caller's sink. Persistence failures are logged, not fatal: the
// live conversation should not die because one row failed to write.
//
// The context is captured at construction; the sink only lives for the one
// Send call the context belongs to.
type transcriptSink struct {
	service   *ChatService
	ctx       context.Context
	sessionID string
	next      agent.Sink
	pending   map[string]llm.ToolCall
}

var _ agent.Sink = (*transcriptSink)(nil)

func (t *transcriptSink) AssistantText(text string) {
	msg := &model.Message{
		SessionID: t.sessionID,
		Role:      model.RoleAssistant,
		Content:   text,
	}
	if err := t.service.messages.Append(t.ctx, msg); err != nil {
		t.service.logger.Error("failed to persist assistant message",
			slog.String("sessionID", t.sessionID),
			slog.String("error", err.Error()),
		)
	}
	t.next.AssistantText(text)
}

func (t *transcriptSink) ToolStart(call llm.ToolCall) {
	// Held until the result arrives; one row stores the whole invocation.
	t.pending[call.ID] = call
	t.next.ToolStart(call)
}

func (t *transcriptSink) ToolResult(result llm.ToolResult) {
	call := t.pending[result.ToolUseID]
	delete(t.pending, result.ToolUseID)

	record := ToolRecord{
		Name:    call.Name,
		Input:   call.Input,
		Content: result.Content,
		IsError: result.IsError,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		t.service.logger.Error("failed to encode tool record",
			slog.String("sessionID", t.sessionID),
			slog.String("error", err.Error()),
		)
	} else {
		msg := &model.Message{
			SessionID: t.sessionID,
			Role:      model.RoleTool,
			Content:   string(payload),
		}
		if err := t.service.messages.Append(t.ctx, msg); err != nil {
			t.service.logger.Error("failed to persist tool record",
				slog.String("sessionID", t.sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	t.next.ToolResult(result)
}
