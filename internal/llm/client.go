// Package llm wraps the Anthropic Messages API behind a small client
// interface so the agent loop and chat service never touch SDK types.
package llm

import (
	"context"
	"encoding/json"
	"os"
)

// DefaultModel is used when no model is configured anywhere else.
const DefaultModel = "claude-3-5-haiku-20241022"

// DefaultMaxTokens bounds a single completion.
const DefaultMaxTokens = 8192

// ModelFromEnv returns the model named by ANTHROPIC_MODEL, falling back to
// DefaultModel.
func ModelFromEnv() string {
	if m := os.Getenv("ANTHROPIC_MODEL"); m != "" {
		return m
	}
	return DefaultModel
}

// Role identifies a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. An assistant turn may carry tool
// calls; the user turn that follows carries the matching tool results.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolCall is a model request to run a named tool. Input is the raw JSON
// argument object exactly as the model produced it.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult feeds one tool invocation's outcome back to the model.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ToolDefinition describes a tool offered to the model. Properties holds the
// JSON Schema properties object; Required names the mandatory parameters.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Properties  json.RawMessage `json:"properties"`
	Required    []string        `json:"required,omitempty"`
}

// StopReason says why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopToolUse   StopReason = "tool_use"
)

// Usage counts tokens consumed by one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Request is a single completion call. A zero MaxTokens means
// DefaultMaxTokens.
type Request struct {
	Model     string           `json:"model"`
	System    string           `json:"system,omitempty"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// Response is the model's reply flattened into text plus tool calls.
type Response struct {
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

// Client runs completions against a chat model.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
