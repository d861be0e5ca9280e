// Package agent drives the conversation loop between a chat model and the
// tool registry.
//
// One Send appends the user's text to the history and then cycles: complete,
// surface assistant text, run every requested tool, feed the results back as
// a user turn, and complete again until a response carries no tool calls.
// Presentation is delegated to a Sink so the terminal and the web socket
// front ends render identical traffic.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sakif/scratchpad/internal/llm"
	"github.com/sakif/scratchpad/internal/tool"
)

// inferenceErrorText is surfaced as the assistant's reply when the model
// call itself fails. The conversation stays usable afterwards.
const inferenceErrorText = "Error during inference."

// Sink receives conversation events as the loop produces them.
type Sink interface {
	AssistantText(text string)
	ToolStart(call llm.ToolCall)
	ToolResult(result llm.ToolResult)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) AssistantText(string)      {}
func (NopSink) ToolStart(llm.ToolCall)    {}
func (NopSink) ToolResult(llm.ToolResult) {}

var _ Sink = NopSink{}

// Config tunes a new Agent. Zero values fall back to the environment model,
// a discarding sink, and slog.Default.
type Config struct {
	Model   string
	System  string
	Sink    Sink
	Logger  *slog.Logger
	History []llm.Message
}

// Agent holds one conversation and the tools the model may call.
type Agent struct {
	client  llm.Client
	tools   *tool.Registry
	defs    []llm.ToolDefinition
	model   string
	system  string
	sink    Sink
	logger  *slog.Logger
	history []llm.Message
}

// New builds an agent over the given client and registry.
func New(client llm.Client, tools *tool.Registry, cfg Config) *Agent {
	if cfg.Model == "" {
		cfg.Model = llm.ModelFromEnv()
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Agent{
		client:  client,
		tools:   tools,
		defs:    definitions(tools, cfg.Logger),
		model:   cfg.Model,
		system:  cfg.System,
		sink:    cfg.Sink,
		logger:  cfg.Logger,
		history: append([]llm.Message(nil), cfg.History...),
	}
}

// Model returns the model this agent completes with.
func (a *Agent) Model() string { return a.model }

// History returns a copy of the conversation so far.
func (a *Agent) History() []llm.Message {
	return append([]llm.Message(nil), a.history...)
}

// Send appends one user message and runs the loop until the model finishes
// its turn. A model failure is reported through the sink as assistant text
// and does not end the conversation; only context cancellation returns an
// error.
func (a *Agent) Send(ctx context.Context, text string) error {
	a.history = append(a.history, llm.Message{Role: llm.RoleUser, Content: text})

	for {
		resp, err := a.client.Complete(ctx, llm.Request{
			Model:    a.model,
			System:   a.system,
			Messages: a.history,
			Tools:    a.defs,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("inference failed", "model", a.model, "error", err)
			a.history = append(a.history, llm.Message{Role: llm.RoleAssistant, Content: inferenceErrorText})
			a.sink.AssistantText(inferenceErrorText)
			return nil
		}

		a.logger.Debug("completion",
			"stop_reason", resp.StopReason,
			"tool_calls", len(resp.ToolCalls),
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens)

		a.history = append(a.history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if resp.Content != "" {
			a.sink.AssistantText(resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			return nil
		}

		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			results = append(results, a.invoke(ctx, call))
		}
		a.history = append(a.history, llm.Message{Role: llm.RoleUser, ToolResults: results})
	}
}

func (a *Agent) invoke(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	a.sink.ToolStart(call)

	result := llm.ToolResult{ToolUseID: call.ID}

	t, ok := a.tools.Get(call.Name)
	if !ok {
		a.logger.Warn("model requested unknown tool", "tool", call.Name)
		result.Content = "tool not found"
		result.IsError = true
		a.sink.ToolResult(result)
		return result
	}

	content, err := t.Run(ctx, call.Input)
	if err != nil {
		result.Content = err.Error()
		result.IsError = true
	} else {
		result.Content = content
	}
	a.sink.ToolResult(result)
	return result
}

// definitions translates the registry's schemas into tool definitions for
// the model.
func definitions(reg *tool.Registry, logger *slog.Logger) []llm.ToolDefinition {
	all := reg.All()
	defs := make([]llm.ToolDefinition, 0, len(all))
	for _, t := range all {
		props := t.InputSchema.Properties
		if props == nil {
			props = map[string]tool.Property{}
		}
		raw, err := json.Marshal(props)
		if err != nil {
			logger.Warn("skipping tool with unmarshalable schema", "tool", t.Name, "error", err)
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Properties:  raw,
			Required:    t.InputSchema.Required,
		})
	}
	return defs
}
