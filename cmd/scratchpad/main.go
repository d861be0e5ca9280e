// Package main is a terminal front end for the scratchpad agent.
//
// Same brain as the web app, no server: the agent, the tool registry, and
// the Python executor run in this process, and the conversation lives only
// as long as it does. Useful for quick experiments and for working on tools
// without a browser in the loop.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/scratchpad/internal/agent"
	"github.com/sakif/scratchpad/internal/executor/python"
	"github.com/sakif/scratchpad/internal/llm"
	"github.com/sakif/scratchpad/internal/tool"
)

func main() {
	// The transcript owns stdout; logs go to stderr and only when something
	// is actually wrong.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	execCfg := python.DefaultConfig()
	if bin := os.Getenv("PYTHON_BIN"); bin != "" {
		execCfg.PythonBin = bin
	}
	exec, err := python.New(execCfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
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
			fmt.Fprintf(os.Stderr, "error: registering tool %q: %v\n", t.Name, err)
			os.Exit(1)
		}
	}

	ag := agent.New(llm.NewAnthropicClient(), registry, agent.Config{
		Sink:   consoleSink{},
		Logger: logger,
	})

	fmt.Println("Chat with Claude (use 'ctrl-c' to quit)")

	// Ctrl-C is the advertised exit and the default SIGINT behaviour already
	// does the right thing, so no handler is installed. Ctrl-D (EOF) falls
	// out of the scan loop below.
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n\U0001F9D1 \033[94mYou\033[0m: ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		// Send only errors on context cancellation; model failures come
		// back through the sink as assistant text.
		if err := ag.Send(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
	}

	fmt.Println()
}

// consoleSink renders agent events as colored terminal lines.
type consoleSink struct{}

var _ agent.Sink = consoleSink{}

func (consoleSink) AssistantText(text string) {
	fmt.Printf("\U0001F916 \033[93mClaude\033[0m: %s\n", text)
}

func (consoleSink) ToolStart(call llm.ToolCall) {
	fmt.Printf("\U0001F527 \033[92mtool\033[0m: %s(%s)\n", call.Name, compactJSON(call.Input))
}

// Tool output goes back to the model, not the terminal; the tool line above
// is enough to follow along.
func (consoleSink) ToolResult(llm.ToolResult) {}

// compactJSON squeezes a raw JSON value onto one line for the tool trace.
func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
