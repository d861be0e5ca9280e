package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedReply configures one response from a ScriptedClient.
type ScriptedReply struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason StopReason
	Err        error
}

// ScriptedClient is a Client for tests. It replays a fixed sequence of
// replies and records every request; once the script is exhausted the last
// reply repeats.
type ScriptedClient struct {
	mu     sync.Mutex
	script []ScriptedReply
	next   int
	calls  []Request
}

var _ Client = (*ScriptedClient)(nil)

// NewScriptedClient creates a client that replays the given replies in order.
func NewScriptedClient(script ...ScriptedReply) *ScriptedClient {
	return &ScriptedClient{script: script}
}

// Complete returns the next scripted reply.
func (s *ScriptedClient) Complete(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)

	if len(s.script) == 0 {
		return nil, fmt.Errorf("scripted client: no replies configured")
	}

	idx := s.next
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	} else {
		s.next++
	}

	reply := s.script[idx]
	if reply.Err != nil {
		return nil, reply.Err
	}

	return &Response{
		Content:    reply.Content,
		ToolCalls:  reply.ToolCalls,
		StopReason: reply.StopReason,
	}, nil
}

// Calls returns a copy of every request seen so far.
func (s *ScriptedClient) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}
