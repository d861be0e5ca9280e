// Package tool defines the assistant's tool surface: named operations the
// model may invoke, each described by a JSON schema and backed by a Go
// function, collected in a registry the agent consults per conversation.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Property is one field in a tool's input schema. Nested properties describe
// object-typed parameters.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
}

// Schema is the declarative shape of a tool's input: JSON Schema properties
// plus the names of required fields.
type Schema struct {
	Properties map[string]Property
	Required   []string
}

// Tool couples a model-facing definition with the function that executes it.
//
// Run receives the raw JSON input exactly as the model produced it. The
// returned string becomes the tool result content; a non-nil error is
// reported back to the model as an error result, never as a Go failure —
// the conversation continues either way.
type Tool struct {
	Name        string
	Description string
	InputSchema Schema
	Run         func(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry holds the tools available to a conversation, in registration
// order. Register everything at startup; lookups are read-only afterwards.
type Registry struct {
	byName map[string]*Tool
	order  []*Tool
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Tool)}
}

// Register adds a tool. Two tools under one name is a wiring mistake,
// reported as an error rather than silently overwriting.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool: register: empty name")
	}
	if _, exists := r.byName[t.Name]; exists {
		return fmt.Errorf("tool: register: duplicate name %q", t.Name)
	}
	r.byName[t.Name] = t
	r.order = append(r.order, t)
	return nil
}

// Get returns the named tool, if registered.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// All returns the registered tools in registration order.
func (r *Registry) All() []*Tool {
	out := make([]*Tool, len(r.order))
	copy(out, r.order)
	return out
}
