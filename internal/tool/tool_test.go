package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sakif/scratchpad/internal/executor"
	"github.com/sakif/scratchpad/internal/tool"
	"github.com/stretchr/testify/assert"
)

// fakeExecutor records the request it received and returns canned output.
type fakeExecutor struct {
	lastReq executor.ExecutionRequest
	result  *executor.ExecutionResult
	err     error
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func input(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal test input: %v", err)
	}
	return raw
}

func TestRegistry(t *testing.T) {
	newTool := func(name string) *tool.Tool {
		return &tool.Tool{
			Name: name,
			Run: func(context.Context, json.RawMessage) (string, error) {
				return "", nil
			},
		}
	}

	t.Run("register and get", func(t *testing.T) {
		r := tool.NewRegistry()
		assert.NoError(t, r.Register(newTool("alpha")))

		got, ok := r.Get("alpha")
		assert.True(t, ok)
		assert.Equal(t, "alpha", got.Name)

		_, ok = r.Get("missing")
		assert.False(t, ok)
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		r := tool.NewRegistry()
		assert.NoError(t, r.Register(newTool("alpha")))
		assert.Error(t, r.Register(newTool("alpha")))
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		r := tool.NewRegistry()
		assert.Error(t, r.Register(newTool("")))
	})

	t.Run("listing preserves registration order", func(t *testing.T) {
		r := tool.NewRegistry()
		for _, name := range []string{"zeta", "alpha", "mid"} {
			assert.NoError(t, r.Register(newTool(name)))
		}

		var names []string
		for _, registered := range r.All() {
			names = append(names, registered.Name)
		}
		assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	})
}

func TestCodeExecutorTool(t *testing.T) {
	t.Run("decodes the wire fields", func(t *testing.T) {
		fake := &fakeExecutor{result: &executor.ExecutionResult{Content: "42"}}
		ct := tool.NewCodeExecutor(fake)

		out, err := ct.Run(context.Background(), json.RawMessage(`{"code":"print(42)","timeout":5,"save_plots":false}`))
		assert.NoError(t, err)
		assert.Equal(t, "42", out)
		assert.Equal(t, "print(42)", fake.lastReq.Code)
		assert.Equal(t, 5.0, fake.lastReq.Timeout)
		if assert.NotNil(t, fake.lastReq.SavePlots) {
			assert.False(t, *fake.lastReq.SavePlots)
		}
	})

	t.Run("omitted save_plots stays unset", func(t *testing.T) {
		fake := &fakeExecutor{result: &executor.ExecutionResult{Content: "(No output)"}}
		ct := tool.NewCodeExecutor(fake)

		_, err := ct.Run(context.Background(), json.RawMessage(`{"code":"x = 1"}`))
		assert.NoError(t, err)
		assert.Nil(t, fake.lastReq.SavePlots)
		assert.True(t, fake.lastReq.PlotsEnabled())
	})

	t.Run("executor failure becomes a tool error", func(t *testing.T) {
		fake := &fakeExecutor{err: errors.New("Error executing code: create temp dir: disk full")}
		ct := tool.NewCodeExecutor(fake)

		out, err := ct.Run(context.Background(), json.RawMessage(`{"code":"print(1)"}`))
		assert.Empty(t, out)
		assert.ErrorContains(t, err, "Error executing code")
	})

	t.Run("malformed input is a tool error", func(t *testing.T) {
		ct := tool.NewCodeExecutor(&fakeExecutor{})
		_, err := ct.Run(context.Background(), json.RawMessage(`{"code":`))
		assert.ErrorContains(t, err, "invalid input")
	})
}
