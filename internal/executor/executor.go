package executor

import (
	"context"
	"time"
)

// Timeout and output bounds for one execution. These are part of the
// subsystem's contract, not tunables: callers anywhere in the app (HTTP
// handler, assistant tool) get the same clamping behaviour.
const (
	// DefaultTimeout applies when a request carries no timeout (or a
	// non-positive one).
	DefaultTimeout = 20 * time.Second
	// MaxTimeout is the hard ceiling. Requests above it are clamped down,
	// never rejected.
	MaxTimeout = 40 * time.Second
	// MaxOutputChars caps the assembled result content. Output beyond it is
	// truncated with a notice appended.
	MaxOutputChars = 10000
)

// ExecutionRequest represents a request to execute Python code.
//
// The JSON field names are the wire contract shared by the REST endpoint and
// the assistant's code_executor tool, so both decode straight into this type.
type ExecutionRequest struct {
	Code string `json:"code"`
	// Timeout is the requested wall-clock limit in seconds. Fractional
	// values are allowed. Zero means "use the default".
	Timeout float64 `json:"timeout,omitempty"`
	// SavePlots is a pointer so that an absent field defaults to true —
	// a plain bool could not distinguish "omitted" from "explicitly false".
	SavePlots *bool `json:"save_plots,omitempty"`
}

// EffectiveTimeout returns the clamped wall-clock limit for this request.
// The result is always in (0, MaxTimeout]: absent or non-positive values
// fall back to DefaultTimeout, oversized values are capped at MaxTimeout.
func (r ExecutionRequest) EffectiveTimeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	d := time.Duration(r.Timeout * float64(time.Second))
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

// PlotsEnabled reports whether plot capture is on for this request.
// Defaults to true when the field was omitted.
func (r ExecutionRequest) PlotsEnabled() bool {
	return r.SavePlots == nil || *r.SavePlots
}

// ExecutionResult is the assembled outcome of one execution.
//
// Content is always displayable text: captured output, or one of the fixed
// notices ("(No output)", the timeout message, the empty-code message).
// Anything attributable to the caller's code lands here, never in an error.
type ExecutionResult struct {
	Content string `json:"content"`
	// Artifacts lists absolute paths of plot images saved during the run,
	// in the order they were written. Empty unless plots were captured.
	Artifacts []string      `json:"artifacts,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Executor represents the core interface for running code in an isolated environment.
//
// A non-nil error means the harness itself failed (temp dir, process spawn);
// faults inside the executed code are reported through Content instead.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}
