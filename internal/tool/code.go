package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakif/scratchpad/internal/executor"
)

// NewCodeExecutor exposes the sandboxed Python runner as the code_executor
// tool. The input decodes directly into the executor's request type, keeping
// the schema below and the wire contract in lockstep.
func NewCodeExecutor(exec executor.Executor) *Tool {
	return &Tool{
		Name: "code_executor",
		Description: "Execute Python code in a sandboxed environment and return its output. " +
			"Imports are limited to an allow-list of data science packages; allowed packages " +
			"that are missing get installed on demand. Matplotlib figures are saved as images " +
			"and counted in the result when save_plots is enabled.",
		InputSchema: Schema{
			Properties: map[string]Property{
				"code": {
					Type:        "string",
					Description: "The Python code to execute.",
				},
				"timeout": {
					Type:        "number",
					Description: "Maximum execution time in seconds. Defaults to 20, capped at 40.",
				},
				"save_plots": {
					Type:        "boolean",
					Description: "Whether to save matplotlib plots generated by the code. Defaults to true.",
				},
			},
			Required: []string{"code"},
		},
		Run: func(ctx context.Context, input json.RawMessage) (string, error) {
			var req executor.ExecutionRequest
			if err := json.Unmarshal(input, &req); err != nil {
				return "", fmt.Errorf("ERROR: invalid input: %v", err)
			}
			res, err := exec.Execute(ctx, req)
			if err != nil {
				return "", err
			}
			return res.Content, nil
		},
	}
}
