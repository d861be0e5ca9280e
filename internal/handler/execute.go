package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sakif/scratchpad/internal/executor"
)

// ExecuteHandler exposes the Python executor directly over REST, without an
// assistant in the loop. The web editor's "Run" button posts here.
type ExecuteHandler struct {
	exec executor.Executor
	// artifactsRoot turns the executor's absolute artifact paths into
	// public /artifacts/... URLs.
	artifactsRoot string
	logger        *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(exec executor.Executor, artifactsRoot string, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		exec:          exec,
		artifactsRoot: artifactsRoot,
		logger:        logger,
	}
}

// executeResponse is the wire shape of one run.
type executeResponse struct {
	Content    string   `json:"content"`
	Artifacts  []string `json:"artifacts,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// HandleExecute runs one Python snippet.
//
// HTTP: POST /api/execute
// BODY: {"code": "print(2)", "timeout": 10, "save_plots": true}
//
// Everything the code itself did wrong (exceptions, blocked imports,
// timeouts, even an empty snippet) comes back as 200 with the message in
// content, exactly as the assistant tool would see it. A 500 means the
// execution harness failed, not the code.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executor.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	result, err := h.exec.Execute(r.Context(), req)
	if err != nil {
		h.logger.Error("code execution failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Content:    result.Content,
		Artifacts:  h.artifactURLs(result.Artifacts),
		DurationMS: result.Duration.Milliseconds(),
	})
}

// artifactURLs rewrites absolute artifact paths into the /artifacts/ URL
// space served by ArtifactHandler. Paths outside the artifacts root are
// dropped; they would not be servable anyway.
func (h *ExecuteHandler) artifactURLs(paths []string) []string {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(h.artifactsRoot, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			h.logger.Warn("artifact outside root", slog.String("path", p))
			continue
		}
		urls = append(urls, "/artifacts/"+filepath.ToSlash(rel))
	}
	return urls
}
