package handler

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactHandler serves files produced by executions (saved plots, data
// files) out of the artifacts root. URLs name a run and a file inside it;
// run IDs are unguessable, which is the extent of access control here, so
// artifact URLs work as shareable links.
type ArtifactHandler struct {
	root   string
	logger *slog.Logger
}

// NewArtifactHandler creates an ArtifactHandler rooted at the executor's
// artifacts directory.
func NewArtifactHandler(root string, logger *slog.Logger) *ArtifactHandler {
	return &ArtifactHandler{root: root, logger: logger}
}

// HandleGet serves one artifact file.
//
// HTTP: GET /artifacts/{runID}/{file}
//
// Both path segments are validated before touching the filesystem: no
// separators, no dot names. A request can only ever reach
// <root>/<runID>/<file>, never anything outside it.
func (h *ArtifactHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	file := r.PathValue("file")
	if !validPathSegment(runID) || !validPathSegment(file) {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.root, runID, file)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	// Run directories are never rewritten after the run, so clients may
	// cache artifacts forever.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
}

// validPathSegment rejects anything that could escape the artifacts root:
// empty names, dot names, and separators.
func validPathSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}
