// Package python runs untrusted Python snippets in locally spawned,
// policy-guarded interpreter processes.
//
// Each run gets a private temp directory holding a generated harness script
// and a private artifact directory for files the code produces. The harness
// installs an import chokepoint backed by Policy, captures both output
// streams, and restores everything it changed before the process exits.
package python

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/scratchpad/internal/executor"
)

// Executor implements the executor.Executor interface with one local Python
// process per run.
type Executor struct {
	config    Config
	pythonBin string
	policy    *Policy
	logger    *slog.Logger
	slots     *slotPool
}

var _ executor.Executor = (*Executor)(nil)

// New resolves the interpreter and prepares the artifact root. It fails fast
// when the interpreter is missing, the same way a container-backed executor
// would fail on a missing image.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	bin, err := exec.LookPath(cfg.PythonBin)
	if err != nil {
		return nil, fmt.Errorf("python interpreter %q not found: %w", cfg.PythonBin, err)
	}

	if err := os.MkdirAll(cfg.ArtifactsRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts root: %w", err)
	}

	policy := cfg.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	logger.Info("python executor ready",
		slog.String("interpreter", bin),
		slog.String("artifactsRoot", cfg.ArtifactsRoot),
		slog.Int("maxConcurrent", cfg.MaxConcurrent))

	return &Executor{
		config:    cfg,
		pythonBin: bin,
		policy:    policy,
		logger:    logger,
		slots:     newSlotPool(cfg.MaxConcurrent),
	}, nil
}

// Execute runs the provided Python code in a guarded interpreter process and
// assembles its output into a single displayable result.
//
// Anything attributable to the user's code (runtime faults, blocked imports,
// timeouts) comes back inside the result content. A non-nil error means the
// harness itself failed.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return &executor.ExecutionResult{
			Content:  "Error: No code provided to execute.",
			Duration: time.Since(start),
		}, nil
	}

	if err := e.slots.Acquire(ctx); err != nil {
		return nil, execError(err)
	}
	defer e.slots.Release()

	runID := xid.New().String()
	artifactDir := filepath.Join(e.config.ArtifactsRoot, runID)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, execError(fmt.Errorf("create artifact dir: %w", err))
	}

	tempDir, err := os.MkdirTemp("", "scratchpad-run-*")
	if err != nil {
		return nil, execError(fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	script := renderScript(scriptParams{
		Code:        code,
		ArtifactDir: artifactDir,
		SavePlots:   req.PlotsEnabled(),
		AllowWrites: e.config.AllowFileWrites,
		Policy:      e.policy,
	})

	if err := os.WriteFile(filepath.Join(tempDir, "sandbox_script.py"), []byte(script), 0o600); err != nil {
		return nil, execError(fmt.Errorf("write sandbox script: %w", err))
	}
	// The empty __init__.py makes the temp dir a package, which keeps
	// relative imports inside user code resolvable.
	if err := os.WriteFile(filepath.Join(tempDir, "__init__.py"), nil, 0o600); err != nil {
		return nil, execError(fmt.Errorf("write package marker: %w", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, req.EffectiveTimeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.pythonBin, "-m", "sandbox_script")
	// The child sees a minimal environment: just enough to resolve the
	// generated module and flush output promptly.
	cmd.Env = []string{
		"PYTHONPATH=" + tempDir,
		"PYTHONUNBUFFERED=1",
	}
	// Relative paths in user code resolve inside the run's own directory.
	cmd.Dir = artifactDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		e.logger.Debug("python run timed out",
			slog.String("runId", runID),
			slog.Duration("took", time.Since(start)))
		return &executor.ExecutionResult{
			Content:  "Error: Code execution timed out.",
			Duration: time.Since(start),
		}, nil
	}
	if ctx.Err() != nil {
		// The caller went away (request canceled, shutdown).
		return nil, execError(ctx.Err())
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, execError(fmt.Errorf("run interpreter: %w", runErr))
		}
		// Non-zero exit is a property of the user's code, not a harness
		// failure; whatever reached the streams still gets assembled.
		e.logger.Debug("python run exited non-zero",
			slog.String("runId", runID),
			slog.Int("exitCode", exitErr.ExitCode()))
	}

	artifacts := collectPlots(artifactDir)
	content := assembleContent(stdout.String(), stderr.String(), req.PlotsEnabled(), len(artifacts))

	if len(artifacts) == 0 {
		// Remove only succeeds when user code produced no files either.
		_ = os.Remove(artifactDir)
	}

	e.logger.Debug("python run finished",
		slog.String("runId", runID),
		slog.Int("artifacts", len(artifacts)),
		slog.Duration("took", time.Since(start)))

	return &executor.ExecutionResult{
		Content:   content,
		Artifacts: artifacts,
		Duration:  time.Since(start),
	}, nil
}

// execError wraps a harness failure in the message format callers display.
// The prefix is part of the subsystem contract.
func execError(err error) error {
	return fmt.Errorf("Error executing code: %w", err)
}

// assembleContent merges the captured streams into the single displayable
// result value: trimmed stdout (or a marker when empty), stderr under an
// Errors heading, a plot count notice, and a truncation cap.
func assembleContent(stdout, stderr string, plotsEnabled bool, plotCount int) string {
	content := strings.TrimSpace(stdout)
	if content == "" {
		content = "(No output)"
	}

	if errText := strings.TrimSpace(stderr); errText != "" {
		content += "\n\nErrors:\n" + errText
	}

	if plotsEnabled && plotCount > 0 {
		content += fmt.Sprintf("\n\n%d plot(s) were generated.", plotCount)
	}

	return truncateContent(content)
}

// truncateContent caps content at MaxOutputChars characters. Counting runes
// rather than bytes keeps the cut deterministic for multi-byte output.
func truncateContent(content string) string {
	runes := []rune(content)
	if len(runes) <= executor.MaxOutputChars {
		return content
	}
	return string(runes[:executor.MaxOutputChars]) + "\n... (output truncated, exceeded 10000 characters)"
}

// collectPlots lists plot_<i>.png files under dir as absolute paths, ordered
// by index.
func collectPlots(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, "plot_") && strings.HasSuffix(name, ".png") {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return plotIndex(names[i]) < plotIndex(names[j]) })

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}

// plotIndex parses the numeric part of plot_<i>.png, pushing unparseable
// names to the end.
func plotIndex(name string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "plot_"), ".png"))
	if err != nil {
		return math.MaxInt
	}
	return n
}
