package python

import (
	"os"
	"path/filepath"
)

// Config holds the configuration for local Python execution.
type Config struct {
	// PythonBin is the interpreter to launch, resolved against $PATH.
	PythonBin string
	// ArtifactsRoot is the directory under which every run gets a private
	// subdirectory for the files it produces (saved plots, data files).
	ArtifactsRoot string
	// MaxConcurrent is the number of interpreter processes allowed to run
	// at the same time. Further requests wait for a free slot.
	MaxConcurrent int
	// AllowFileWrites disables the open() guard in the generated harness.
	// When false (the default), user code cannot obtain writable file
	// handles; the harness still saves plots through the original open.
	AllowFileWrites bool
	// Policy overrides the stock import policy when non-nil.
	Policy *Policy
}

// DefaultConfig provides sensible defaults for a local Python sandbox.
func DefaultConfig() Config {
	return Config{
		PythonBin: "python3",
		// Per-run directories under the system temp dir
		ArtifactsRoot: filepath.Join(os.TempDir(), "scratchpad-artifacts"),
		MaxConcurrent: 4,
		// Write guard on: user code gets no writable handles.
		AllowFileWrites: false,
	}
}
