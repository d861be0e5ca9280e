package python

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testParams() scriptParams {
	return scriptParams{
		Code:        `print("hi")`,
		ArtifactDir: "/tmp/scratchpad-test/run1",
		SavePlots:   true,
		AllowWrites: true,
		Policy:      DefaultPolicy(),
	}
}

func TestRenderScriptDeterministic(t *testing.T) {
	p := testParams()
	assert.Equal(t, renderScript(p), renderScript(p))
}

func TestRenderScriptEmbedsPolicyTables(t *testing.T) {
	script := renderScript(testParams())

	assert.Contains(t, script, `ARTIFACT_DIR = "/tmp/scratchpad-test/run1"`)
	assert.Contains(t, script, "ENABLE_FILE_WRITE = True")
	assert.Contains(t, script, `    "numpy",`)
	assert.Contains(t, script, `    "bs4": "beautifulsoup4",`)
	assert.Contains(t, script, `    "PIL": "Pillow",`)
	assert.Contains(t, script, "INSTALL_EXEMPT = {")
	assert.Contains(t, script, `    "urllib2",`)
}

func TestRenderScriptGuardWiring(t *testing.T) {
	script := renderScript(testParams())

	// The chokepoint must be swapped in after its dependencies are defined
	// and restored in the finally block
	assert.Contains(t, script, "builtins.__import__ = secure_import")
	assert.Contains(t, script, "builtins.__import__ = original_import")
	assert.Contains(t, script, "Blocked import:")
	assert.Contains(t, script, "file=sys.stderr")
	assert.Contains(t, script, "install_attempted.add(package_name)",
		"a failed install must not be retried on the next import")
	assert.Less(t,
		strings.Index(script, "def secure_import"),
		strings.Index(script, "builtins.__import__ = secure_import"),
		"chokepoint must be defined before it is installed")
}

func TestRenderScriptUserCodeIndented(t *testing.T) {
	p := testParams()
	p.Code = "a = 1\nprint(a)"
	script := renderScript(p)

	assert.Contains(t, script, "        a = 1\n        print(a)\n")
}

func TestRenderScriptPlotsToggle(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		script := renderScript(testParams())
		assert.Contains(t, script, `matplotlib.use("Agg")`)
		assert.Contains(t, script, "def save_current_figures():")
		assert.Contains(t, script, "Plots saved to files:")
	})

	t.Run("disabled", func(t *testing.T) {
		p := testParams()
		p.SavePlots = false
		script := renderScript(p)
		assert.NotContains(t, script, "matplotlib.use")
		assert.NotContains(t, script, "save_current_figures")
	})
}

func TestRenderScriptWriteGuard(t *testing.T) {
	p := testParams()
	p.AllowWrites = false
	script := renderScript(p)

	assert.Contains(t, script, "ENABLE_FILE_WRITE = False")
	assert.Contains(t, script, "SecurityError: Writing to files is not allowed")
	assert.Contains(t, script, "builtins.open = safe_open")
	assert.Contains(t, script, "builtins.open = original_open")
}

func TestIndentCode(t *testing.T) {
	t.Run("every line gets eight spaces", func(t *testing.T) {
		assert.Equal(t, "        a\n        b\n", indentCode("a\nb"))
	})

	t.Run("blank lines are preserved", func(t *testing.T) {
		assert.Equal(t, "        a\n        \n        b\n", indentCode("a\n\nb"))
	})

	t.Run("windows line endings are normalized", func(t *testing.T) {
		assert.Equal(t, "        a\n        b\n", indentCode("a\r\nb"))
	})
}

func TestAssembleContent(t *testing.T) {
	t.Run("output is trimmed", func(t *testing.T) {
		assert.Equal(t, "hi", assembleContent("hi\n", "", true, 0))
	})

	t.Run("empty stdout becomes the marker", func(t *testing.T) {
		assert.Equal(t, "(No output)", assembleContent("", "", true, 0))
	})

	t.Run("whitespace-only stdout becomes the marker", func(t *testing.T) {
		assert.Equal(t, "(No output)", assembleContent("\n  \n", "", false, 0))
	})

	t.Run("stderr is appended under a heading", func(t *testing.T) {
		assert.Equal(t, "ok\n\nErrors:\nboom", assembleContent("ok\n", "boom\n", true, 0))
	})

	t.Run("stderr alone still gets the marker first", func(t *testing.T) {
		assert.Equal(t, "(No output)\n\nErrors:\nboom", assembleContent("", "boom", true, 0))
	})

	t.Run("plot count notice", func(t *testing.T) {
		assert.Equal(t, "ok\n\n2 plot(s) were generated.", assembleContent("ok", "", true, 2))
	})

	t.Run("plot notice suppressed when capture disabled", func(t *testing.T) {
		assert.Equal(t, "ok", assembleContent("ok", "", false, 2))
	})
}

func TestTruncateContent(t *testing.T) {
	suffix := "\n... (output truncated, exceeded 10000 characters)"

	t.Run("content at the cap is untouched", func(t *testing.T) {
		content := strings.Repeat("x", 10000)
		assert.Equal(t, content, truncateContent(content))
	})

	t.Run("oversized content is cut at the cap", func(t *testing.T) {
		content := strings.Repeat("x", 10001)
		got := truncateContent(content)
		assert.Equal(t, strings.Repeat("x", 10000)+suffix, got)
	})

	t.Run("truncation is deterministic", func(t *testing.T) {
		content := strings.Repeat("y", 25000)
		assert.Equal(t, truncateContent(content), truncateContent(content))
	})

	t.Run("multi-byte output is cut on character boundaries", func(t *testing.T) {
		content := strings.Repeat("λ", 10500)
		got := truncateContent(content)
		assert.Equal(t, strings.Repeat("λ", 10000)+suffix, got)
	})
}

func TestCollectPlots(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plot_10.png", "plot_0.png", "plot_2.png", "plot_1.png", "data.csv", "plot_x.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}

	paths := collectPlots(dir)

	expected := []string{
		filepath.Join(dir, "plot_0.png"),
		filepath.Join(dir, "plot_1.png"),
		filepath.Join(dir, "plot_2.png"),
		filepath.Join(dir, "plot_10.png"),
		filepath.Join(dir, "plot_x.png"),
	}
	assert.Equal(t, expected, paths, "plots should be ordered by index with unparseable names last")
}

func TestCollectPlotsMissingDir(t *testing.T) {
	assert.Nil(t, collectPlots(filepath.Join(t.TempDir(), "nope")))
}

func TestSlotPool(t *testing.T) {
	t.Run("acquire and release cycle", func(t *testing.T) {
		pool := newSlotPool(1)
		assert.NoError(t, pool.Acquire(context.Background()))
		pool.Release()
		assert.NoError(t, pool.Acquire(context.Background()))
	})

	t.Run("exhausted pool blocks until context expires", func(t *testing.T) {
		pool := newSlotPool(1)
		assert.NoError(t, pool.Acquire(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, pool.Acquire(ctx), context.DeadlineExceeded)
	})

	t.Run("minimum size is one", func(t *testing.T) {
		pool := newSlotPool(0)
		assert.NoError(t, pool.Acquire(context.Background()))
	})
}
