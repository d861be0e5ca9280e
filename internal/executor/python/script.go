package python

import (
	"fmt"
	"strconv"
	"strings"
)

// scriptParams describes one generated harness.
type scriptParams struct {
	Code        string
	ArtifactDir string
	SavePlots   bool
	AllowWrites bool
	Policy      *Policy
}

// renderScript produces the Python program that wraps user code with the
// import chokepoint, stream capture, the optional write guard, and plot
// collection. The caller writes it to the run's temp directory as
// sandbox_script.py and launches it with -m.
//
// Rendering is deterministic: the policy tables are emitted in sorted order,
// so identical inputs yield byte-identical scripts.
func renderScript(p scriptParams) string {
	var b strings.Builder

	b.WriteString(scriptImports)

	fmt.Fprintf(&b, "ENABLE_FILE_WRITE = %s\n", pyBool(p.AllowWrites))
	fmt.Fprintf(&b, "ARTIFACT_DIR = %s\n\n", pyQuote(p.ArtifactDir))

	writePySet(&b, "ALLOWED_PACKAGES", p.Policy.AllowedPackages())
	b.WriteString("\n")
	writePyDict(&b, "PACKAGE_NAME_OVERRIDES", p.Policy.InstallOverrides())
	b.WriteString("\n")
	writePySet(&b, "INSTALL_EXEMPT", p.Policy.ExemptPackages())

	b.WriteString(scriptGuard)

	if p.SavePlots {
		b.WriteString(scriptMatplotlib)
	}

	b.WriteString(scriptMainOpen)
	b.WriteString(indentCode(p.Code))
	b.WriteString(scriptMainExcept)
	if p.SavePlots {
		b.WriteString(scriptMainPlots)
	}
	b.WriteString(scriptMainFooter)

	return b.String()
}

// indentCode places user code inside the harness try block. Every line gets
// eight spaces so the block nests under main's try.
func indentCode(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	var b strings.Builder
	for _, line := range strings.Split(code, "\n") {
		b.WriteString("        ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// pyQuote renders s as a double-quoted Python string literal. Go and Python
// share escape syntax for everything strconv.Quote emits here.
func pyQuote(s string) string {
	return strconv.Quote(s)
}

func pyBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func writePySet(b *strings.Builder, name string, items []string) {
	// An empty {} literal would be a dict, not a set
	if len(items) == 0 {
		fmt.Fprintf(b, "%s = set()\n", name)
		return
	}
	fmt.Fprintf(b, "%s = {\n", name)
	for _, item := range items {
		fmt.Fprintf(b, "    %s,\n", pyQuote(item))
	}
	b.WriteString("}\n")
}

func writePyDict(b *strings.Builder, name string, pairs [][2]string) {
	if len(pairs) == 0 {
		fmt.Fprintf(b, "%s = {}\n", name)
		return
	}
	fmt.Fprintf(b, "%s = {\n", name)
	for _, pair := range pairs {
		fmt.Fprintf(b, "    %s: %s,\n", pyQuote(pair[0]), pyQuote(pair[1]))
	}
	b.WriteString("}\n")
}

const scriptImports = `import builtins
import importlib.util
import io
import os
import subprocess
import sys
import traceback

STANDARD_LIB_MODULES = sys.builtin_module_names
STDLIB_PATH = os.path.dirname(os.__file__)

`

// scriptGuard defines the import chokepoint and the write guard, then swaps
// them in together with the stream capture. Everything below this point in
// the generated program runs with the guard active.
const scriptGuard = `
original_import = builtins.__import__
original_open = builtins.open


def is_standard_library(package_name):
    """Heuristically decide whether a module belongs to the standard library."""
    if package_name.startswith("_"):
        return True
    if package_name in STANDARD_LIB_MODULES:
        return True
    try:
        spec = importlib.util.find_spec(package_name)
        if not spec or not spec.origin:
            return False
        return (
            spec.origin.startswith(STDLIB_PATH)
            or spec.origin == "built-in"
            or (
                "site-packages" not in spec.origin
                and "dist-packages" not in spec.origin
                and "/lib/python" in spec.origin
            )
        )
    except ModuleNotFoundError:
        pass
    return False


def is_package_installed(package_name):
    try:
        spec = importlib.util.find_spec(package_name)
        return spec is not None
    except ModuleNotFoundError:
        return False


def get_top_level_package(name):
    if name.startswith("mpl_toolkits.basemap"):
        return "mpl_toolkits.basemap"
    if name.startswith("mpl_toolkits"):
        return "matplotlib"
    return name.split(".")[0]


def install_package(name, alt_name):
    env = os.environ.copy()
    try:
        print(f"Installing {name}... This may take a moment.")
        cmd = [sys.executable, "-m", "pip", "install", "--no-cache-dir", "--quiet", name]
        subprocess.check_call(cmd, env=env)
        print(f"Successfully installed {name}")
        return True
    except Exception as e:
        print(f"\033[31mFailed to install '{name}'\033[0m: {e}")
        if name != alt_name:
            print(f"Trying to install as {alt_name}... This may take a moment.")
            try:
                cmd = [sys.executable, "-m", "pip", "install", "--no-cache-dir", "--quiet", alt_name]
                subprocess.check_call(cmd, env=env)
                print(f"Successfully installed {alt_name}")
                return True
            except Exception as embedded_e:
                print(f"\033[31mFailed to install '{alt_name}'\033[0m: {embedded_e}")
        return False


install_attempted = set()


def ensure_package(package_name, name):
    """Best-effort, idempotent install of an allowed package that is missing.

    Each package is tried at most once per run; failures are reported in the
    captured output but never abort the run.
    """
    if package_name in INSTALL_EXEMPT or package_name in install_attempted:
        return
    if is_package_installed(package_name):
        return
    install_attempted.add(package_name)
    print(f"Package '{package_name}' not found. Attempting to install...")
    pip_name = PACKAGE_NAME_OVERRIDES.get(package_name, package_name)
    pip_full = PACKAGE_NAME_OVERRIDES.get(name, name)
    if not install_package(pip_name, "-".join(pip_full.split(".")[:2])):
        print(f"Package '{pip_name}' is not available and couldn't be installed.")


def secure_import(name, globals_dict=None, locals_dict=None, fromlist=(), level=0):
    """Single chokepoint every module load passes through while the guard is active."""
    if globals_dict is None:
        globals_dict = {}
    globals_dict = dict(globals_dict)
    rel_import_name = name
    if level > 0 and globals_dict and "__package__" in globals_dict:
        pkg = globals_dict["__package__"]
        if pkg:
            rel_import_name = pkg.rsplit(".", level - 1)[0] + "." + name
    package_name = get_top_level_package(rel_import_name)

    if not package_name:
        print(f"Import warning: Empty package name detected in import. Globals dict: {globals_dict}", file=sys.stderr)
        return None

    if is_standard_library(package_name):
        return original_import(name, globals_dict, locals_dict, fromlist, level)

    if package_name in ALLOWED_PACKAGES:
        ensure_package(package_name, name)
        return original_import(name, globals_dict, locals_dict, fromlist, level)

    if name == "org.python.core":
        # Jython internals, probed by some libraries but never needed here
        return None

    print(f"SecurityError: Import of '{package_name}' (from '{name}') is not allowed", file=sys.stderr)
    raise ImportError(f"Blocked import: '{package_name}' (from '{name}')")


def safe_open(file, mode="r", *args, **kwargs):
    if mode and ("w" in mode or "a" in mode or "+" in mode):
        print("SecurityError: Writing to files is not allowed", file=sys.stderr)
        return None
    return original_open(file, mode, *args, **kwargs)


original_stdout = sys.stdout
original_stderr = sys.stderr
sys.stdout = io.StringIO()
sys.stderr = io.StringIO()
builtins.__import__ = secure_import
if not ENABLE_FILE_WRITE:
    builtins.open = safe_open
`

// scriptMatplotlib runs with the guard already active, so a missing
// matplotlib goes through the ensure-dependency path like any other
// allowed import.
const scriptMatplotlib = `
try:
    import matplotlib

    matplotlib.use("Agg")

    # Load the heavyweight submodules eagerly so later plotting calls do not
    # trigger imports from inside user code
    import matplotlib.axes
    import matplotlib.backends
    import matplotlib.cbook
    import matplotlib.cm
    import matplotlib.colors
    import matplotlib.figure
    import matplotlib.lines
    import matplotlib.patches
    import matplotlib.pyplot

    plt = matplotlib.pyplot
    builtins.plt = plt

    PLOT_ENABLED = True
    print("Matplotlib initialized successfully in non-interactive mode.")
except ImportError as e:
    print(f"Warning: Matplotlib setup failed: {e}")
    PLOT_ENABLED = False
except Exception as e:
    print(f"Warning: Error during matplotlib initialization: {e}")
    PLOT_ENABLED = False


def save_current_figures():
    if not PLOT_ENABLED:
        return []

    saved_files = []
    try:
        for i, fignum in enumerate(plt.get_fignums()):
            try:
                fig = plt.figure(fignum)
                filename = f"plot_{i}.png"
                # The harness writes through the original open so plot
                # saving works even while the write guard is active.
                with original_open(os.path.join(ARTIFACT_DIR, filename), "wb") as fh:
                    fig.savefig(fh, format="png", bbox_inches="tight")
                saved_files.append(filename)
            except Exception as e:
                print(f"Error saving figure {fignum}: {e}")

        plt.close("all")
    except Exception as e:
        print(f"Error in save_current_figures: {e}")

    return saved_files
`

const scriptMainOpen = `

def main():
    try:
`

const scriptMainExcept = `    except Exception as e:
        print(f"Error: {type(e).__name__}: {str(e)}")
        traceback.print_exc(file=sys.stderr)
    finally:
`

const scriptMainPlots = `        try:
            saved_plots = save_current_figures()
            if saved_plots:
                print("\nPlots saved to files: " + ", ".join(saved_plots))
        except Exception as plot_e:
            print(f"Error saving plots: {str(plot_e)}")
`

// The finally block restores the interpreter globals on every exit path,
// including SystemExit from user code, before emitting the captured streams
// onto the real ones.
const scriptMainFooter = `        output = sys.stdout.getvalue()
        error = sys.stderr.getvalue()

        sys.stdout = original_stdout
        sys.stderr = original_stderr
        builtins.__import__ = original_import
        builtins.open = original_open

        print(output)
        if error:
            print(error, file=sys.stderr)


if __name__ == "__main__":
    main()
`
