package python

import (
	"sort"
	"strings"
)

// Policy is the import policy rendered into every generated harness: which
// top-level packages user code may load, how module names map to pip install
// names, and which allowed names must never trigger an install attempt.
// Standard-library modules bypass the table entirely.
//
// A Policy is read-only after construction and safe for concurrent use.
type Policy struct {
	allowed       map[string]struct{}
	installNames  map[string]string
	installExempt map[string]struct{}
}

// DefaultPolicy returns the stock tables: the data-science oriented
// allow-list, the module-to-pip name overrides, and the install exemptions.
func DefaultPolicy() *Policy {
	return NewPolicy(defaultAllowed, defaultInstallNames, defaultInstallExempt)
}

// NewPolicy builds a policy from explicit tables. Most callers want
// DefaultPolicy; custom tables are for locked-down deployments.
func NewPolicy(allowed []string, installNames map[string]string, installExempt []string) *Policy {
	p := &Policy{
		allowed:       make(map[string]struct{}, len(allowed)),
		installNames:  make(map[string]string, len(installNames)),
		installExempt: make(map[string]struct{}, len(installExempt)),
	}
	for _, name := range allowed {
		p.allowed[name] = struct{}{}
	}
	for mod, pip := range installNames {
		p.installNames[mod] = pip
	}
	for _, name := range installExempt {
		p.installExempt[name] = struct{}{}
	}
	return p
}

// TopLevel extracts the allow-list key for a dotted module path. The
// matplotlib toolkit namespaces are special-cased: basemap keeps its own
// identity, every other mpl_toolkits entry resolves to matplotlib.
func (p *Policy) TopLevel(name string) string {
	if strings.HasPrefix(name, "mpl_toolkits.basemap") {
		return "mpl_toolkits.basemap"
	}
	if strings.HasPrefix(name, "mpl_toolkits") {
		return "matplotlib"
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// Allows reports whether the given top-level package may be imported.
// Absence means denial.
func (p *Policy) Allows(topLevel string) bool {
	_, ok := p.allowed[topLevel]
	return ok
}

// InstallName maps a module name to the pip package that provides it.
// Names without an override install under their own name.
func (p *Policy) InstallName(name string) string {
	if pip, ok := p.installNames[name]; ok {
		return pip
	}
	return name
}

// InstallFallback derives the last-resort pip name tried when the primary
// install fails: the first two dotted components of the resolved full name,
// joined with a hyphen.
func (p *Policy) InstallFallback(fullName string) string {
	parts := strings.Split(p.InstallName(fullName), ".")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "-")
}

// InstallExempt reports whether an allowed package is excluded from
// auto-installation.
func (p *Policy) InstallExempt(topLevel string) bool {
	_, ok := p.installExempt[topLevel]
	return ok
}

// AllowedPackages returns the allow-list in sorted order.
func (p *Policy) AllowedPackages() []string {
	names := make([]string, 0, len(p.allowed))
	for name := range p.allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstallOverrides returns the module-to-pip overrides as sorted pairs.
func (p *Policy) InstallOverrides() [][2]string {
	pairs := make([][2]string, 0, len(p.installNames))
	for mod, pip := range p.installNames {
		pairs = append(pairs, [2]string{mod, pip})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}

// ExemptPackages returns the install exemptions in sorted order.
func (p *Policy) ExemptPackages() []string {
	names := make([]string, 0, len(p.installExempt))
	for name := range p.installExempt {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultAllowed is the closed set of top-level packages user code may
// import, submodules included. Anything else that is not standard library
// is blocked. The list leans heavily toward data analysis and plotting,
// plus the support packages those libraries pull in at import time.
var defaultAllowed = []string{
	// Numeric and scientific computing
	"numpy",
	"scipy",
	"sympy",
	"pandas",
	"statsmodels",
	"patsy",
	"sklearn",
	"networkx",
	"uarray",
	"scikits",
	"sksparse",
	"pyarrow",

	// Plotting and imaging
	"matplotlib",
	"mpl_toolkits",
	"mpl_toolkits.basemap",
	"seaborn",
	"plotly",
	"cycler",
	"kiwisolver",
	"fontTools",
	"PIL",
	"png",
	"svgwrite",
	"qrcode",

	// Geospatial
	"geopandas",
	"shapely",
	"pyproj",

	// HTTP and data fetching
	"requests",
	"urllib3",
	"urllib2",
	"certifi",
	"chardet",
	"charset_normalizer",
	"idna",
	"socks",

	// Serialization and documents
	"json",
	"simplejson",
	"openpyxl",
	"defusedxml",
	"markupsafe",
	"jinja2",
	"docutils",
	"sphinx",
	"docrepr",
	"tabulate",
	"pydantic",

	// Interactive tooling pulled in by notebook-style code
	"IPython",
	"ipywidgets",
	"comm",
	"traitlets",
	"jedi",
	"parso",
	"prompt_toolkit",
	"pygments",
	"pure_eval",
	"stack_data",
	"executing",
	"asttokens",
	"astroid",
	"wcwidth",
	"colorama",

	// Text and fuzzy matching
	"re",
	"Levenshtein",
	"rapidfuzz",
	"pyparsing",
	"babel",

	// Compression
	"zlib",
	"brotli",
	"brotlicffi",
	"zstandard",

	// Compiled-extension helpers
	"cython",
	"Cython",
	"six",
	"packaging",
	"decorator",

	// GUI toolkits occasionally imported by plotting backends
	"tkinter",
	"PyQt5",
	"PyQt6",
	"PySide2",
	"PySide6",
	"wx",
	"gi",

	// Dates and time zones
	"datetime",
	"dateutil",
	"pytz",

	// Standard-library names listed explicitly for older interpreters
	// whose stdlib detection misses them
	"abc",
	"codecs",
	"collections",
	"functools",
	"genericpath",
	"importlib",
	"io",
	"logging",
	"mimetypes",
	"ntpath",
	"os",
	"pathlib",
	"posixpath",
	"random",
	"runpy",
	"stat",
	"textwrap",
	"typing",
	"typing_extensions",
	"weakref",
	"zipimport",

	// Windows-only and Python 2 era names; allowed so imports of them fail
	// with a normal ModuleNotFoundError instead of a policy block
	"nt",
	"winreg",
	"msvcrt",
	"cPickle",
	"pickle5",

	// Misc utilities
	"api",
	"backports_abc",
	"ctags",
	"tqdm",
}

// defaultInstallNames maps top-level modules (and two dotted submodule
// cases) to the pip package that actually provides them.
var defaultInstallNames = map[string]string{
	"bs4":                  "beautifulsoup4",
	"PIL":                  "Pillow",
	"yaml":                 "PyYAML",
	"scikits.umfpack":      "scikit-umfpack",
	"sksparse.cholmod":     "scikit-sparse",
	"png":                  "pypng",
	"mpl_toolkits.basemap": "basemap",
	"mpl_toolkits":         "matplotlib",
}

// defaultInstallExempt lists allowed packages that must never trigger a pip
// install: Windows-only modules, Python 2 leftovers, and packages whose
// builds need system libraries we cannot assume.
var defaultInstallExempt = []string{
	"nt",
	"winreg",
	"msvcrt",
	"cPickle",
	"pickle5",
	"urllib2",
	"scikits",
	"sksparse",
}
