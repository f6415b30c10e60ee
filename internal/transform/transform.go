// Package transform implements the rewriting passes a pipeline is built
// from. Each pass folds the current program into edits and applies them;
// the program is re-parsed between passes.
package transform

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/agentic-research/kiln/internal/helpers"
	"github.com/agentic-research/kiln/internal/rewrite"
	"github.com/agentic-research/kiln/internal/source"
)

// Pass is one rewriting step.
type Pass interface {
	Name() string
	Run(ctx *Context, p *rewrite.Program) error
}

// Context is the per-compile state shared by the passes of one run.
type Context struct {
	File    *source.File
	Helpers *helpers.Registry
	Names   *Names
	Log     *slog.Logger
}

// NewContext returns a context with a fresh helper registry and name table.
func NewContext(file *source.File, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	return &Context{File: file, Helpers: helpers.NewRegistry(), Names: NewNames(), Log: log}
}

// Helper marks a runtime helper as used and returns the name to call it by.
func (c *Context) Helper(name string) string {
	c.Names.Register(name)
	return c.Helpers.Use(name)
}

// Names records every identifier the passes synthesize so hygiene knows
// which names to check.
type Names struct {
	mu    sync.Mutex
	count map[string]int
	all   map[string]bool
}

func NewNames() *Names {
	return &Names{count: map[string]int{}, all: map[string]bool{}}
}

// Fresh returns base the first time it is asked for and base2, base3, ...
// afterwards, so two synthesized bindings never share a name.
func (n *Names) Fresh(base string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count[base]++
	name := base
	if c := n.count[base]; c > 1 {
		name = base + strconv.Itoa(c)
	}
	// _a2 may already exist as the first Fresh("_a2").
	for n.all[name] {
		n.count[base]++
		name = base + strconv.Itoa(n.count[base])
	}
	n.all[name] = true
	return name
}

// Register records a shared synthesized name such as a helper.
func (n *Names) Register(name string) {
	n.mu.Lock()
	n.all[name] = true
	n.mu.Unlock()
}

// Has reports whether name was synthesized.
func (n *Names) Has(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.all[name]
}

// All returns every synthesized name, sorted.
func (n *Names) All() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.all))
	for name := range n.all {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Target is the language level output must run on.
type Target int

const (
	ES3 Target = iota
	ES5
	ES2015
	ES2016
	ES2017
	ES2018
	ES2019
	ES2020
)

var targetNames = []string{"es3", "es5", "es2015", "es2016", "es2017", "es2018", "es2019", "es2020"}

func (t Target) String() string {
	if t < 0 || int(t) >= len(targetNames) {
		return "Target(" + strconv.Itoa(int(t)) + ")"
	}
	return targetNames[t]
}

// ParseTarget parses a target name such as "es2017".
func ParseTarget(s string) (Target, error) {
	for i, name := range targetNames {
		if name == s {
			return Target(i), nil
		}
	}
	return 0, fmt.Errorf("unknown target %q", s)
}

// GlobalsOptions configure global inlining. Vars maps a name (or a dotted
// member path) to the already validated replacement expression; Envs maps
// an allowed environment variable to its value.
type GlobalsOptions struct {
	Vars map[string]string
	Envs map[string]string
}

// JSXOptions configure JSX lowering.
type JSXOptions struct {
	Pragma           string
	PragmaFrag       string
	ThrowIfNamespace bool
	Development      bool
	UseBuiltins      bool
}

// ModuleType selects the module format rewrite.
type ModuleType string

const (
	ModuleCommonJS ModuleType = "commonjs"
	ModuleAMD      ModuleType = "amd"
	ModuleUMD      ModuleType = "umd"
	ModuleES6      ModuleType = "es6"
)

// ModuleOptions configure the module rewrite.
type ModuleOptions struct {
	Type      ModuleType
	Strict    bool
	NoInterop bool
	ModuleID  string
}

// HelpersOptions configure helper injection.
type HelpersOptions struct {
	External bool
	// Module is the module format of the output, used to pick between
	// require and import for external helpers.
	Module ModuleType
}

// Spec is the immutable description of one pass. Passes are created from
// their Spec for every compile, so they may keep per-run scratch state.
type Spec struct {
	Kind    Kind
	Target  Target
	Legacy  bool
	Globals *GlobalsOptions
	JSX     *JSXOptions
	Module  *ModuleOptions
	Helpers *HelpersOptions
}

// New instantiates the pass described by s.
func (s Spec) New() Pass {
	switch s.Kind {
	case KindStripTypes:
		return &stripTypes{jsx: s.JSX}
	case KindInlineGlobals:
		return &inlineGlobals{opts: *s.Globals}
	case KindJSX:
		return &jsx{opts: *s.JSX}
	case KindDecorators:
		return &decorators{legacy: s.Legacy}
	case KindClassProperties:
		return &classProperties{}
	case KindExportInterop:
		return &exportInterop{}
	case KindSimplify:
		return &simplify{}
	case KindES2018:
		return &es2018{target: s.Target}
	case KindES2017:
		return &es2017{target: s.Target}
	case KindES2016:
		return &es2016{target: s.Target}
	case KindES2015:
		return &es2015{target: s.Target}
	case KindES3:
		return &es3{target: s.Target}
	case KindModule:
		return &module{opts: *s.Module, target: s.Target}
	case KindInjectHelpers:
		return &injectHelpers{opts: *s.Helpers}
	case KindHygiene:
		return &hygiene{}
	case KindFixer:
		return &fixer{}
	default:
		panic(fmt.Sprintf("transform: unknown pass kind %d", s.Kind))
	}
}

// Run instantiates and runs each spec in order.
func Run(ctx *Context, p *rewrite.Program, specs []Spec) error {
	for _, s := range specs {
		pass := s.New()
		start := time.Now()
		if err := pass.Run(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", pass.Name(), err)
		}
		ctx.Log.Debug("pass done", "pass", pass.Name(), "elapsed", time.Since(start))
	}
	return nil
}
