// Package pipeline turns a merged configuration into the ordered list of
// passes a compile runs. Building is pure: it never touches the
// filesystem.
package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/agentic-research/kiln/api"
	"github.com/agentic-research/kiln/internal/syntax"
	"github.com/agentic-research/kiln/internal/transform"
)

var (
	// ErrInvalidGlobal is returned when a configured global's value is not
	// a single expression.
	ErrInvalidGlobal = errors.New("invalid global")
	// ErrInvalidConfig is returned for out-of-range enumerated settings.
	ErrInvalidConfig = errors.New("invalid config")
)

// EnvLookup reads an environment variable.
type EnvLookup func(name string) (string, bool)

// SourceMapMode says whether and where a source map is produced.
type SourceMapMode int

const (
	SourceMapsOff SourceMapMode = iota
	// SourceMapsSeparate returns the map next to the code.
	SourceMapsSeparate
	// SourceMapsInline appends the map to the code as a data URL.
	SourceMapsInline
	// SourceMapsFile returns the map and references File from the code.
	SourceMapsFile
)

// BuiltConfig is a resolved, immutable pipeline description. It is shared
// by every compile that resolves to it and must not be modified.
type BuiltConfig struct {
	Syntax          syntax.Syntax
	Target          transform.Target
	Passes          []transform.Spec
	Minify          bool
	SourceMaps      SourceMapMode
	SourceMapFile   string
	ExternalHelpers bool

	// Config is the fully merged configuration, defaults included.
	Config *api.Config
}

// PassNames lists the pass kinds in run order.
func (b *BuiltConfig) PassNames() []string {
	names := make([]string, len(b.Passes))
	for i, s := range b.Passes {
		names[i] = s.Kind.String()
	}
	return names
}

// Build merges cfg over the defaults and assembles the pass list. env is
// consulted for the allow-listed environment variables; nil means the
// process environment.
func Build(cfg *api.Config, env EnvLookup) (*BuiltConfig, error) {
	if env == nil {
		env = os.LookupEnv
	}
	merged := api.Defaults()
	merged.Merge(cfg)

	b := &BuiltConfig{Config: merged}
	var err error
	if b.Syntax, err = parserSyntax(merged.Jsc.Parser); err != nil {
		return nil, err
	}
	if b.Target, err = transform.ParseTarget(*merged.Jsc.Target); err != nil {
		return nil, fmt.Errorf("%w: jsc.target: %v", ErrInvalidConfig, err)
	}
	b.Minify = *merged.Minify
	b.ExternalHelpers = *merged.Jsc.ExternalHelpers
	b.SourceMaps, b.SourceMapFile = sourceMaps(merged.SourceMaps)

	module, err := moduleOptions(merged.Module)
	if err != nil {
		return nil, err
	}
	tc := merged.Jsc.Transform
	if tc == nil {
		tc = &api.TransformConfig{}
	}
	jsx := jsxOptions(tc.React)

	var passes []transform.Spec
	add := func(s transform.Spec) { passes = append(passes, s) }

	if b.Syntax.IsTypeScript() {
		add(transform.Spec{Kind: transform.KindStripTypes, JSX: jsx})
	}
	if tc.Optimizer != nil && tc.Optimizer.Globals != nil {
		globals, err := globalsOptions(tc.Optimizer.Globals, env)
		if err != nil {
			return nil, err
		}
		add(transform.Spec{Kind: transform.KindInlineGlobals, Globals: globals})
	}
	if b.Syntax.AllowsJSX() {
		add(transform.Spec{Kind: transform.KindJSX, JSX: jsx})
	}
	if b.Syntax.Decorators {
		add(transform.Spec{Kind: transform.KindDecorators, Legacy: tc.LegacyDecorator != nil && *tc.LegacyDecorator})
	}
	add(transform.Spec{Kind: transform.KindClassProperties})
	if b.Syntax.ExportNamespaceFrom && b.Target < transform.ES2020 {
		add(transform.Spec{Kind: transform.KindExportInterop})
	}
	if tc.Optimizer != nil {
		add(transform.Spec{Kind: transform.KindSimplify})
	}
	for _, k := range []transform.Kind{
		transform.KindES2018, transform.KindES2017, transform.KindES2016,
		transform.KindES2015, transform.KindES3,
	} {
		add(transform.Spec{Kind: k, Target: b.Target})
	}
	helpers := &transform.HelpersOptions{External: b.ExternalHelpers, Module: transform.ModuleES6}
	if module != nil {
		add(transform.Spec{Kind: transform.KindModule, Target: b.Target, Module: module})
		helpers.Module = module.Type
	}
	add(transform.Spec{Kind: transform.KindInjectHelpers, Helpers: helpers})
	add(transform.Spec{Kind: transform.KindHygiene})
	add(transform.Spec{Kind: transform.KindFixer})

	b.Passes = passes
	return b, nil
}

func parserSyntax(p *api.ParserConfig) (syntax.Syntax, error) {
	s := syntax.Syntax{
		Dialect:             syntax.Dialect(p.Syntax),
		Decorators:          p.Decorators,
		DynamicImport:       p.DynamicImport,
		ExportNamespaceFrom: p.ExportNamespaceFrom,
	}
	switch s.Dialect {
	case syntax.ECMAScript:
		s.JSX = p.JSX
	case syntax.TypeScript:
		s.TSX = p.TSX
	default:
		return s, fmt.Errorf("%w: jsc.parser.syntax %q", ErrInvalidConfig, p.Syntax)
	}
	return s, nil
}

func sourceMaps(s *api.SourceMaps) (SourceMapMode, string) {
	switch {
	case s == nil || !s.Enabled:
		return SourceMapsOff, ""
	case s.Inline():
		return SourceMapsInline, ""
	case s.File() != "":
		return SourceMapsFile, s.File()
	default:
		return SourceMapsSeparate, ""
	}
}

// moduleOptions returns nil when no module rewrite is needed.
func moduleOptions(m *api.ModuleConfig) (*transform.ModuleOptions, error) {
	if m == nil {
		return nil, nil
	}
	typ := transform.ModuleType(m.Type)
	switch typ {
	case transform.ModuleES6:
		return nil, nil
	case transform.ModuleCommonJS, transform.ModuleAMD, transform.ModuleUMD:
	default:
		return nil, fmt.Errorf("%w: module.type %q", ErrInvalidConfig, m.Type)
	}
	if m.ModuleID != "" && typ == transform.ModuleCommonJS {
		return nil, fmt.Errorf("%w: module.moduleId is only valid for amd and umd", ErrInvalidConfig)
	}
	return &transform.ModuleOptions{Type: typ, Strict: m.Strict, NoInterop: m.NoInterop, ModuleID: m.ModuleID}, nil
}

func jsxOptions(r *api.ReactConfig) *transform.JSXOptions {
	o := &transform.JSXOptions{
		Pragma:           api.DefaultPragma,
		PragmaFrag:       api.DefaultPragmaFrag,
		ThrowIfNamespace: true,
	}
	if r == nil {
		return o
	}
	if r.Pragma != nil {
		o.Pragma = *r.Pragma
	}
	if r.PragmaFrag != nil {
		o.PragmaFrag = *r.PragmaFrag
	}
	if r.ThrowIfNamespace != nil {
		o.ThrowIfNamespace = *r.ThrowIfNamespace
	}
	o.Development = r.Development != nil && *r.Development
	o.UseBuiltins = r.UseBuiltins != nil && *r.UseBuiltins
	return o
}

// globalsOptions validates every replacement expression in isolation and
// reads the allow-listed environment variables. Only variables that are
// set are inlined.
func globalsOptions(g *api.GlobalsConfig, env EnvLookup) (*transform.GlobalsOptions, error) {
	vars := map[string]string{}
	for _, name := range slices.Sorted(maps.Keys(g.Vars)) {
		value := g.Vars[name]
		tree, expr, err := syntax.ParseExpression(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s = %q: %v", ErrInvalidGlobal, name, value, err)
		}
		vars[name] = string(tree.Src[expr.StartByte():expr.EndByte()])
	}

	allowed := g.Envs
	if allowed == nil {
		allowed = api.DefaultEnvs
	}
	envs := map[string]string{}
	for _, name := range allowed {
		if v, ok := env(name); ok {
			envs[name] = v
		}
	}
	return &transform.GlobalsOptions{Vars: vars, Envs: envs}, nil
}
