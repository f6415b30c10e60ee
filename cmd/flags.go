package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/kiln/api"
)

// compileFlags are the invocation options shared by every command that
// resolves configuration. Only flags given on the command line end up in
// the options, so config files still apply to everything else.
type compileFlags struct {
	filename string
	root     string
	rootMode string
	noConfig bool
	envName  string

	syntax              string
	jsx                 bool
	tsx                 bool
	decorators          bool
	dynamicImport       bool
	exportNamespaceFrom bool

	target          string
	externalHelpers bool
	legacyDecorator bool

	pragma           string
	pragmaFrag       string
	throwIfNamespace bool
	development      bool

	optimize bool
	globals  map[string]string
	envs     []string

	module    string
	strict    bool
	noInterop bool
	moduleID  string

	minify         bool
	sourceMaps     string
	sourceFileName string
	sourceRoot     string
}

func (f *compileFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.filename, "filename", "", "Name of the source read from stdin; enables config lookup for it")
	fl.StringVar(&f.root, "root", "", "Directory where the .kilnrc search stops (default: working directory)")
	fl.StringVar(&f.rootMode, "root-mode", "", "root, upward or upward-optional")
	fl.BoolVar(&f.noConfig, "no-config", false, "Ignore .kilnrc files")
	fl.StringVar(&f.envName, "env-name", "", "Environment name (default: KILN_ENV, NODE_ENV or development)")

	fl.StringVar(&f.syntax, "syntax", "", "Parser syntax: ecmascript or typescript (default: by extension)")
	fl.BoolVar(&f.jsx, "jsx", false, "Accept JSX (ecmascript)")
	fl.BoolVar(&f.tsx, "tsx", false, "Accept TSX (typescript)")
	fl.BoolVar(&f.decorators, "decorators", false, "Accept decorators")
	fl.BoolVar(&f.dynamicImport, "dynamic-import", false, "Accept import()")
	fl.BoolVar(&f.exportNamespaceFrom, "export-namespace-from", false, "Accept export * as ns from")

	fl.StringVar(&f.target, "target", "", "Output language level, es3 through es2020")
	fl.BoolVar(&f.externalHelpers, "external-helpers", false, "Import helpers instead of inlining them")
	fl.BoolVar(&f.legacyDecorator, "legacy-decorator", false, "Use legacy decorator semantics")

	fl.StringVar(&f.pragma, "pragma", "", "JSX factory")
	fl.StringVar(&f.pragmaFrag, "pragma-frag", "", "JSX fragment factory")
	fl.BoolVar(&f.throwIfNamespace, "throw-if-namespace", false, "Reject namespaced JSX names")
	fl.BoolVar(&f.development, "development", false, "Add JSX development props")

	fl.BoolVar(&f.optimize, "optimize", false, "Enable constant folding")
	fl.StringToStringVar(&f.globals, "global", nil, "Inline a global, name=expression (repeatable)")
	fl.StringSliceVar(&f.envs, "env", nil, "Environment variables inlined from process.env")

	fl.StringVar(&f.module, "module", "", "Module format: commonjs, amd, umd or es6")
	fl.BoolVar(&f.strict, "strict", false, "Omit the __esModule marker")
	fl.BoolVar(&f.noInterop, "no-interop", false, "Skip interop helpers for imports")
	fl.StringVar(&f.moduleID, "module-id", "", "AMD/UMD module id")

	fl.BoolVar(&f.minify, "minify", false, "Emit compact output")
	fl.StringVar(&f.sourceMaps, "source-maps", "", "true, false, inline or the path of a map file")
	fl.StringVar(&f.sourceFileName, "source-file-name", "", "Source name recorded in the map")
	fl.StringVar(&f.sourceRoot, "source-root", "", "sourceRoot recorded in the map")
}

// options turns the flags given on the command line into invocation
// options.
func (f *compileFlags) options(cmd *cobra.Command) (*api.Options, error) {
	fl := cmd.Flags()
	o := &api.Options{
		Filename:       f.filename,
		Root:           f.root,
		RootMode:       api.RootMode(f.rootMode),
		EnvName:        f.envName,
		SourceFileName: f.sourceFileName,
		SourceRoot:     f.sourceRoot,
	}
	if f.noConfig {
		o.ConfigFile = api.Bool(false)
	}

	jsc := &api.JscConfig{}
	if fl.Changed("syntax") {
		jsc.Parser = &api.ParserConfig{
			Syntax:              f.syntax,
			JSX:                 f.jsx,
			TSX:                 f.tsx,
			Decorators:          f.decorators,
			DynamicImport:       f.dynamicImport,
			ExportNamespaceFrom: f.exportNamespaceFrom,
		}
	} else if err := requires(cmd, "syntax", "jsx", "tsx", "decorators", "dynamic-import", "export-namespace-from"); err != nil {
		return nil, err
	}
	if fl.Changed("target") {
		jsc.Target = &f.target
	}
	if fl.Changed("external-helpers") {
		jsc.ExternalHelpers = &f.externalHelpers
	}

	tr := &api.TransformConfig{}
	if fl.Changed("legacy-decorator") {
		tr.LegacyDecorator = &f.legacyDecorator
	}
	react := &api.ReactConfig{}
	if fl.Changed("pragma") {
		react.Pragma = &f.pragma
	}
	if fl.Changed("pragma-frag") {
		react.PragmaFrag = &f.pragmaFrag
	}
	if fl.Changed("throw-if-namespace") {
		react.ThrowIfNamespace = &f.throwIfNamespace
	}
	if fl.Changed("development") {
		react.Development = &f.development
	}
	if *react != (api.ReactConfig{}) {
		tr.React = react
	}
	if f.optimize || fl.Changed("global") || fl.Changed("env") {
		tr.Optimizer = &api.OptimizerConfig{}
		if fl.Changed("global") || fl.Changed("env") {
			g := &api.GlobalsConfig{Vars: f.globals}
			if fl.Changed("env") {
				g.Envs = append([]string{}, f.envs...)
			}
			tr.Optimizer.Globals = g
		}
	}
	if *tr != (api.TransformConfig{}) {
		jsc.Transform = tr
	}
	if *jsc != (api.JscConfig{}) {
		o.Jsc = jsc
	}

	if fl.Changed("module") {
		o.Module = &api.ModuleConfig{Type: f.module, Strict: f.strict, NoInterop: f.noInterop, ModuleID: f.moduleID}
	} else if err := requires(cmd, "module", "strict", "no-interop", "module-id"); err != nil {
		return nil, err
	}
	if fl.Changed("minify") {
		o.Minify = &f.minify
	}
	if fl.Changed("source-maps") {
		sm, err := parseSourceMaps(f.sourceMaps)
		if err != nil {
			return nil, err
		}
		o.SourceMaps = sm
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// requires fails when any of the dependent flags was given without base.
func requires(cmd *cobra.Command, base string, dependent ...string) error {
	for _, d := range dependent {
		if cmd.Flags().Changed(d) {
			return fmt.Errorf("--%s requires --%s", d, base)
		}
	}
	return nil
}

func parseSourceMaps(v string) (*api.SourceMaps, error) {
	switch v {
	case "true":
		return &api.SourceMaps{Enabled: true}, nil
	case "false":
		return &api.SourceMaps{}, nil
	case "":
		return nil, fmt.Errorf("--source-maps needs a value")
	default:
		return &api.SourceMaps{Enabled: true, Target: v}, nil
	}
}
