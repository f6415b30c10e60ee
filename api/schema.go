package api

import (
	"encoding/json"
	"fmt"
)

// Config represents one layer of compiler configuration: the contents of a
// .kilnrc file, the options of an invocation, or the built-in defaults.
// Every field is optional; nil means the layer says nothing about it.
type Config struct {
	// Jsc configures parsing and the language-level transforms.
	Jsc *JscConfig `json:"jsc,omitempty"`
	// Module selects the module format of the output.
	Module *ModuleConfig `json:"module,omitempty"`
	// Minify emits compact output without comments.
	Minify *bool `json:"minify,omitempty"`
	// SourceMaps is true, false, "inline" or the path of a map file.
	SourceMaps *SourceMaps `json:"sourceMaps,omitempty"`
}

// JscConfig groups the parser, transform and target settings.
type JscConfig struct {
	Parser    *ParserConfig    `json:"parser,omitempty"`
	Transform *TransformConfig `json:"transform,omitempty"`
	// Target is the language level of the output, e.g. "es5".
	Target          *string `json:"target,omitempty"`
	ExternalHelpers *bool   `json:"externalHelpers,omitempty"`
}

// ParserConfig selects the source dialect. A layer that names a parser
// replaces the whole section.
type ParserConfig struct {
	Syntax              string `json:"syntax"` // "ecmascript" or "typescript"
	JSX                 bool   `json:"jsx,omitempty"`
	TSX                 bool   `json:"tsx,omitempty"`
	Decorators          bool   `json:"decorators,omitempty"`
	DynamicImport       bool   `json:"dynamicImport,omitempty"`
	ExportNamespaceFrom bool   `json:"exportNamespaceFrom,omitempty"`
}

// TransformConfig holds the optional transforms.
type TransformConfig struct {
	React           *ReactConfig     `json:"react,omitempty"`
	Optimizer       *OptimizerConfig `json:"optimizer,omitempty"`
	LegacyDecorator *bool            `json:"legacyDecorator,omitempty"`
}

// ReactConfig configures JSX lowering.
type ReactConfig struct {
	Pragma           *string `json:"pragma,omitempty"`
	PragmaFrag       *string `json:"pragmaFrag,omitempty"`
	ThrowIfNamespace *bool   `json:"throwIfNamespace,omitempty"`
	Development      *bool   `json:"development,omitempty"`
	UseBuiltins      *bool   `json:"useBuiltins,omitempty"`
}

// OptimizerConfig enables constant folding. Its presence alone turns the
// simplifier on.
type OptimizerConfig struct {
	Globals *GlobalsConfig `json:"globals,omitempty"`
}

// GlobalsConfig configures global inlining.
type GlobalsConfig struct {
	// Vars maps a global name (or dotted path) to its replacement
	// expression source.
	Vars map[string]string `json:"vars,omitempty"`
	// Envs is the allow-list of environment variables inlined from
	// process.env. Nil means the default list.
	Envs []string `json:"envs"`
}

// ModuleConfig selects the module format. A layer that names a module
// replaces the whole section.
type ModuleConfig struct {
	Type      string `json:"type"` // "commonjs", "amd", "umd" or "es6"
	Strict    bool   `json:"strict,omitempty"`
	NoInterop bool   `json:"noInterop,omitempty"`
	ModuleID  string `json:"moduleId,omitempty"`
}

// SourceMaps is the sourceMaps setting. In JSON it is either a bool or a
// string; a string enables maps and is either "inline" or a file path.
type SourceMaps struct {
	Enabled bool
	Target  string
}

// Inline reports whether the map is appended to the code as a data URL.
func (s *SourceMaps) Inline() bool { return s != nil && s.Enabled && s.Target == "inline" }

// File returns the map output path, or "" when none was named.
func (s *SourceMaps) File() string {
	if s == nil || !s.Enabled || s.Target == "inline" {
		return ""
	}
	return s.Target
}

func (s SourceMaps) MarshalJSON() ([]byte, error) {
	if s.Enabled && s.Target != "" {
		return json.Marshal(s.Target)
	}
	return json.Marshal(s.Enabled)
}

func (s *SourceMaps) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case bool:
		*s = SourceMaps{Enabled: v}
	case string:
		if v == "" {
			return fmt.Errorf("sourceMaps: empty string")
		}
		*s = SourceMaps{Enabled: true, Target: v}
	default:
		return fmt.Errorf("sourceMaps: expected a bool or a string, got %s", b)
	}
	return nil
}

// Output is the result of one compile.
type Output struct {
	Code string `json:"code"`
	// Map is the source map document, nil when maps were not requested.
	Map *string `json:"map,omitempty"`
}
