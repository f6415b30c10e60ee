package api

import (
	"encoding/json"
	"maps"
	"slices"
)

// Merge folds from into c, from taking precedence. Sections merge
// recursively; selectors (parser, module, target, sourceMaps and string
// options) take from's value; enable flags are ORed when both sides set
// them. A nil from is a no-op. Merge never aliases from.
func (c *Config) Merge(from *Config) {
	if from == nil {
		return
	}
	c.Jsc = mergeJsc(c.Jsc, from.Jsc)
	if from.Module != nil {
		m := *from.Module
		c.Module = &m
	}
	c.Minify = enable(c.Minify, from.Minify)
	if from.SourceMaps != nil {
		s := *from.SourceMaps
		c.SourceMaps = &s
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{}
	out.Merge(c)
	return out
}

// Fingerprint returns the canonical JSON encoding of c, "" for nil. Map
// keys are sorted, so equal configs have equal fingerprints.
func (c *Config) Fingerprint() string {
	if c == nil {
		return ""
	}
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

func mergeJsc(into, from *JscConfig) *JscConfig {
	if from == nil {
		return into
	}
	if into == nil {
		into = &JscConfig{}
	}
	if from.Parser != nil {
		p := *from.Parser
		into.Parser = &p
	}
	into.Transform = mergeTransform(into.Transform, from.Transform)
	into.Target = override(into.Target, from.Target)
	into.ExternalHelpers = enable(into.ExternalHelpers, from.ExternalHelpers)
	return into
}

func mergeTransform(into, from *TransformConfig) *TransformConfig {
	if from == nil {
		return into
	}
	if into == nil {
		into = &TransformConfig{}
	}
	into.React = mergeReact(into.React, from.React)
	into.Optimizer = mergeOptimizer(into.Optimizer, from.Optimizer)
	into.LegacyDecorator = enable(into.LegacyDecorator, from.LegacyDecorator)
	return into
}

func mergeReact(into, from *ReactConfig) *ReactConfig {
	if from == nil {
		return into
	}
	if into == nil {
		into = &ReactConfig{}
	}
	into.Pragma = override(into.Pragma, from.Pragma)
	into.PragmaFrag = override(into.PragmaFrag, from.PragmaFrag)
	into.ThrowIfNamespace = override(into.ThrowIfNamespace, from.ThrowIfNamespace)
	into.Development = enable(into.Development, from.Development)
	into.UseBuiltins = enable(into.UseBuiltins, from.UseBuiltins)
	return into
}

func mergeOptimizer(into, from *OptimizerConfig) *OptimizerConfig {
	if from == nil {
		return into
	}
	if into == nil {
		into = &OptimizerConfig{}
	}
	if from.Globals != nil {
		if into.Globals == nil {
			into.Globals = &GlobalsConfig{}
		}
		g := into.Globals
		if from.Globals.Vars != nil {
			vars := maps.Clone(g.Vars)
			if vars == nil {
				vars = map[string]string{}
			}
			maps.Copy(vars, from.Globals.Vars)
			g.Vars = vars
		}
		if from.Globals.Envs != nil {
			g.Envs = slices.Clone(from.Globals.Envs)
		}
	}
	return into
}

// override is the selector rule: from wins when present.
func override[T any](into, from *T) *T {
	if from == nil {
		return into
	}
	v := *from
	return &v
}

// enable is the flag rule: true on either side stays true.
func enable(into, from *bool) *bool {
	if from == nil {
		return into
	}
	v := *from
	if into != nil {
		v = v || *into
	}
	return &v
}
