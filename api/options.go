package api

import (
	"fmt"
	"os"
)

// RootMode controls where the upward search for .kilnrc stops.
type RootMode string

const (
	// RootModeRoot stops at the root directory.
	RootModeRoot RootMode = "root"
	// RootModeUpward searches to the filesystem root.
	RootModeUpward RootMode = "upward"
	// RootModeUpwardOptional is upward where a missing config is fine.
	RootModeUpwardOptional RootMode = "upward-optional"
)

// Options are the per-invocation settings. The embedded Config is the most
// specific configuration layer.
type Options struct {
	Config

	Cwd      string   `json:"cwd,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Root     string   `json:"root,omitempty"`
	RootMode RootMode `json:"rootMode,omitempty"`
	// ConfigFile disables .kilnrc lookup when false. Nil means true.
	ConfigFile *bool  `json:"configFile,omitempty"`
	EnvName    string `json:"envName,omitempty"`

	SourceFileName string `json:"sourceFileName,omitempty"`
	SourceRoot     string `json:"sourceRoot,omitempty"`
}

// LookupConfigFile reports whether .kilnrc files should be consulted.
func (o *Options) LookupConfigFile() bool {
	return o == nil || o.ConfigFile == nil || *o.ConfigFile
}

// Validate checks the enumerated fields.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	switch o.RootMode {
	case "", RootModeRoot, RootModeUpward, RootModeUpwardOptional:
	default:
		return fmt.Errorf("invalid rootMode %q", o.RootMode)
	}
	return nil
}

// Env resolves the environment name: EnvName, then $KILN_ENV, then
// $NODE_ENV, then "development".
func (o *Options) Env(lookup func(string) (string, bool)) string {
	if o != nil && o.EnvName != "" {
		return o.EnvName
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range []string{"KILN_ENV", "NODE_ENV"} {
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
	}
	return "development"
}

// Bool returns a pointer to v, for building configs in code.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
