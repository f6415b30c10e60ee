package api

// Default settings, applied beneath every other layer.
const (
	DefaultSyntax     = "ecmascript"
	DefaultTarget     = "es5"
	DefaultPragma     = "React.createElement"
	DefaultPragmaFrag = "React.Fragment"
)

// DefaultEnvs is the env allow-list used when a globals section names none.
var DefaultEnvs = []string{"NODE_ENV", "KILN_ENV"}

// Defaults returns the least specific configuration layer. It names no
// optional transform sections, so merging it never enables one.
func Defaults() *Config {
	return &Config{
		Jsc: &JscConfig{
			Parser:          &ParserConfig{Syntax: DefaultSyntax},
			Target:          String(DefaultTarget),
			ExternalHelpers: Bool(false),
		},
		Minify:     Bool(false),
		SourceMaps: &SourceMaps{},
	}
}
