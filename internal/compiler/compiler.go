// Package compiler ties configuration, parsing, the pass pipeline and
// printing together.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/kiln/api"
	"github.com/agentic-research/kiln/internal/config"
	"github.com/agentic-research/kiln/internal/pipeline"
	"github.com/agentic-research/kiln/internal/printer"
	"github.com/agentic-research/kiln/internal/rewrite"
	"github.com/agentic-research/kiln/internal/source"
	"github.com/agentic-research/kiln/internal/sourcemap"
	"github.com/agentic-research/kiln/internal/syntax"
	"github.com/agentic-research/kiln/internal/transform"
)

// Compiler compiles sources. It is safe for concurrent use; every compile
// owns its tree, program and helper registry, and only the source set and
// the config cache are shared.
type Compiler struct {
	files    *source.Set
	fs       billy.Filesystem
	env      pipeline.EnvLookup
	log      *slog.Logger
	resolver *config.Resolver
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger. The default discards records.
func WithLogger(log *slog.Logger) Option {
	return func(c *Compiler) { c.log = log }
}

// WithFilesystem sets the filesystem config files and modules are read
// from. The default is the host filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(c *Compiler) { c.fs = fs }
}

// WithEnv sets the environment lookup used for envName defaulting and env
// inlining. The default is the process environment.
func WithEnv(env pipeline.EnvLookup) Option {
	return func(c *Compiler) { c.env = env }
}

func New(opts ...Option) *Compiler {
	c := &Compiler{files: source.NewSet()}
	for _, o := range opts {
		o(c)
	}
	if c.fs == nil {
		c.fs = osfs.New("/")
	}
	if c.env == nil {
		c.env = os.LookupEnv
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	c.resolver = config.NewResolver(c.fs, c.env, c.log)
	return c
}

// Files returns the compiler's source set.
func (c *Compiler) Files() *source.Set { return c.files }

// options returns a copy of opts with Cwd filled in.
func (c *Compiler) options(opts *api.Options) *api.Options {
	o := api.Options{}
	if opts != nil {
		o = *opts
	}
	if o.Cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			o.Cwd = wd
		} else {
			o.Cwd = "/"
		}
	}
	return &o
}

// addSource registers src under opts.Filename. A named source is
// path-backed, so config lookup starts at its directory.
func (c *Compiler) addSource(src string, o *api.Options) *source.File {
	if o.Filename == "" {
		return c.files.AddFile("", "", src)
	}
	return c.files.AddFile(o.Filename, abs(o.Cwd, o.Filename), src)
}

func (c *Compiler) readSource(path string, o *api.Options) (*source.File, error) {
	full := abs(o.Cwd, path)
	data, err := util.ReadFile(c.fs, full)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadModule, path, err)
	}
	return c.files.AddFile(path, full, string(data)), nil
}

// Transform compiles source text. Without opts.Filename the source is
// anonymous and no config file is consulted.
func (c *Compiler) Transform(src string, opts *api.Options) (*api.Output, error) {
	o := c.options(opts)
	return c.process(c.addSource(src, o), o)
}

// TransformFile reads and compiles the file at path, relative paths being
// resolved against opts.Cwd.
func (c *Compiler) TransformFile(path string, opts *api.Options) (*api.Output, error) {
	o := c.options(opts)
	file, err := c.readSource(path, o)
	if err != nil {
		return nil, err
	}
	return c.process(file, o)
}

// Process compiles a file already in the compiler's source set.
func (c *Compiler) Process(file *source.File, opts *api.Options) (*api.Output, error) {
	return c.process(file, c.options(opts))
}

func (c *Compiler) process(file *source.File, o *api.Options) (*api.Output, error) {
	start := time.Now()
	built, err := c.resolver.Resolve(o, file)
	if err != nil {
		return nil, err
	}

	var comments *syntax.Comments
	if !built.Minify {
		comments = &syntax.Comments{}
	}
	tree, err := parse(file, built.Syntax, comments)
	if err != nil {
		c.diagnose(file, err)
		return nil, err
	}

	prog := rewrite.New(tree)
	ctx := transform.NewContext(file, c.log)
	if err := transform.Run(ctx, prog, built.Passes); err != nil {
		c.diagnose(file, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransform, file.Name, err)
	}

	out, err := c.emit(prog, file, built, o, comments)
	if err != nil {
		return nil, err
	}
	c.log.Debug("compiled", "file", file.Name, "passes", len(built.Passes),
		"helpers", len(ctx.Helpers.Used()), "elapsed", time.Since(start))
	return out, nil
}

// parse parses file and checks the syntax-gated features. Errors wrap
// ErrParseModule and a *syntax.Error naming the file.
func parse(file *source.File, s syntax.Syntax, comments *syntax.Comments) (*syntax.Tree, error) {
	tree, err := syntax.Parse([]byte(file.Src), s, comments)
	if err == nil {
		err = syntax.CheckFeatures(tree)
	}
	if err != nil {
		var se *syntax.Error
		if errors.As(err, &se) {
			se.File = file.Name
		}
		return nil, fmt.Errorf("%w: %w", ErrParseModule, err)
	}
	return tree, nil
}

func (c *Compiler) diagnose(file *source.File, err error) {
	attrs := []any{"file", file.Name, "err", err}
	var se *syntax.Error
	if errors.As(err, &se) {
		attrs = append(attrs, "line", se.Line+1, "column", se.Column+1)
	}
	c.log.Debug("compile failed", attrs...)
}

// emit prints prog and packages the result. A map is only computed when
// source maps are enabled.
func (c *Compiler) emit(prog *rewrite.Program, file *source.File, built *pipeline.BuiltConfig,
	o *api.Options, comments *syntax.Comments) (*api.Output, error) {
	popts := printer.Options{Minify: built.Minify, Comments: comments}
	var sink *sourcemap.Builder
	if built.SourceMaps != pipeline.SourceMapsOff {
		if !utf8.ValidString(file.Src) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMapNotUTF8, file.Name)
		}
		name := o.SourceFileName
		if name == "" {
			name = file.Name
		}
		sink = sourcemap.NewBuilder(outputName(file, built), o.SourceRoot)
		// Anonymous sources keep their placeholder name so mappings have
		// a source to point at, but carry no content.
		var content *string
		if file.PathBacked() || o.SourceFileName != "" {
			src := file.Src
			content = &src
		}
		popts.File = file
		popts.SourceIndex = sink.AddSource(name, content)
	}

	out := &api.Output{Code: printer.Print(prog, popts, sink)}
	if !utf8.ValidString(out.Code) {
		return nil, fmt.Errorf("%w: %s", ErrOutputNotUTF8, file.Name)
	}
	if sink == nil {
		return out, nil
	}
	doc, err := sink.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSerializeSourceMap, file.Name, err)
	}
	switch built.SourceMaps {
	case pipeline.SourceMapsInline:
		out.Code = withMappingURL(out.Code, sourcemap.DataURL(doc))
	case pipeline.SourceMapsFile:
		out.Code = withMappingURL(out.Code, filepath.Base(built.SourceMapFile))
		m := string(doc)
		out.Map = &m
	default:
		m := string(doc)
		out.Map = &m
	}
	return out, nil
}

// outputName is the "file" entry of the map.
func outputName(file *source.File, built *pipeline.BuiltConfig) string {
	if built.SourceMapFile != "" {
		return strings.TrimSuffix(filepath.Base(built.SourceMapFile), ".map")
	}
	if file.PathBacked() {
		return filepath.Base(file.Path)
	}
	return ""
}

func withMappingURL(code, url string) string {
	if code != "" && !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code + "//# sourceMappingURL=" + url + "\n"
}

func abs(cwd, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}
