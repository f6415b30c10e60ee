package compiler

import (
	"github.com/agentic-research/kiln/api"
	"github.com/agentic-research/kiln/internal/pipeline"
	"github.com/agentic-research/kiln/internal/rewrite"
	"github.com/agentic-research/kiln/internal/source"
	"github.com/agentic-research/kiln/internal/syntax"
)

// Parse parses source text with the parser settings opts resolve to. No
// pass runs; syntax.Dump renders the tree as JSON.
func (c *Compiler) Parse(src string, opts *api.Options) (*syntax.Tree, error) {
	o := c.options(opts)
	return c.parseFile(c.addSource(src, o), o)
}

// ParseFile reads and parses the file at path.
func (c *Compiler) ParseFile(path string, opts *api.Options) (*syntax.Tree, error) {
	o := c.options(opts)
	file, err := c.readSource(path, o)
	if err != nil {
		return nil, err
	}
	return c.parseFile(file, o)
}

func (c *Compiler) parseFile(file *source.File, o *api.Options) (*syntax.Tree, error) {
	built, err := c.resolver.Resolve(o, file)
	if err != nil {
		return nil, err
	}
	tree, err := parse(file, built.Syntax, nil)
	if err != nil {
		c.diagnose(file, err)
		return nil, err
	}
	return tree, nil
}

// Print emits an already parsed tree without running any pass, honoring
// the minify and source map settings opts resolve to. Mappings point into
// the tree's own text.
func (c *Compiler) Print(tree *syntax.Tree, opts *api.Options) (*api.Output, error) {
	o := c.options(opts)
	file := c.addSource(string(tree.Src), o)
	built, err := c.resolver.Resolve(o, file)
	if err != nil {
		return nil, err
	}
	var comments *syntax.Comments
	if !built.Minify {
		comments = &syntax.Comments{}
	}
	return c.emit(rewrite.New(tree), file, built, o, comments)
}

// Config resolves the pipeline a compile of path would run, config files
// included, without reading or parsing the module. An empty path resolves
// as an anonymous source.
func (c *Compiler) Config(path string, opts *api.Options) (*pipeline.BuiltConfig, error) {
	o := c.options(opts)
	file := &source.File{Name: path}
	if path != "" {
		file.Path = abs(o.Cwd, path)
	}
	return c.resolver.Resolve(o, file)
}
