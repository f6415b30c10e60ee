// Package printer turns a rewritten program back into text and feeds the
// source map builder one mapping per emitted token that still has an
// origin in the original source.
package printer

import (
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
	"github.com/agentic-research/kiln/internal/source"
	"github.com/agentic-research/kiln/internal/sourcemap"
	"github.com/agentic-research/kiln/internal/syntax"
)

// Options control emission.
type Options struct {
	Minify bool
	// Comments is the parser's comment channel. When nil, comments are not
	// emitted.
	Comments *syntax.Comments
	// File is the original source the program's origins point into. It is
	// only consulted when a sink is given.
	File *source.File
	// SourceIndex is File's index in the sink.
	SourceIndex int
}

// Print emits prog. When sink is nil no mappings are computed.
func Print(prog *rewrite.Program, opts Options, sink *sourcemap.Builder) string {
	w := &writer{prog: prog, opts: opts, sink: sink}
	if sink != nil && opts.File == nil {
		w.sink = nil
	}
	if opts.Minify {
		w.minify(prog.Root)
	} else {
		w.normal()
	}
	return w.sb.String()
}

// Tokens whose text is emitted as a unit, never split into children.
var atomic = map[string]bool{
	"string":          true,
	"template_string": true,
	"regex":           true,
	"number":          true,
	"jsx_text":        true,
	"comment":         true,
	"html_comment":    true,
	"hash_bang_line":  true,
}

type writer struct {
	prog *rewrite.Program
	opts Options
	sink *sourcemap.Builder

	sb       strings.Builder
	line     int
	col      int // UTF-16 units
	last     byte
	lastLeaf string
}

func (w *writer) write(s string) {
	if s == "" {
		return
	}
	w.sb.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		w.line += strings.Count(s, "\n")
		w.col = source.UTF16Len(s[i+1:])
	} else {
		w.col += source.UTF16Len(s)
	}
	w.last = s[len(s)-1]
}

// token writes the text of [start, end), recording a mapping when its first
// byte came from the original source.
func (w *writer) token(start, end int) {
	if w.sink != nil {
		if o := w.prog.OriginOf(start); o >= 0 {
			pos := w.opts.File.Position(int(o))
			w.sink.AddMapping(sourcemap.Mapping{
				GenLine: w.line,
				GenCol:  w.col,
				Source:  w.opts.SourceIndex,
				SrcLine: pos.Line,
				SrcCol:  pos.Column,
			})
		}
	}
	text := string(w.prog.Src[start:end])
	w.write(text)
	w.lastLeaf = text
}

func isComment(n *sitter.Node) bool {
	return n.Type() == "comment" || n.Type() == "html_comment"
}

// leaves calls fn for every token of n in source order.
func leaves(n *sitter.Node, fn func(*sitter.Node)) {
	if n.ChildCount() == 0 || atomic[n.Type()] {
		fn(n)
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			leaves(c, fn)
		}
	}
}

// normal reproduces the program text, dropping comments only when they
// were not captured.
func (w *writer) normal() {
	src := w.prog.Src
	cursor := 0
	leaves(w.prog.Root, func(n *sitter.Node) {
		start, end := int(n.StartByte()), int(n.EndByte())
		if start < cursor {
			return
		}
		w.write(string(src[cursor:start]))
		cursor = end
		if isComment(n) && w.opts.Comments == nil {
			return
		}
		if end > start {
			w.token(start, end)
		}
	})
	w.write(string(src[cursor:]))
}

// Statements that end with a semicolon, explicit or automatic.
var terminated = map[string]bool{
	"expression_statement":    true,
	"variable_declaration":    true,
	"lexical_declaration":     true,
	"return_statement":        true,
	"throw_statement":         true,
	"break_statement":         true,
	"continue_statement":      true,
	"debugger_statement":      true,
	"do_statement":            true,
	"import_statement":        true,
	"field_definition":        true,
	"public_field_definition": true,
}

func (w *writer) minify(n *sitter.Node) {
	if isComment(n) {
		return
	}
	if n.ChildCount() == 0 || atomic[n.Type()] {
		start, end := int(n.StartByte()), int(n.EndByte())
		if end == start {
			return
		}
		text := string(w.prog.Src[start:end])
		if n.Type() == "hash_bang_line" {
			w.token(start, end)
			w.write("\n")
			return
		}
		if w.needsSpace(text) {
			w.write(" ")
		}
		w.token(start, end)
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			w.minify(c)
		}
	}
	if w.needsSemicolon(n) && w.last != ';' {
		w.write(";")
	}
}

func (w *writer) needsSemicolon(n *sitter.Node) bool {
	if terminated[n.Type()] {
		return true
	}
	if n.Type() != "export_statement" {
		return false
	}
	if n.ChildByFieldName("declaration") != nil {
		return false
	}
	if v := n.ChildByFieldName("value"); v != nil {
		switch v.Type() {
		case "function", "function_expression", "generator_function", "class":
			return false
		}
	}
	return true
}

func (w *writer) needsSpace(next string) bool {
	if w.sb.Len() == 0 || w.last == '\n' {
		return false
	}
	a, b := w.last, next[0]
	switch {
	case isWordByte(a) && isWordByte(b):
		return true
	case a == '+' && b == '+', a == '-' && b == '-', a == '/' && b == '/':
		return true
	case b == '.' && isDigitOnly(w.lastLeaf):
		return true
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c == '\\' || c >= utf8.RuneSelf ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// isDigitOnly reports whether a number token would absorb a following dot.
func isDigitOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
