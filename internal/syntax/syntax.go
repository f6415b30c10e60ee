// Package syntax adapts tree-sitter to the compiler: it picks a grammar for a
// dialect, parses source text, and reports syntax errors with positions.
package syntax

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Dialect is the base language accepted by the parser.
type Dialect string

const (
	ECMAScript Dialect = "ecmascript"
	TypeScript Dialect = "typescript"
)

// Syntax is the concrete parser configuration.
type Syntax struct {
	Dialect             Dialect
	JSX                 bool // ecmascript only
	TSX                 bool // typescript only
	Decorators          bool
	DynamicImport       bool
	ExportNamespaceFrom bool
}

// IsTypeScript reports whether type annotations may appear in the source.
func (s Syntax) IsTypeScript() bool { return s.Dialect == TypeScript }

// AllowsJSX reports whether JSX elements are legal in the source.
func (s Syntax) AllowsJSX() bool {
	if s.IsTypeScript() {
		return s.TSX
	}
	return s.JSX
}

// Language returns the tree-sitter grammar for the syntax. The javascript
// grammar always understands JSX; gating happens in CheckFeatures.
func Language(s Syntax) *sitter.Language {
	switch {
	case s.IsTypeScript() && s.TSX:
		return tsx.GetLanguage()
	case s.IsTypeScript():
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// ForPath guesses the syntax for a file by its extension. Unknown
// extensions fall back to ecmascript with JSX.
func ForPath(path string) Syntax {
	ext := ""
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		ext = strings.ToLower(path[i:])
	}
	switch ext {
	case ".ts", ".mts", ".cts":
		return Syntax{Dialect: TypeScript, Decorators: true}
	case ".tsx":
		return Syntax{Dialect: TypeScript, TSX: true, Decorators: true}
	default:
		return Syntax{Dialect: ECMAScript, JSX: true}
	}
}

// Comment is one comment captured during parsing.
type Comment struct {
	Start, End int
	Text       string
	Block      bool
}

// Comments is the parser's comment side channel. A nil *Comments means
// comments are not captured.
type Comments struct {
	mu   sync.Mutex
	list []Comment
}

func (c *Comments) add(cm Comment) {
	c.mu.Lock()
	c.list = append(c.list, cm)
	c.mu.Unlock()
}

// All returns the captured comments in source order.
func (c *Comments) All() []Comment {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Comment(nil), c.list...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Len returns the number of captured comments.
func (c *Comments) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.list)
}

// Tree is a parsed program.
type Tree struct {
	Syntax Syntax
	Src    []byte
	Root   *sitter.Node

	tree *sitter.Tree
}

// Error is a syntax error with a zero-based position.
type Error struct {
	File    string
	Line    uint32
	Column  uint32
	Message string
}

func (e *Error) Error() string {
	file := e.File
	if file == "" {
		file = "<anon>"
	}
	return fmt.Sprintf("%s:%d:%d: %s", file, e.Line+1, e.Column+1, e.Message)
}

// Parse parses src under the given syntax. When comments is non-nil every
// comment in the tree is recorded into it. A tree containing ERROR or
// MISSING nodes is rejected with an *Error.
func Parse(src []byte, s Syntax, comments *Comments) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(Language(s))

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root")
	}

	if root.HasError() {
		return nil, errorAt(root, src)
	}

	if comments != nil {
		collectComments(root, src, comments)
	}

	return &Tree{Syntax: s, Src: src, Root: root, tree: tree}, nil
}

// ParseExpression parses src as a single standalone expression and returns
// the expression node. Anything else (statements, trailing tokens, several
// expressions) is an error.
func ParseExpression(src string) (*Tree, *sitter.Node, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, nil, fmt.Errorf("empty expression")
	}
	// An object literal at statement start would parse as a block.
	wrapped := "(" + trimmed + "\n);"
	t, err := Parse([]byte(wrapped), Syntax{Dialect: ECMAScript}, nil)
	if err != nil {
		return nil, nil, err
	}
	if t.Root.NamedChildCount() != 1 {
		return nil, nil, fmt.Errorf("expected a single expression")
	}
	stmt := t.Root.NamedChild(0)
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return nil, nil, fmt.Errorf("expected a single expression")
	}
	paren := stmt.NamedChild(0)
	if paren.Type() != "parenthesized_expression" || paren.NamedChildCount() != 1 {
		return nil, nil, fmt.Errorf("expected a single expression")
	}
	expr := paren.NamedChild(0)
	if expr.Type() == "sequence_expression" {
		return nil, nil, fmt.Errorf("expected a single expression, got a sequence")
	}
	if kw := reservedIn(expr, t.Src); kw != "" {
		return nil, nil, fmt.Errorf("reserved word %q used as an expression", kw)
	}
	return t, expr, nil
}

// reservedIn returns the first identifier under n spelled as a reserved
// word. The grammar recovers such words as plain identifiers.
func reservedIn(n *sitter.Node, src []byte) string {
	if n.Type() == "identifier" || n.NamedChildCount() == 0 {
		if name := n.Content(src); reservedWords[name] {
			return name
		}
		return ""
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if kw := reservedIn(n.NamedChild(i), src); kw != "" {
			return kw
		}
	}
	return ""
}

var reservedWords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`break case catch class const continue debugger default delete do
		else enum export extends finally for function if import in instanceof new return
		super switch throw try typeof var void while with`) {
		reservedWords[w] = true
	}
}

func errorAt(root *sitter.Node, src []byte) *Error {
	n := findFirstError(root)
	if n == nil {
		return &Error{Message: "syntax error"}
	}
	msg := "unexpected token"
	switch {
	case n.IsMissing():
		msg = fmt.Sprintf("expected %q", n.Type())
	case n.EndByte() > n.StartByte():
		text := string(src[n.StartByte():n.EndByte()])
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[:i]
		}
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		msg = fmt.Sprintf("unexpected %q", text)
	default:
		msg = "unexpected end of input"
	}
	return &Error{
		Line:    n.StartPoint().Row,
		Column:  n.StartPoint().Column,
		Message: msg,
	}
}

// findFirstError does a depth-first search for the first ERROR or MISSING node.
func findFirstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := findFirstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

func collectComments(n *sitter.Node, src []byte, into *Comments) {
	if n.Type() == "comment" || n.Type() == "html_comment" {
		text := string(src[n.StartByte():n.EndByte()])
		into.add(Comment{
			Start: int(n.StartByte()),
			End:   int(n.EndByte()),
			Text:  text,
			Block: strings.HasPrefix(text, "/*"),
		})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			collectComments(c, src, into)
		}
	}
}
