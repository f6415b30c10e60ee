package transform

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// fixer tidies the output of the other passes: parentheses around atoms
// and empty statements left where declarations were removed.
type fixer struct{}

func (*fixer) Name() string { return "fixer" }

func (f *fixer) Run(ctx *Context, p *rewrite.Program) error {
	return rewrite.Rewrite(p, f.visit)
}

// bare lists expressions that never need parentheses.
var bare = map[string]bool{
	"identifier":               true,
	"string":                   true,
	"template_string":          true,
	"this":                     true,
	"true":                     true,
	"false":                    true,
	"null":                     true,
	"undefined":                true,
	"array":                    true,
	"parenthesized_expression": true,
}

func (f *fixer) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "parenthesized_expression":
		if n.NamedChildCount() != 1 || conditions[parentType(n)] {
			return nil, false
		}
		inner := n.NamedChild(0)
		switch {
		case inner.Type() == "number":
			// (1).toFixed() needs its parentheses.
			if parentType(n) == "member_expression" {
				return nil, false
			}
		case inner.Type() == "string" && parentType(n) == "expression_statement":
			// A bare string statement could become a directive.
			return nil, false
		case !bare[inner.Type()]:
			return nil, false
		}
		return r.Node(inner), true
	case "empty_statement":
		switch parentType(n) {
		case "program", "statement_block":
			return rewrite.Text(), true
		}
	}
	return nil, false
}
