package transform

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// es2016 rewrites the exponentiation operator to Math.pow.
type es2016 struct {
	target Target
}

func (*es2016) Name() string { return "es2016" }

func (e *es2016) Run(ctx *Context, p *rewrite.Program) error {
	if e.target >= ES2016 {
		return nil
	}
	return rewrite.Rewrite(p, e.visit)
}

func (e *es2016) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "binary_expression":
		if r.Text(field(n, "operator")) != "**" {
			return nil, false
		}
		return rewrite.Text("Math.pow(").Add(r.Node(field(n, "left"))).Str(", ").Add(r.Node(field(n, "right"))).Str(")"), true
	case "augmented_assignment_expression":
		if r.Text(field(n, "operator")) != "**=" {
			return nil, false
		}
		left := field(n, "left")
		// The target is evaluated twice.
		target := r.Node(left)
		again := rewrite.Copy(startOf(left), endOf(left))
		return target.Str(" = Math.pow(").Add(again).Str(", ").Add(r.Node(field(n, "right"))).Str(")"), true
	}
	return nil, false
}
