package transform

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// es3 quotes reserved words used as property names, which ES3 parsers
// reject in dot access and object keys.
type es3 struct {
	target Target
}

func (*es3) Name() string { return "es3" }

func (e *es3) Run(ctx *Context, p *rewrite.Program) error {
	if e.target > ES3 {
		return nil
	}
	return rewrite.Rewrite(p, e.visit)
}

func (e *es3) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "member_expression":
		prop := field(n, "property")
		if prop == nil || prop.Type() != "property_identifier" || !reserved[r.Text(prop)] {
			return nil, false
		}
		obj := field(n, "object")
		return r.Node(obj).Str("[", quote(r.Text(prop)), "]"), true
	case "property_identifier":
		if fieldOf(n) != "key" || !reserved[r.Text(n)] {
			return nil, false
		}
		return rewrite.Text(quote(r.Text(n))), true
	}
	return nil, false
}
