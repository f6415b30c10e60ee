package transform

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// es2018 lowers object spread to _objectSpread. Each run of plain
// properties becomes one object argument.
type es2018 struct {
	target Target

	ctx *Context
}

func (*es2018) Name() string { return "es2018" }

func (e *es2018) Run(ctx *Context, p *rewrite.Program) error {
	if e.target >= ES2018 {
		return nil
	}
	e.ctx = ctx
	return rewrite.Rewrite(p, e.visit)
}

func (e *es2018) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	if n.Type() != "object" || firstOfType(n, "spread_element") == nil {
		return nil, false
	}
	var args []*rewrite.Fragment
	var props []*rewrite.Fragment
	flush := func() {
		if len(props) > 0 || len(args) == 0 {
			args = append(args, rewrite.Text("{").Add(rewrite.Join(props, ", ")).Str("}"))
			props = nil
		}
	}
	for _, c := range namedChildren(n) {
		if c.Type() != "spread_element" {
			props = append(props, r.Node(c))
			continue
		}
		flush()
		args = append(args, r.Node(c.NamedChild(0)))
	}
	if len(props) > 0 {
		flush()
	}
	return rewrite.Text(e.ctx.Helper("_objectSpread"), "(").Add(rewrite.Join(args, ", ")).Str(")"), true
}
