package transform

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// es2017 turns async functions into generators driven by
// _asyncToGenerator, with every await becoming a yield.
type es2017 struct {
	target Target

	ctx   *Context
	depth int
}

func (*es2017) Name() string { return "es2017" }

func (e *es2017) Run(ctx *Context, p *rewrite.Program) error {
	if e.target >= ES2017 {
		return nil
	}
	e.ctx = ctx
	return rewrite.Rewrite(p, e.visit)
}

func (e *es2017) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "await_expression":
		if e.depth == 0 {
			return nil, false
		}
		return rewrite.Text("(yield ").Add(r.Node(n.NamedChild(0))).Str(")"), true
	case "function_declaration", "function", "function_expression", "arrow_function", "method_definition":
	default:
		return nil, false
	}
	async := tokenChild(n, "async")
	if async == nil || hasToken(n, "*") {
		return nil, false
	}
	body := field(n, "body")
	if body == nil {
		return nil, false
	}

	out := r.Range(n, startOf(n), startOf(async)).Add(r.Range(n, skipSpace(r.P, endOf(async)), startOf(body)))
	gen := rewrite.Text(e.ctx.Helper("_asyncToGenerator"), "(function* () ")
	e.depth++
	if body.Type() == "statement_block" {
		gen.Add(r.Node(body))
	} else {
		gen.Str("{ return ").Add(r.Node(body)).Str("; }")
	}
	e.depth--

	if n.Type() == "arrow_function" {
		return out.Add(gen).Str(").call(this)"), true
	}
	indent := indentOf(r.P, n)
	return out.Str("{\n", indent, "  return ").Add(gen).Str(").apply(this, arguments);\n", indent, "}"), true
}
