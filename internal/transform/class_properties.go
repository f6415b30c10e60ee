package transform

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// classProperties moves public field initializers into the constructor
// and static fields after the class. Private fields are left alone.
type classProperties struct {
	ctx   *Context
	temps []string
}

func (*classProperties) Name() string { return "class-properties" }

func (c *classProperties) Run(ctx *Context, p *rewrite.Program) error {
	if !hasNodeOfType(p.Root, "field_definition") && !hasNodeOfType(p.Root, "public_field_definition") {
		return nil
	}
	c.ctx = ctx
	r := rewrite.NewRewriter(p, c.visit)
	edits := r.Edits()
	if len(c.temps) > 0 {
		edits = append(edits, prologue(p, "var "+strings.Join(c.temps, ", ")+";"))
	}
	return p.Apply(edits)
}

func (c *classProperties) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	if !n.IsNamed() || !isClass(n.Type()) {
		return nil, false
	}
	body := field(n, "body")
	if body == nil {
		return nil, false
	}
	var instance, static []*sitter.Node
	for _, m := range namedChildren(body) {
		if !isFieldDefinition(m.Type()) {
			continue
		}
		if key := memberKey(m); key == nil || key.Type() == "private_property_identifier" {
			continue
		}
		if hasToken(m, "static") {
			static = append(static, m)
		} else {
			instance = append(instance, m)
		}
	}
	if len(instance) == 0 && len(static) == 0 {
		return nil, false
	}

	indent := bodyIndent(r.P, body)
	helper := c.ctx.Helper("_defineProperty")
	inits := rewrite.Text()
	for _, f := range instance {
		inits.Str("\n", indent, "  ", helper, "(this, ").Add(c.keyAndValue(r, f)).Str(");")
	}

	derived := firstOfType(n, "class_heritage") != nil
	out := r.Range(n, startOf(n), startOf(body)).Add(c.body(r, body, append(instance, static...), inits, derived, indent))

	if len(static) == 0 {
		return out, true
	}
	if n.Type() == "class_declaration" {
		name := r.Text(field(n, "name"))
		outer := indentOf(r.P, n)
		for _, f := range static {
			out.Str("\n", outer, helper, "(", name, ", ").Add(c.keyAndValue(r, f)).Str(");")
		}
		return out, true
	}

	temp := c.ctx.Names.Fresh("_class")
	c.temps = append(c.temps, temp)
	seq := rewrite.Text("(", temp, " = ").Add(out)
	for _, f := range static {
		seq.Str(", ", helper, "(", temp, ", ").Add(c.keyAndValue(r, f)).Str(")")
	}
	return seq.Str(", ", temp, ")"), true
}

// body renders a class body without the given fields, with inits added
// to the constructor. A constructor is synthesized when there is none.
func (c *classProperties) body(r *rewrite.Rewriter, body *sitter.Node, drop []*sitter.Node, inits *rewrite.Fragment, derived bool, indent string) *rewrite.Fragment {
	ctor := constructorOf(r.P, body)
	out := new(rewrite.Fragment)
	cursor := startOf(body)
	if ctor == nil && !inits.Empty() {
		out.Add(r.Range(body, cursor, cursor+1)).Str("\n", indent, "constructor() {")
		if derived {
			out.Str("\n", indent, "  super(...arguments);")
		}
		out.Add(inits).Str("\n", indent, "}")
		cursor++
	}

	dropped := func(m *sitter.Node) bool {
		for _, d := range drop {
			if same(d, m) {
				return true
			}
		}
		return false
	}
	for _, m := range children(body) {
		switch {
		case dropped(m):
			out.Add(r.Range(body, cursor, startOf(m)))
			cursor = endOf(m)
		case ctor != nil && same(m, ctor) && !inits.Empty():
			block := field(ctor, "body")
			at := startOf(block) + 1
			if call := superCall(block); call != nil && derived {
				at = endOf(call)
			}
			out.Add(r.Range(body, cursor, at)).Add(inits)
			cursor = at
		}
	}
	return out.Add(r.Range(body, cursor, endOf(body)))
}

func (c *classProperties) keyAndValue(r *rewrite.Rewriter, f *sitter.Node) *rewrite.Fragment {
	out := keyOf(r, memberKey(f)).Str(", ")
	if v := field(f, "value"); v != nil {
		return out.Add(r.Node(v))
	}
	return out.Str("void 0")
}

// constructorOf returns the constructor method of a class body.
func constructorOf(p *rewrite.Program, body *sitter.Node) *sitter.Node {
	for _, m := range namedChildren(body) {
		if m.Type() != "method_definition" || hasToken(m, "static") {
			continue
		}
		if name := field(m, "name"); name != nil && strings.Trim(p.Text(name), `"'`) == "constructor" {
			return m
		}
	}
	return nil
}
