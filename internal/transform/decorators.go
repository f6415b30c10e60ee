package transform

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// decorators lowers decorated classes to a sequence expression that builds
// the class into a temporary, applies member decorators to its prototype
// (or the class itself for statics) and finally the class decorators.
//
// Legacy mode applies class decorators by calling them directly; otherwise
// they go through the _decorate helper like member decorators do.
type decorators struct {
	legacy bool

	ctx   *Context
	temps []string
	err   error
}

func (*decorators) Name() string { return "decorators" }

func (d *decorators) Run(ctx *Context, p *rewrite.Program) error {
	if !hasNodeOfType(p.Root, "decorator") {
		return nil
	}
	d.ctx = ctx
	r := rewrite.NewRewriter(p, d.visit)
	edits := r.Edits()
	if d.err != nil {
		return d.err
	}
	if len(d.temps) > 0 {
		edits = append(edits, prologue(p, "var "+strings.Join(d.temps, ", ")+";"))
	}
	return p.Apply(edits)
}

func (d *decorators) fail(n *sitter.Node, format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%d:%d: %s", n.StartPoint().Row+1, n.StartPoint().Column+1, fmt.Sprintf(format, args...))
	}
}

func (d *decorators) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "export_statement":
		return d.export(r, n)
	case "class_declaration":
		if !isDecorated(n) {
			return nil, false
		}
		name := r.Text(field(n, "name"))
		return rewrite.Text("let ", name, " = ").Add(d.lower(r, n, nil)).Str(";"), true
	case "class":
		if !isDecorated(n) {
			return nil, false
		}
		return d.lower(r, n, nil), true
	case "decorator":
		// Member decorators are consumed by lower; reaching one here means
		// it sits somewhere decorators cannot be lowered.
		if p := parentType(n); p != "method_definition" && !isFieldDefinition(p) {
			d.fail(n, "decorators are only supported on classes and class members")
		}
		return rewrite.Text(), true
	}
	return nil, false
}

// export handles decorators written before the export keyword and default
// exported declarations, which cannot become a let in place.
func (d *decorators) export(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	decl := field(n, "declaration")
	if decl == nil || decl.Type() != "class_declaration" {
		return nil, false
	}
	outer := decoratorsOf(n)
	if len(outer) == 0 && !isDecorated(decl) {
		return nil, false
	}
	name := r.Text(field(decl, "name"))
	lowered := d.lower(r, decl, outer)
	if hasToken(n, "default") {
		return rewrite.Text("let ", name, " = ").Add(lowered).Str(";\n", indentOf(r.P, n), "export default ", name, ";"), true
	}
	return rewrite.Text("export let ", name, " = ").Add(lowered).Str(";"), true
}

// isDecorated reports whether a class or any of its members carries a
// decorator.
func isDecorated(class *sitter.Node) bool {
	if len(decoratorsOf(class)) > 0 {
		return true
	}
	body := field(class, "body")
	if body == nil {
		return false
	}
	for _, m := range namedChildren(body) {
		if len(decoratorsOf(m)) > 0 {
			return true
		}
	}
	return false
}

// lower renders `(_class = class ..., member decorations, class decorations,
// _class)`. extra holds decorators that were written before an export
// keyword.
func (d *decorators) lower(r *rewrite.Rewriter, class *sitter.Node, extra []*sitter.Node) *rewrite.Fragment {
	temp := d.ctx.Names.Fresh("_class")
	d.temps = append(d.temps, temp)

	out := rewrite.Text("(", temp, " = ").Add(r.Range(class, afterDecorators(r.P, class), endOf(class)))

	body := field(class, "body")
	for _, m := range namedChildren(body) {
		decs := decoratorsOf(m)
		if len(decs) == 0 {
			continue
		}
		key := memberKey(m)
		if key == nil {
			continue
		}
		if key.Type() == "private_property_identifier" {
			d.fail(key, "decorators on private members are not supported")
			continue
		}
		target := temp + ".prototype"
		if hasToken(m, "static") {
			target = temp
		}
		desc := "null"
		if isFieldDefinition(m.Type()) {
			desc = "void 0"
		}
		out.Str(", ", d.ctx.Helper("_decorate"), "([").Add(d.expressions(r, decs)).Str("], ", target, ", ")
		out.Add(decoratedKey(r, key)).Str(", ", desc, ")")
	}

	classDecs := append(extra, decoratorsOf(class)...)
	if len(classDecs) > 0 {
		if d.legacy {
			for i := len(classDecs) - 1; i >= 0; i-- {
				out.Str(", ", temp, " = ").Add(d.expression(r, classDecs[i])).Str("(", temp, ") || ", temp)
			}
		} else {
			out.Str(", ", temp, " = ", d.ctx.Helper("_decorate"), "([").Add(d.expressions(r, classDecs)).Str("], ", temp, ")")
		}
	}
	return out.Str(", ", temp, ")")
}

func (d *decorators) expressions(r *rewrite.Rewriter, decs []*sitter.Node) *rewrite.Fragment {
	frags := make([]*rewrite.Fragment, len(decs))
	for i, dec := range decs {
		frags[i] = d.expression(r, dec)
	}
	return rewrite.Join(frags, ", ")
}

// expression renders the expression after the @ of a decorator, wrapped
// in parentheses when it is not a simple call or member path.
func (d *decorators) expression(r *rewrite.Rewriter, dec *sitter.Node) *rewrite.Fragment {
	e := dec.NamedChild(0)
	if e == nil {
		return rewrite.Text()
	}
	return paren(e, r.Node(e))
}

// memberKey returns the name node of a method or field.
func memberKey(m *sitter.Node) *sitter.Node {
	if k := field(m, "name"); k != nil {
		return k
	}
	return field(m, "property")
}

// decoratedKey renders a member key as the property argument of _decorate.
func decoratedKey(r *rewrite.Rewriter, key *sitter.Node) *rewrite.Fragment {
	switch key.Type() {
	case "property_identifier", "identifier":
		return rewrite.Text(quote(r.Text(key)))
	case "computed_property_name":
		if inner := key.NamedChild(0); inner != nil {
			return rewrite.Copy(startOf(inner), endOf(inner))
		}
	}
	return rewrite.Copy(startOf(key), endOf(key))
}

func hasNodeOfType(n *sitter.Node, typ string) bool {
	if n.Type() == typ {
		return true
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil && hasNodeOfType(c, typ) {
			return true
		}
	}
	return false
}
