package transform

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// descriptor is one entry of a _createClass property list. Accessor
// pairs share an entry.
type descriptor struct {
	key    *rewrite.Fragment
	merge  string // key text, empty for computed keys
	value  *rewrite.Fragment
	getter *rewrite.Fragment
	setter *rewrite.Fragment
}

func (d *descriptor) render(indent string) *rewrite.Fragment {
	in := indent + "  "
	out := rewrite.Text("{\n", in, "key: ").Add(d.key)
	if d.value != nil {
		out.Str(",\n", in, "value: ").Add(d.value)
	}
	if d.getter != nil {
		out.Str(",\n", in, "get: ").Add(d.getter)
	}
	if d.setter != nil {
		out.Str(",\n", in, "set: ").Add(d.setter)
	}
	return out.Str("\n", indent, "}")
}

type descriptors struct {
	list []*descriptor
}

func (ds *descriptors) entry(key *rewrite.Fragment, merge string) *descriptor {
	if merge != "" {
		for _, d := range ds.list {
			if d.merge == merge && d.value == nil {
				return d
			}
		}
	}
	d := &descriptor{key: key, merge: merge}
	ds.list = append(ds.list, d)
	return d
}

func (ds *descriptors) render(indent string) *rewrite.Fragment {
	if len(ds.list) == 0 {
		return rewrite.Text("null")
	}
	items := make([]*rewrite.Fragment, len(ds.list))
	for i, d := range ds.list {
		items[i] = d.render(indent)
	}
	return rewrite.Text("[").Add(rewrite.Join(items, ", ")).Str("]")
}

// class lowers a class to a constructor function wrapped in an IIFE that
// wires inheritance and defines the methods.
func (e *es2015) class(r *rewrite.Rewriter, n *sitter.Node) *rewrite.Fragment {
	body := field(n, "body")
	var name string
	if id := field(n, "name"); id != nil {
		name = r.Text(id)
	} else {
		name = e.ctx.Names.Fresh("_class")
	}
	parent := superclassOf(n)

	indent := indentOf(r.P, n)
	in := indent + "  "

	var ctor *sitter.Node
	var proto, static descriptors
	for _, m := range namedChildren(body) {
		switch m.Type() {
		case "method_definition":
		case "class_static_block":
			e.fail(m, "static blocks are not supported")
			return nil
		default:
			e.fail(m, "class fields must be lowered before classes")
			return nil
		}
		key := field(m, "name")
		if key.Type() == "private_property_identifier" {
			e.fail(m, "private methods are not supported")
			return nil
		}
		if ctor == nil && !hasToken(m, "static") && same(m, constructorOf(r.P, body)) {
			ctor = m
			continue
		}
		isStatic := hasToken(m, "static")
		e.indents[startOf(m)] = in + "  "
		fn := e.method(r, m, name, isStatic)

		list := &proto
		if isStatic {
			list = &static
		}
		merge := ""
		if key.Type() != "computed_property_name" {
			merge = keyOf(r, key).String(r.P)
		}
		switch {
		case hasToken(m, "get"):
			list.entry(keyOf(r, key), merge).getter = fn
		case hasToken(m, "set"):
			list.entry(keyOf(r, key), merge).setter = fn
		default:
			d := &descriptor{key: keyOf(r, key), value: fn}
			list.list = append(list.list, d)
		}
	}

	out := rewrite.Text("/*#__PURE__*/function (")
	superParam := ""
	if parent != nil {
		superParam = e.ctx.Names.Fresh("_" + superBase(r, parent))
		out.Str(superParam)
	}
	out.Str(") {")
	if parent != nil {
		out.Str("\n", in, e.ctx.Helper("_inherits"), "(", name, ", ", superParam, ");")
	}
	out.Str("\n", in).Add(e.constructor(r, ctor, name, parent != nil, in))
	if len(proto.list) > 0 || len(static.list) > 0 {
		out.Str("\n", in, e.ctx.Helper("_createClass"), "(", name, ", ").Add(proto.render(in))
		if len(static.list) > 0 {
			out.Str(", ").Add(static.render(in))
		}
		out.Str(");")
	}
	out.Str("\n", in, "return ", name, ";\n", indent, "}(")
	if parent != nil {
		out.Add(r.Node(parent))
	}
	out.Str(")")

	if n.Type() == "class_declaration" {
		return rewrite.Text("var ", name, " = ").Add(out).Str(";")
	}
	if parentType(n) == "expression_statement" {
		return rewrite.Text("(").Add(out).Str(")")
	}
	return out
}

// superclassOf returns the expression after extends.
func superclassOf(class *sitter.Node) *sitter.Node {
	h := firstOfType(class, "class_heritage")
	if h == nil {
		return nil
	}
	expr := h.NamedChild(0)
	if expr != nil && expr.Type() == "extends_clause" {
		if v := field(expr, "value"); v != nil {
			return v
		}
		return expr.NamedChild(0)
	}
	return expr
}

func superBase(r *rewrite.Rewriter, parent *sitter.Node) string {
	switch parent.Type() {
	case "identifier":
		return r.Text(parent)
	case "member_expression":
		if prop := field(parent, "property"); prop != nil {
			return r.Text(prop)
		}
	}
	return "Super"
}

// classFrame pushes a frame for a class member body.
func (e *es2015) classFrame(body *sitter.Node, class string, static bool) func() {
	pop := e.pushFunction(body)
	f := e.top()
	f.class, f.static = class, static
	return pop
}

func (e *es2015) method(r *rewrite.Rewriter, m *sitter.Node, class string, static bool) *rewrite.Fragment {
	params, body := field(m, "parameters"), field(m, "body")
	pop := e.classFrame(body, class, static)
	defer pop()
	head := rewrite.Text("function ")
	if hasToken(m, "*") {
		head = rewrite.Text("function* ")
	}
	return e.functionRest(r, m, head, params, body, nil, nil)
}

// constructor renders the constructor function. Derived constructors
// read this through a variable assigned by the super call.
func (e *es2015) constructor(r *rewrite.Rewriter, ctor *sitter.Node, class string, derived bool, indent string) *rewrite.Fragment {
	check := rewrite.Text(e.ctx.Helper("_classCallCheck"), "(this, ", class, ");")
	if ctor == nil {
		out := rewrite.Text("function ", class, "() {\n", indent, "  ").Add(check)
		if derived {
			out.Str("\n", indent, "  return ", e.ctx.Helper("_possibleConstructorReturn"), "(this, ",
				e.ctx.Helper("_getPrototypeOf"), "(", class, ").apply(this, arguments));")
		}
		return out.Str("\n", indent, "}")
	}

	e.indents[startOf(ctor)] = indent
	params, body := field(ctor, "parameters"), field(ctor, "body")
	pop := e.classFrame(body, class, false)
	defer pop()
	head := rewrite.Text("function ", class)
	if !derived {
		return e.functionRest(r, ctor, head, params, body, []*rewrite.Fragment{check}, nil)
	}
	f := e.top()
	f.ctorThis = e.ctx.Names.Fresh("_this")
	f.thisName = ""
	extra := []*rewrite.Fragment{rewrite.Text("var ", f.ctorThis, ";"), check}
	return e.functionRest(r, ctor, head, params, body, extra, []*rewrite.Fragment{rewrite.Text("return ", f.ctorThis, ";")})
}

// exportDefaultClass splits `export default class Foo {}` into the
// declaration and an export of its binding.
func (e *es2015) exportDefaultClass(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	decl := field(n, "declaration")
	if decl == nil || decl.Type() != "class_declaration" || !hasToken(n, "default") {
		return nil, false
	}
	name := r.Text(field(decl, "name"))
	class := e.class(r, decl)
	if class == nil {
		return nil, true
	}
	return class.Str("\n", indentOf(r.P, n), "export default ", name, ";"), true
}

// home is the object super refers to in the current class member.
func (e *es2015) home(n *sitter.Node) (*frame, string, bool) {
	f := e.top()
	if f.class == "" {
		e.fail(n, "super outside of a class method")
		return nil, "", false
	}
	if f.static {
		return f, f.class, true
	}
	return f, f.class + ".prototype", true
}

func (e *es2015) superConstructorCall(r *rewrite.Rewriter, args *sitter.Node) *rewrite.Fragment {
	f := e.top()
	if f.ctorThis == "" {
		e.fail(args, "super call outside of a derived constructor")
		return nil
	}
	target := rewrite.Text(e.ctx.Helper("_getPrototypeOf"), "(", f.class, ")")
	if firstOfType(args, "spread_element") != nil {
		target.Str(".apply(this, ").Add(e.spreadList(r, namedChildren(args))).Str(")")
	} else {
		target.Str(".call(").Add(callArgs(r, args, rewrite.Text("this"))).Str(")")
	}
	return rewrite.Text(f.ctorThis, " = ", e.ctx.Helper("_possibleConstructorReturn"), "(this, ").Add(target).Str(")")
}

// callArgs renders an argument list without its parentheses, prefixed
// with first.
func callArgs(r *rewrite.Rewriter, args *sitter.Node, first *rewrite.Fragment) *rewrite.Fragment {
	if len(namedChildren(args)) == 0 {
		return first
	}
	return first.Str(", ").Add(r.Range(args, startOf(args)+1, endOf(args)-1))
}

func (e *es2015) superProperty(r *rewrite.Rewriter, member *sitter.Node) (*rewrite.Fragment, string, bool) {
	f, home, ok := e.home(member)
	if !ok {
		return nil, "", false
	}
	this := f.thisRef()
	prop := field(member, "property")
	get := rewrite.Text(e.ctx.Helper("_get"), "(", e.ctx.Helper("_getPrototypeOf"), "(", home, "), ", quote(r.Text(prop)), ", ", this, ")")
	return get, this, true
}

func (e *es2015) superMethodCall(r *rewrite.Rewriter, fn, args *sitter.Node) *rewrite.Fragment {
	get, this, ok := e.superProperty(r, fn)
	if !ok {
		return nil
	}
	if firstOfType(args, "spread_element") != nil {
		return get.Str(".apply(", this, ", ").Add(e.spreadList(r, namedChildren(args))).Str(")")
	}
	return get.Str(".call(").Add(callArgs(r, args, rewrite.Text(this))).Str(")")
}

// superMember reads a property of super outside of a call.
func (e *es2015) superMember(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	if !isSuper(field(n, "object")) {
		return nil, false
	}
	if fieldOf(n) == "left" {
		switch parentType(n) {
		case "assignment_expression", "augmented_assignment_expression":
			e.fail(n, "assignment to super properties is not supported")
			return nil, false
		}
	}
	get, _, ok := e.superProperty(r, n)
	if !ok {
		return nil, false
	}
	return get, true
}
