package transform

import (
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// es2015 lowers arrow functions, block-scoped declarations, template
// literals, shorthand and computed properties, default and rest
// parameters, spread arguments and classes.
//
// Destructuring, for-of and generators are not lowered.
type es2015 struct {
	target Target

	ctx    *Context
	p      *rewrite.Program
	frames []*frame
	temps  []string
	err    error

	renames map[int]string // identifier offset -> new name
	indents map[int]string // function offset -> indentation it is moved to
}

// frame is one function scope with its own this and arguments.
type frame struct {
	thisName string // capture of this for arrows, allocated on demand
	argsName string // capture of arguments for arrows
	arrows   int    // arrow functions currently being rendered inside

	// Set for class members.
	class    string
	static   bool
	ctorThis string // derived constructors: every this reads this name
}

// thisRef is what `this` means at the current point of the frame.
func (f *frame) thisRef() string {
	switch {
	case f.ctorThis != "":
		return f.ctorThis
	case f.arrows > 0 && f.thisName != "":
		return f.thisName
	}
	return "this"
}

func (*es2015) Name() string { return "es2015" }

func (e *es2015) Run(ctx *Context, p *rewrite.Program) error {
	if e.target >= ES2015 {
		return nil
	}
	e.ctx, e.p = ctx, p
	e.renames = blockRenames(p, ctx.Names)
	e.indents = map[int]string{}
	top := e.newFrame(p.Root)
	e.frames = []*frame{top}

	r := rewrite.NewRewriter(p, e.visit)
	edits := r.Edits()
	if e.err != nil {
		return e.err
	}
	var decls []string
	if top.thisName != "" {
		decls = append(decls, top.thisName+" = this")
	}
	if top.argsName != "" {
		decls = append(decls, top.argsName+" = arguments")
	}
	decls = append(decls, e.temps...)
	if len(decls) > 0 {
		edits = append(edits, prologue(p, "var "+strings.Join(decls, ", ")+";"))
	}
	return p.Apply(edits)
}

func (e *es2015) fail(n *sitter.Node, format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf("%d:%d: %s", n.StartPoint().Row+1, n.StartPoint().Column+1, fmt.Sprintf(format, args...))
	}
}

func (e *es2015) top() *frame { return e.frames[len(e.frames)-1] }

// newFrame allocates capture names for a function whose arrows use this
// or arguments.
func (e *es2015) newFrame(scope *sitter.Node) *frame {
	f := &frame{}
	usesThis, usesArgs := arrowCaptures(e.p, scope)
	if usesThis {
		f.thisName = e.ctx.Names.Fresh("_this")
	}
	if usesArgs {
		f.argsName = e.ctx.Names.Fresh("_arguments")
	}
	return f
}

// arrowCaptures reports whether an arrow function directly inside scope
// reads this (or super) or arguments.
func arrowCaptures(p *rewrite.Program, scope *sitter.Node) (this, args bool) {
	var walk func(n *sitter.Node, inArrow bool)
	walk = func(n *sitter.Node, inArrow bool) {
		t := n.Type()
		switch {
		case isFunction(t) || isClass(t):
			return
		case t == "arrow_function":
			inArrow = true
		case inArrow && (t == "this" || t == "super"):
			this = true
		case inArrow && isArgumentsRef(p, n):
			args = true
		}
		for _, c := range children(n) {
			walk(c, inArrow)
		}
	}
	for _, c := range children(scope) {
		walk(c, false)
	}
	return this, args
}

func (e *es2015) pushFunction(scope *sitter.Node) func() {
	e.frames = append(e.frames, e.newFrame(scope))
	return func() { e.frames = e.frames[:len(e.frames)-1] }
}

func (e *es2015) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	if !n.IsNamed() {
		switch n.Type() {
		case "let", "const":
			switch parentType(n) {
			case "lexical_declaration", "for_in_statement":
				return rewrite.Text("var"), true
			}
		}
		return nil, false
	}

	switch n.Type() {
	case "this":
		if ref := e.top().thisRef(); ref != "this" {
			return rewrite.Text(ref), true
		}
	case "identifier":
		if name, ok := e.renames[startOf(n)]; ok {
			return rewrite.Text(name), true
		}
		if f := e.top(); f.arrows > 0 && f.argsName != "" && isArgumentsRef(r.P, n) {
			return rewrite.Text(f.argsName), true
		}

	case "arrow_function":
		return e.arrow(r, n), true
	case "function_declaration", "function", "function_expression",
		"generator_function", "generator_function_declaration":
		params, body := field(n, "parameters"), field(n, "body")
		return e.function(r, n, r.Range(n, startOf(n), startOf(params)), params, body), true
	case "method_definition":
		if parentType(n) == "object" {
			return e.objectMethod(r, n), true
		}

	case "class_declaration", "class":
		return e.class(r, n), true
	case "export_statement":
		return e.exportDefaultClass(r, n)

	case "template_string":
		if parentType(n) == "call_expression" && fieldOf(n) == "arguments" {
			return nil, false
		}
		return e.template(r, n), true
	case "call_expression":
		return e.call(r, n)
	case "new_expression":
		return e.newSpread(r, n)
	case "array":
		if firstOfType(n, "spread_element") == nil {
			return nil, false
		}
		return e.spreadList(r, namedChildren(n)), true
	case "member_expression":
		return e.superMember(r, n)

	case "shorthand_property_identifier":
		name := r.Text(n)
		return rewrite.Text(name, ": ").Add(e.identifierValue(r, n)), true
	case "shorthand_property_identifier_pattern":
		if name, ok := e.renames[startOf(n)]; ok {
			return rewrite.Text(r.Text(n), ": ", name), true
		}
	case "object":
		return e.object(r, n)
	}
	return nil, false
}

func isArgumentsRef(p *rewrite.Program, n *sitter.Node) bool {
	return n.Type() == "identifier" && p.Text(n) == "arguments" && isReference(n)
}

// identifierValue renders the value side of an expanded shorthand
// property, which may itself need renaming.
func (e *es2015) identifierValue(r *rewrite.Rewriter, n *sitter.Node) *rewrite.Fragment {
	if name, ok := e.renames[startOf(n)]; ok {
		return rewrite.Text(name)
	}
	if f := e.top(); f.arrows > 0 && f.argsName != "" && r.Text(n) == "arguments" {
		return rewrite.Text(f.argsName)
	}
	return rewrite.Copy(startOf(n), endOf(n))
}

func (e *es2015) arrow(r *rewrite.Rewriter, n *sitter.Node) *rewrite.Fragment {
	f := e.top()
	f.arrows++
	defer func() { f.arrows-- }()

	var params *rewrite.Fragment
	var prelude []*rewrite.Fragment
	if p := field(n, "parameters"); p != nil {
		params, prelude = e.params(r, p)
	} else {
		params = rewrite.Text("(").Add(r.Node(field(n, "parameter"))).Str(")")
	}
	out := rewrite.Text("function ").Add(params).Str(" ").Add(e.body(r, n, field(n, "body"), prelude, nil))
	if parentType(n) == "expression_statement" {
		return rewrite.Text("(").Add(out).Str(")")
	}
	return out
}

// function renders a non-arrow function: head is everything before the
// parameter list.
func (e *es2015) function(r *rewrite.Rewriter, n *sitter.Node, head *rewrite.Fragment, params, body *sitter.Node) *rewrite.Fragment {
	pop := e.pushFunction(body)
	defer pop()
	return e.functionRest(r, n, head, params, body, nil, nil)
}

// functionRest renders parameters and body in the current frame, with
// extra statements placed before the body's own and suffix after them.
func (e *es2015) functionRest(r *rewrite.Rewriter, n *sitter.Node, head *rewrite.Fragment, params, body *sitter.Node, extra, suffix []*rewrite.Fragment) *rewrite.Fragment {
	f := e.top()
	var prelude []*rewrite.Fragment
	if f.thisName != "" {
		prelude = append(prelude, rewrite.Text("var ", f.thisName, " = this;"))
	}
	if f.argsName != "" {
		prelude = append(prelude, rewrite.Text("var ", f.argsName, " = arguments;"))
	}
	prelude = append(prelude, extra...)
	ps, defaults := e.params(r, params)
	prelude = append(prelude, defaults...)
	return head.Add(ps).Str(" ").Add(e.body(r, n, body, prelude, suffix))
}

// params renders a parameter list and returns the statements that
// implement default and rest parameters.
func (e *es2015) params(r *rewrite.Rewriter, params *sitter.Node) (*rewrite.Fragment, []*rewrite.Fragment) {
	list := namedChildren(params)
	simple := true
	for _, p := range list {
		if p.Type() == "assignment_pattern" || p.Type() == "rest_pattern" {
			simple = false
		}
	}
	if simple {
		return r.Node(params), nil
	}

	var frags, prelude []*rewrite.Fragment
	for i, p := range list {
		switch p.Type() {
		case "assignment_pattern":
			left := field(p, "left")
			if left.Type() != "identifier" {
				frags = append(frags, r.Node(p))
				continue
			}
			frags = append(frags, r.Node(left))
			name := r.Text(left)
			prelude = append(prelude, rewrite.Text("if (", name, " === void 0) {\n  ", name, " = ").
				Add(r.Node(field(p, "right"))).Str(";\n}"))
		case "rest_pattern":
			name := r.Text(p.NamedChild(0))
			prelude = append(prelude, rewrite.Text("var ", name, " = [].slice.call(arguments, ", strconv.Itoa(i), ");"))
		default:
			frags = append(frags, r.Node(p))
		}
	}
	return rewrite.Text("(").Add(rewrite.Join(frags, ", ")).Str(")"), prelude
}

// body renders a function body with prelude statements first and suffix
// statements last. Expression bodies of arrows become a return statement.
func (e *es2015) body(r *rewrite.Rewriter, fn, body *sitter.Node, prelude, suffix []*rewrite.Fragment) *rewrite.Fragment {
	if body.Type() != "statement_block" {
		indent := indentOf(r.P, fn)
		out := rewrite.Text("{")
		for _, s := range prelude {
			out.Str("\n", indent, "  ").Add(indentLines(r.P, s, indent+"  "))
		}
		return out.Str("\n", indent, "  return ").Add(r.Node(body)).Str(";\n", indent, "}")
	}
	if len(prelude) == 0 && len(suffix) == 0 {
		return r.Node(body)
	}
	stmts := namedChildren(body)
	if len(stmts) == 0 || !strings.Contains(r.P.Slice(startOf(body), startOf(stmts[0])), "\n") {
		return e.flatBody(r, fn, body, prelude, suffix)
	}
	indent := bodyIndent(r.P, body)
	at := startOf(body) + 1
	out := r.Range(body, startOf(body), at)
	for _, s := range prelude {
		out.Str("\n", indent).Add(indentLines(r.P, s, indent))
	}
	if len(suffix) == 0 {
		return out.Add(r.Range(body, at, endOf(body)))
	}
	end := endOf(stmts[len(stmts)-1])
	out.Add(r.Range(body, at, end))
	for _, s := range suffix {
		out.Str("\n", indent).Add(s)
	}
	return out.Add(r.Range(body, end, endOf(body)))
}

// flatBody renders a body written on one line with each statement group
// on its own line, so added statements are indented like the rest.
func (e *es2015) flatBody(r *rewrite.Rewriter, fn, body *sitter.Node, prelude, suffix []*rewrite.Fragment) *rewrite.Fragment {
	base, ok := e.indents[startOf(fn)]
	if !ok {
		base = indentOf(r.P, fn)
	}
	indent := base + "  "
	out := r.Range(body, startOf(body), startOf(body)+1)
	for _, s := range prelude {
		out.Str("\n", indent).Add(indentLines(r.P, s, indent))
	}
	start, end := skipSpace(r.P, startOf(body)+1), endOf(body)-1
	for end > start && isSpace(r.P.Src[end-1]) {
		end--
	}
	if start < end {
		out.Str("\n", indent).Add(r.Range(body, start, end))
	}
	for _, s := range suffix {
		out.Str("\n", indent).Add(s)
	}
	return out.Str("\n", base, "}")
}

// indentLines indents every line after the first of a synthesized
// multi-line statement.
func indentLines(p *rewrite.Program, f *rewrite.Fragment, indent string) *rewrite.Fragment {
	text := f.String(p)
	if !strings.Contains(text, "\n") {
		return f
	}
	return rewrite.Text(strings.ReplaceAll(text, "\n", "\n"+indent))
}

func (e *es2015) objectMethod(r *rewrite.Rewriter, n *sitter.Node) *rewrite.Fragment {
	params, body := field(n, "parameters"), field(n, "body")
	if hasToken(n, "get") || hasToken(n, "set") {
		return e.function(r, n, r.Range(n, startOf(n), startOf(params)), params, body)
	}
	head := r.Node(field(n, "name")).Str(": function")
	if hasToken(n, "*") {
		head.Str("*")
	}
	return e.function(r, n, head.Str(" "), params, body)
}

// object lowers computed keys to a _defineProperty chain. Properties
// before the first computed key stay in the literal.
func (e *es2015) object(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	props := namedChildren(n)
	first := -1
	for i, p := range props {
		if isComputed(p) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, false
	}
	for _, p := range props {
		if p.Type() == "method_definition" && (hasToken(p, "get") || hasToken(p, "set")) {
			e.fail(p, "accessors in objects with computed keys are not supported")
			return nil, false
		}
	}

	helper := e.ctx.Helper("_defineProperty")
	lead := make([]*rewrite.Fragment, 0, first)
	for _, p := range props[:first] {
		lead = append(lead, r.Node(p))
	}
	acc := rewrite.Text("{").Add(rewrite.Join(lead, ", ")).Str("}")
	for _, p := range props[first:] {
		var key, value *rewrite.Fragment
		switch p.Type() {
		case "pair":
			key, value = keyOf(r, field(p, "key")), r.Node(field(p, "value"))
		case "shorthand_property_identifier":
			key, value = rewrite.Text(quote(r.Text(p))), e.identifierValue(r, p)
		case "method_definition":
			head := rewrite.Text("function")
			if hasToken(p, "*") {
				head.Str("*")
			}
			key = keyOf(r, field(p, "name"))
			value = e.function(r, p, head.Str(" "), field(p, "parameters"), field(p, "body"))
		default:
			continue
		}
		acc = rewrite.Text(helper, "(").Add(acc).Str(", ").Add(key).Str(", ").Add(value).Str(")")
	}
	return acc, true
}

func isComputed(p *sitter.Node) bool {
	var key *sitter.Node
	switch p.Type() {
	case "pair":
		key = field(p, "key")
	case "method_definition":
		key = field(p, "name")
	}
	return key != nil && key.Type() == "computed_property_name"
}

// safeForSum lists parents under which a string concatenation needs no
// parentheses.
var safeForSum = map[string]bool{
	"expression_statement":     true,
	"variable_declarator":      true,
	"return_statement":         true,
	"arguments":                true,
	"array":                    true,
	"pair":                     true,
	"parenthesized_expression": true,
	"template_substitution":    true,
	"assignment_expression":    true,
	"jsx_expression":           true,
	"spread_element":           true,
	"throw_statement":          true,
}

// template turns a template literal into string concatenation.
func (e *es2015) template(r *rewrite.Rewriter, n *sitter.Node) *rewrite.Fragment {
	chunks, subs := templateParts(r.P, n)
	out := rewrite.Text(quoteRaw(chunks[0]))
	for i, sub := range subs {
		out.Str(" + ")
		expr := sub.NamedChild(0)
		out.Add(paren(expr, r.Node(expr)))
		if chunks[i+1] != "" {
			out.Str(" + ", quoteRaw(chunks[i+1]))
		}
	}
	if len(subs) == 0 || safeForSum[parentType(n)] {
		return out
	}
	return rewrite.Text("(").Add(out).Str(")")
}

// templateParts splits a template literal into the raw text around each
// substitution and the substitutions themselves.
func templateParts(p *rewrite.Program, n *sitter.Node) (raw []string, subs []*sitter.Node) {
	cursor := startOf(n) + 1
	for _, c := range children(n) {
		if c.Type() != "template_substitution" {
			continue
		}
		raw = append(raw, p.Slice(cursor, startOf(c)))
		subs = append(subs, c)
		cursor = endOf(c)
	}
	raw = append(raw, p.Slice(cursor, endOf(n)-1))
	return raw, subs
}

// quoteRaw turns the raw text of a template chunk into a double-quoted
// string literal with the same cooked value. Escapes are kept verbatim.
func quoteRaw(raw string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '\\':
			sb.WriteByte(c)
			if i+1 < len(raw) {
				i++
				sb.WriteByte(raw[i])
			}
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// taggedTemplate passes a frozen strings array, cached in a program-level
// variable, followed by the substitutions.
func (e *es2015) taggedTemplate(r *rewrite.Rewriter, n *sitter.Node, tmpl *sitter.Node) *rewrite.Fragment {
	raw, subs := templateParts(r.P, tmpl)
	cache := e.ctx.Names.Fresh("_templateObject")
	e.temps = append(e.temps, cache)

	cookedList := make([]string, len(raw))
	rawList := make([]string, len(raw))
	escapes := false
	for i, s := range raw {
		cookedList[i] = quoteRaw(s)
		rawList[i] = quote(s)
		if strings.Contains(s, `\`) {
			escapes = true
		}
	}
	strs := "[" + strings.Join(cookedList, ", ") + "]"
	if escapes {
		strs += ", [" + strings.Join(rawList, ", ") + "]"
	}

	out := r.Node(field(n, "function")).Str("(", cache, " || (", cache, " = ", e.ctx.Helper("_taggedTemplateLiteral"), "(", strs, "))")
	for _, sub := range subs {
		out.Str(", ").Add(r.Node(sub.NamedChild(0)))
	}
	return out.Str(")")
}

// call handles tagged templates, spread arguments and super calls.
func (e *es2015) call(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	fn, args := field(n, "function"), field(n, "arguments")
	if args != nil && args.Type() == "template_string" {
		return e.taggedTemplate(r, n, args), true
	}
	if fn == nil || args == nil {
		return nil, false
	}
	spread := firstOfType(args, "spread_element") != nil

	switch {
	case fn.Type() == "super":
		return e.superConstructorCall(r, args), true
	case fn.Type() == "member_expression" && isSuper(field(fn, "object")):
		return e.superMethodCall(r, fn, args), true
	case !spread:
		return nil, false
	}

	list := e.spreadList(r, namedChildren(args))
	if fn.Type() != "member_expression" {
		return r.Node(fn).Str(".apply(void 0, ").Add(list).Str(")"), true
	}
	obj := field(fn, "object")
	prop := rewrite.Copy(endOf(obj), endOf(fn))
	switch obj.Type() {
	case "identifier", "this":
		return r.Node(obj).Add(prop).Str(".apply(").Add(r.Node(obj)).Str(", ").Add(list).Str(")"), true
	}
	temp := e.ctx.Names.Fresh("_obj")
	e.temps = append(e.temps, temp)
	return rewrite.Text("(", temp, " = ").Add(r.Node(obj)).Str(")").Add(prop).
		Str(".apply(", temp, ", ").Add(list).Str(")"), true
}

// spreadList renders a list containing spread elements as one array
// expression.
func (e *es2015) spreadList(r *rewrite.Rewriter, items []*sitter.Node) *rewrite.Fragment {
	var segs []*rewrite.Fragment
	var group []*rewrite.Fragment
	groupFirst := false
	flush := func() {
		if len(group) > 0 {
			if len(segs) == 0 {
				groupFirst = true
			}
			segs = append(segs, rewrite.Text("[").Add(rewrite.Join(group, ", ")).Str("]"))
			group = nil
		}
	}
	for _, it := range items {
		if it.Type() != "spread_element" {
			group = append(group, r.Node(it))
			continue
		}
		flush()
		segs = append(segs, rewrite.Text(e.ctx.Helper("_toConsumableArray"), "(").Add(r.Node(it.NamedChild(0))).Str(")"))
	}
	flush()

	switch {
	case len(segs) == 1:
		return segs[0]
	case groupFirst:
		return segs[0].Str(".concat(").Add(rewrite.Join(segs[1:], ", ")).Str(")")
	}
	return rewrite.Text("[].concat(").Add(rewrite.Join(segs, ", ")).Str(")")
}

func (e *es2015) newSpread(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	args := field(n, "arguments")
	if args == nil || firstOfType(args, "spread_element") == nil {
		return nil, false
	}
	list := rewrite.Text("[null].concat(").Add(e.spreadList(r, namedChildren(args))).Str(")")
	return rewrite.Text("new (Function.prototype.bind.apply(").Add(r.Node(field(n, "constructor"))).
		Str(", ").Add(list).Str("))()"), true
}

func isSuper(n *sitter.Node) bool { return n != nil && n.Type() == "super" }
