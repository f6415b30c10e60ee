package transform

import (
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
	"github.com/agentic-research/kiln/internal/syntax"
)

// stripTypes removes TypeScript-only syntax and re-parses the result as
// ECMAScript. Enums and parameter properties are the only constructs with
// runtime meaning; they are lowered instead of dropped.
type stripTypes struct {
	jsx *JSXOptions

	used map[string]bool
	err  error
}

func (*stripTypes) Name() string { return "strip-types" }

func (s *stripTypes) Run(ctx *Context, p *rewrite.Program) error {
	if !p.Syntax.IsTypeScript() {
		return nil
	}
	s.used = valueNames(p, s.jsx)
	r := rewrite.NewRewriter(p, s.visit)
	edits := r.Edits()
	if s.err != nil {
		return s.err
	}
	if err := p.Apply(edits); err != nil {
		return err
	}
	return p.SetSyntax(syntax.Syntax{
		Dialect:             syntax.ECMAScript,
		JSX:                 p.Syntax.TSX,
		Decorators:          p.Syntax.Decorators,
		DynamicImport:       p.Syntax.DynamicImport,
		ExportNamespaceFrom: p.Syntax.ExportNamespaceFrom,
	})
}

func (s *stripTypes) fail(n *sitter.Node, format string, args ...any) {
	if s.err == nil {
		s.err = fmt.Errorf("%d:%d: %s", n.StartPoint().Row+1, n.StartPoint().Column+1, fmt.Sprintf(format, args...))
	}
}

var typeOnly = map[string]bool{
	"type_parameters":            true,
	"type_arguments":             true,
	"implements_clause":          true,
	"accessibility_modifier":     true,
	"override_modifier":          true,
	"index_signature":            true,
	"abstract_method_signature":  true,
	"method_signature":           true,
	"function_signature":         true,
	"interface_declaration":      true,
	"type_alias_declaration":     true,
	"ambient_declaration":        true,
	"declare_global_declaration": true,
}

func (s *stripTypes) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	t := n.Type()
	if typeOnly[t] || strings.HasSuffix(t, "_annotation") {
		return rewrite.Text(), true
	}
	if !n.IsNamed() {
		return s.token(n)
	}

	switch t {
	case "as_expression", "satisfies_expression", "non_null_expression":
		return r.Node(n.NamedChild(0)), true

	case "type_assertion":
		return r.Node(n.NamedChild(int(n.NamedChildCount()) - 1)), true

	case "public_field_definition", "field_definition":
		if hasToken(n, "declare") || hasToken(n, "abstract") {
			return rewrite.Text(), true
		}

	case "internal_module", "module":
		s.fail(n, "namespaces are not supported")

	case "import_require_clause", "import_alias":
		s.fail(n, "import assignments are not supported")

	case "required_parameter", "optional_parameter":
		if len(decoratorsOf(n)) > 0 {
			s.fail(n, "parameter decorators are not supported")
		}

	case "export_statement":
		return s.export(r, n)

	case "import_statement":
		return s.importStatement(r, n)

	case "enum_declaration":
		return s.enum(r, n), true

	case "formal_parameters":
		return s.params(r, n)

	case "statement_block":
		return s.constructorBody(r, n)
	}
	return nil, false
}

// token drops modifiers and markers that only exist in type syntax.
func (s *stripTypes) token(n *sitter.Node) (*rewrite.Fragment, bool) {
	parent := parentType(n)
	switch n.Type() {
	case "?":
		switch parent {
		case "optional_parameter", "public_field_definition", "method_definition", "property_signature":
			return rewrite.Text(), true
		}
	case "!":
		switch parent {
		case "public_field_definition", "variable_declarator":
			return rewrite.Text(), true
		}
	case "readonly", "override":
		switch parent {
		case "public_field_definition", "required_parameter", "optional_parameter", "method_definition":
			return rewrite.Text(), true
		}
	case "abstract":
		switch parent {
		case "abstract_class_declaration", "method_definition":
			return rewrite.Text(), true
		}
	}
	return nil, false
}

func (s *stripTypes) export(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	if hasToken(n, "=") {
		s.fail(n, "export assignments are not supported")
		return nil, false
	}
	if hasToken(n, "type") {
		return rewrite.Text(), true
	}
	if decl := field(n, "declaration"); decl != nil {
		if typeOnly[decl.Type()] {
			return rewrite.Text(), true
		}
		return nil, false
	}
	clause := firstOfType(n, "export_clause")
	if clause == nil {
		return nil, false
	}
	var kept []*sitter.Node
	dropped := false
	for _, spec := range namedChildren(clause) {
		if hasToken(spec, "type") {
			dropped = true
			continue
		}
		kept = append(kept, spec)
	}
	if !dropped {
		return nil, false
	}
	if len(kept) == 0 {
		return rewrite.Text(), true
	}
	out := r.Range(n, startOf(n), startOf(clause)).Str("{ ")
	for i, spec := range kept {
		if i > 0 {
			out.Str(", ")
		}
		out.Add(r.Node(spec))
	}
	return out.Str(" }").Add(r.Range(n, endOf(clause), endOf(n))), true
}

// importStatement removes type-only imports and elides bindings that are
// never used as values, the way TypeScript does.
func (s *stripTypes) importStatement(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	if hasToken(n, "type") {
		return rewrite.Text(), true
	}
	clause := firstOfType(n, "import_clause")
	if clause == nil {
		return nil, false
	}
	src := field(n, "source")
	if src == nil {
		return nil, false
	}

	var parts []string
	changed := false
	for _, c := range namedChildren(clause) {
		switch c.Type() {
		case "identifier":
			if s.used[r.Text(c)] {
				parts = append(parts, r.Text(c))
			} else {
				changed = true
			}
		case "namespace_import":
			id := firstOfType(c, "identifier")
			if id != nil && s.used[r.Text(id)] {
				parts = append(parts, r.Text(c))
			} else {
				changed = true
			}
		case "named_imports":
			var specs []string
			for _, spec := range namedChildren(c) {
				if spec.Type() != "import_specifier" {
					continue
				}
				local := field(spec, "alias")
				if local == nil {
					local = field(spec, "name")
				}
				if hasToken(spec, "type") || local == nil || !s.used[r.Text(local)] {
					changed = true
					continue
				}
				specs = append(specs, r.Text(spec))
			}
			if len(specs) > 0 {
				parts = append(parts, "{ "+strings.Join(specs, ", ")+" }")
			}
		}
	}
	if !changed {
		return nil, false
	}
	if len(parts) == 0 {
		return rewrite.Text(), true
	}
	out := rewrite.Text("import ", strings.Join(parts, ", "), " from ")
	return out.Add(r.Range(n, startOf(src), endOf(n))), true
}

// enum lowers an enum to the object-building IIFE TypeScript emits.
func (s *stripTypes) enum(r *rewrite.Rewriter, n *sitter.Node) *rewrite.Fragment {
	name := r.Text(field(n, "name"))
	indent := indentOf(r.P, n)
	out := rewrite.Text("var ", name, ";\n", indent, "(function (", name, ") {\n")

	next, known := float64(0), true
	prev := ""
	body := field(n, "body")
	for _, m := range namedChildren(body) {
		var key, value string
		numeric := false
		switch m.Type() {
		case "enum_assignment":
			key = memberName(r.P, field(m, "name"))
			v := field(m, "value")
			value = r.Text(v)
			if num, ok := parseNumber(value); ok && v.Type() == "number" {
				next, known, numeric = num+1, true, true
				value = formatNumber(num)
			} else if v.Type() == "string" {
				known = false
			} else {
				known, numeric = false, true
			}
		default:
			key = memberName(r.P, m)
			switch {
			case known:
				value = formatNumber(next)
				next++
			case prev != "":
				value = name + "[" + quote(prev) + "] + 1"
			default:
				value = "0"
			}
			numeric = true
		}
		prev = key
		if numeric {
			out.Str(indent, "  ", name, "[", name, "[", quote(key), "] = ", value, "] = ", quote(key), ";\n")
		} else {
			out.Str(indent, "  ", name, "[", quote(key), "] = ", value, ";\n")
		}
	}
	return out.Str(indent, "})(", name, " || (", name, " = {}));")
}

func memberName(p *rewrite.Program, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "string" {
		return stringValue(p, n)
	}
	return p.Text(n)
}

func parseNumber(s string) (float64, bool) {
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(i), true
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// params drops a leading `this` parameter.
func (s *stripTypes) params(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	var kept []*sitter.Node
	dropped := false
	for _, c := range namedChildren(n) {
		if pat := field(c, "pattern"); pat != nil && pat.Type() == "this" {
			dropped = true
			continue
		}
		kept = append(kept, c)
	}
	if !dropped {
		return nil, false
	}
	frags := make([]*rewrite.Fragment, len(kept))
	for i, c := range kept {
		frags[i] = r.Node(c)
	}
	return rewrite.Text("(").Add(rewrite.Join(frags, ", ")).Str(")"), true
}

// constructorBody assigns parameter properties at the top of the
// constructor, after the super call when there is one.
func (s *stripTypes) constructorBody(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	method := n.Parent()
	if method == nil || method.Type() != "method_definition" || r.Text(field(method, "name")) != "constructor" {
		return nil, false
	}
	var props []string
	for _, param := range namedChildren(field(method, "parameters")) {
		if firstOfType(param, "accessibility_modifier") == nil && !hasToken(param, "readonly") {
			continue
		}
		if pat := field(param, "pattern"); pat != nil && pat.Type() == "identifier" {
			props = append(props, r.Text(pat))
		}
	}
	if len(props) == 0 {
		return nil, false
	}

	at := startOf(n) + 1
	if call := superCall(n); call != nil {
		at = endOf(call)
	}
	indent := bodyIndent(r.P, n)
	ins := rewrite.Text()
	for _, name := range props {
		ins.Str("\n", indent, "this.", name, " = ", name, ";")
	}
	return r.Range(n, startOf(n), at).Add(ins).Add(r.Range(n, at, endOf(n))), true
}

// superCall returns the top-level `super(...)` statement of a constructor
// body.
func superCall(body *sitter.Node) *sitter.Node {
	for _, stmt := range namedChildren(body) {
		if stmt.Type() != "expression_statement" {
			continue
		}
		call := stmt.NamedChild(0)
		if call != nil && call.Type() == "call_expression" {
			if fn := field(call, "function"); fn != nil && fn.Type() == "super" {
				return stmt
			}
		}
	}
	return nil
}

func firstOfType(n *sitter.Node, typ string) *sitter.Node {
	if n == nil {
		return nil
	}
	for _, c := range children(n) {
		if c.Type() == typ {
			return c
		}
	}
	return nil
}

// valueNames collects every name read as a value anywhere in the program.
// Identifiers in type positions are type_identifier nodes and never count.
func valueNames(p *rewrite.Program, jsx *JSXOptions) map[string]bool {
	used := map[string]bool{}
	hasJSX := false
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier":
			if isReference(n) || parentType(n) == "export_specifier" && fieldOf(n) == "name" {
				used[p.Text(n)] = true
			}
		case "shorthand_property_identifier":
			used[p.Text(n)] = true
		case "jsx_opening_element", "jsx_self_closing_element":
			hasJSX = true
			if name := field(n, "name"); name != nil {
				used[jsxRoot(p, name)] = true
			}
		}
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(p.Root)
	if hasJSX {
		pragma, frag := "React.createElement", "React.Fragment"
		if jsx != nil {
			pragma, frag = jsx.Pragma, jsx.PragmaFrag
		}
		used[rootName(pragma)] = true
		used[rootName(frag)] = true
	}
	return used
}

func rootName(expr string) string {
	if i := strings.IndexAny(expr, ".(["); i >= 0 {
		return expr[:i]
	}
	return expr
}

// jsxRoot returns the binding a JSX element name reads: Foo for Foo.Bar.
func jsxRoot(p *rewrite.Program, name *sitter.Node) string {
	return rootName(p.Text(name))
}
