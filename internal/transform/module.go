package transform

import (
	"path"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// module rewrites ES module syntax to commonjs, AMD or UMD. Imported
// bindings are read through the required module object so they stay
// live; exported declarations are assigned to exports after they run.
type module struct {
	opts   ModuleOptions
	target Target

	ctx      *Context
	deps     []dependency
	imports  map[int]string    // replacement text by import statement offset
	bindings map[string]string // imported local name to its member expression
	hoisted  []string          // export assignments that run before the body
	exported bool
}

// dependency is one entry of an AMD or UMD dependency list.
type dependency struct {
	source string
	param  string
}

func (*module) Name() string { return "module" }

func (m *module) Run(ctx *Context, p *rewrite.Program) error {
	switch m.opts.Type {
	case ModuleCommonJS, ModuleAMD, ModuleUMD:
	default:
		return nil
	}
	m.ctx = ctx
	m.imports = map[int]string{}
	m.bindings = map[string]string{}
	for _, c := range namedChildren(p.Root) {
		if c.Type() == "import_statement" {
			m.imports[startOf(c)] = m.importStatement(p, c)
		}
	}

	edits := rewrite.NewRewriter(p, m.visit).Edits()
	edits = append(edits, m.wrap(p)...)
	return p.Apply(edits)
}

// member renders obj.name, falling back to a subscript when name is not
// a valid dot-access name for the target.
func (m *module) member(obj, name string) string {
	if isIdentifierName(name) && (m.target > ES3 || !reserved[name]) {
		return obj + "." + name
	}
	return obj + "[" + quote(name) + "]"
}

// require returns the expression that loads source: a require call for
// commonjs or the factory parameter bound to it for AMD and UMD.
func (m *module) require(source string) string {
	if m.opts.Type == ModuleCommonJS {
		return "require(" + quote(source) + ")"
	}
	for _, d := range m.deps {
		if d.source == source {
			return d.param
		}
	}
	param := m.ctx.Names.Fresh(sourceIdent(source))
	m.deps = append(m.deps, dependency{source: source, param: param})
	return param
}

func (m *module) interopDefault(expr string) string {
	if m.opts.NoInterop {
		return expr
	}
	return m.ctx.Helper("_interopRequireDefault") + "(" + expr + ")"
}

func (m *module) interopWildcard(expr string) string {
	if m.opts.NoInterop {
		return expr
	}
	return m.ctx.Helper("_interopRequireWildcard") + "(" + expr + ")"
}

// sourceIdent derives a binding name from a module specifier:
// "./foo-bar.js" becomes "_fooBar".
func sourceIdent(source string) string {
	base := path.Base(source)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	var sb strings.Builder
	sb.WriteByte('_')
	upper := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || r == '$' || r == '_' || unicode.IsDigit(r) && sb.Len() > 1:
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			sb.WriteRune(r)
		default:
			upper = sb.Len() > 1
		}
	}
	if sb.Len() == 1 {
		return "_module"
	}
	return sb.String()
}

func (m *module) importStatement(p *rewrite.Program, n *sitter.Node) string {
	source := stringValue(p, field(n, "source"))
	req := m.require(source)
	clause := firstOfType(n, "import_clause")
	if clause == nil {
		if m.opts.Type == ModuleCommonJS {
			return req + ";"
		}
		return ""
	}

	var def, ns string
	var named [][2]string // imported name, local name
	for _, c := range namedChildren(clause) {
		switch c.Type() {
		case "identifier":
			def = p.Text(c)
		case "namespace_import":
			ns = p.Text(c.NamedChild(0))
		case "named_imports":
			for _, s := range namedChildren(c) {
				if s.Type() != "import_specifier" {
					continue
				}
				name := field(s, "name")
				local := name
				if alias := field(s, "alias"); alias != nil {
					local = alias
				}
				named = append(named, [2]string{exportedName(p, name), p.Text(local)})
			}
		}
	}

	var obj, stmt string
	switch {
	case ns != "":
		obj = ns
		stmt = "var " + ns + " = " + m.interopWildcard(req) + ";"
	case def != "":
		obj = m.ctx.Names.Fresh(sourceIdent(source))
		stmt = "var " + obj + " = " + m.interopDefault(req) + ";"
	case m.opts.Type != ModuleCommonJS:
		obj = req
	default:
		obj = m.ctx.Names.Fresh(sourceIdent(source))
		stmt = "var " + obj + " = " + req + ";"
	}
	if def != "" {
		m.bindings[def] = m.member(obj, "default")
	}
	for _, nm := range named {
		m.bindings[nm[1]] = m.member(obj, nm[0])
	}
	return stmt
}

func (m *module) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "import_statement":
		if parentType(n) != "program" {
			return nil, false
		}
		return rewrite.Text(m.imports[startOf(n)]), true
	case "export_statement":
		if parentType(n) != "program" {
			return nil, false
		}
		return m.export(r, n), true
	case "identifier":
		repl, ok := m.bindings[r.Text(n)]
		if !ok || !isReference(n) {
			return nil, false
		}
		// A method called through the module object must not see it as this.
		if fieldOf(n) == "function" && parentType(n) == "call_expression" && strings.ContainsAny(repl, ".[") {
			return rewrite.Text("(0, ", repl, ")"), true
		}
		return rewrite.Text(repl), true
	case "shorthand_property_identifier":
		if repl, ok := m.bindings[r.Text(n)]; ok {
			return rewrite.Text(r.Text(n), ": ", repl), true
		}
	case "call_expression":
		fn := field(n, "function")
		if fn == nil || fn.Type() != "import" || m.opts.Type != ModuleCommonJS {
			return nil, false
		}
		args := field(n, "arguments")
		req := rewrite.Text("require(").Add(r.Range(args, startOf(args)+1, endOf(args)-1)).Str(")")
		if !m.opts.NoInterop {
			req = rewrite.Text(m.ctx.Helper("_interopRequireWildcard"), "(").Add(req).Str(")")
		}
		indent := indentOf(r.P, n)
		return rewrite.Text("Promise.resolve().then(function () {\n", indent, "  return ").Add(req).
			Str(";\n", indent, "})"), true
	}
	return nil, false
}

func (m *module) export(r *rewrite.Rewriter, n *sitter.Node) *rewrite.Fragment {
	m.exported = true
	indent := indentOf(r.P, n)
	exports := func(name string) string { return m.member("exports", name) }

	if src := field(n, "source"); src != nil {
		return m.reexport(r, n, stringValue(r.P, src), indent)
	}
	isDefault := hasToken(n, "default")
	if decl := field(n, "declaration"); decl != nil {
		names := declaredNames(r.P, decl)
		out := r.Node(decl)
		switch decl.Type() {
		case "function_declaration", "generator_function_declaration":
			for _, name := range names {
				if isDefault {
					m.hoisted = append(m.hoisted, exports("default")+" = "+name+";")
				} else {
					m.hoisted = append(m.hoisted, exports(name)+" = "+name+";")
				}
			}
			return out
		}
		for _, name := range names {
			target := exports(name)
			if isDefault {
				target = exports("default")
			}
			out.Str("\n", indent, target, " = ", name, ";")
		}
		return out
	}
	if val := field(n, "value"); val != nil {
		return rewrite.Text(exports("default"), " = ").Add(r.Node(val)).Str(";")
	}

	var lines []string
	for _, spec := range exportSpecifiers(n) {
		local := r.Text(field(spec, "name"))
		value := local
		if repl, ok := m.bindings[local]; ok {
			value = repl
		}
		lines = append(lines, exports(specifierExport(r.P, spec))+" = "+value+";")
	}
	return rewrite.Text(strings.Join(lines, "\n"+indent))
}

// specifierExport is the name an export specifier exports under.
func specifierExport(p *rewrite.Program, spec *sitter.Node) string {
	if alias := field(spec, "alias"); alias != nil {
		return exportedName(p, alias)
	}
	return exportedName(p, field(spec, "name"))
}

func exportSpecifiers(n *sitter.Node) []*sitter.Node {
	clause := firstOfType(n, "export_clause")
	if clause == nil {
		return nil
	}
	var out []*sitter.Node
	for _, c := range namedChildren(clause) {
		if c.Type() == "export_specifier" {
			out = append(out, c)
		}
	}
	return out
}

func (m *module) reexport(r *rewrite.Rewriter, n *sitter.Node, source, indent string) *rewrite.Fragment {
	req := m.require(source)
	if ns := firstOfType(n, "namespace_export"); ns != nil {
		exported := exportedName(r.P, ns.NamedChild(0))
		return rewrite.Text(m.member("exports", exported), " = ", m.interopWildcard(req), ";")
	}
	specs := exportSpecifiers(n)
	if len(specs) == 0 {
		return rewrite.Text(m.ctx.Helper("_exportStar"), "(", req, ", exports);")
	}

	obj := req
	var lines []string
	if m.opts.Type == ModuleCommonJS || reexportsDefault(r, specs) {
		obj = m.ctx.Names.Fresh(sourceIdent(source))
		init := req
		if reexportsDefault(r, specs) {
			init = m.interopDefault(req)
		}
		lines = append(lines, "var "+obj+" = "+init+";")
	}
	for _, spec := range specs {
		imported := exportedName(r.P, field(spec, "name"))
		lines = append(lines, "Object.defineProperty(exports, "+quote(specifierExport(r.P, spec))+", {\n"+
			indent+"  enumerable: true,\n"+
			indent+"  get: function () {\n"+
			indent+"    return "+m.member(obj, imported)+";\n"+
			indent+"  }\n"+
			indent+"});")
	}
	return rewrite.Text(strings.Join(lines, "\n"+indent))
}

func reexportsDefault(r *rewrite.Rewriter, specs []*sitter.Node) bool {
	for _, s := range specs {
		if r.Text(field(s, "name")) == "default" {
			return true
		}
	}
	return false
}

// declaredNames returns the bindings a declaration introduces.
func declaredNames(p *rewrite.Program, decl *sitter.Node) []string {
	switch decl.Type() {
	case "variable_declaration", "lexical_declaration":
		var names []string
		for _, d := range namedChildren(decl) {
			if d.Type() == "variable_declarator" {
				names = append(names, patternNames(p, field(d, "name"))...)
			}
		}
		return names
	}
	if name := field(decl, "name"); name != nil {
		return []string{p.Text(name)}
	}
	return nil
}

// patternNames collects the identifiers a binding pattern declares.
func patternNames(p *rewrite.Program, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{p.Text(n)}
	case "assignment_pattern", "object_assignment_pattern":
		return patternNames(p, field(n, "left"))
	case "pair_pattern":
		return patternNames(p, field(n, "value"))
	}
	var out []string
	for _, c := range namedChildren(n) {
		if c.Type() == "computed_property_name" {
			continue
		}
		out = append(out, patternNames(p, c)...)
	}
	return out
}

func hasUseStrict(p *rewrite.Program) bool {
	for _, c := range namedChildren(p.Root) {
		if c.Type() == "hash_bang_line" {
			continue
		}
		if c.Type() != "expression_statement" || c.NamedChild(0) == nil || c.NamedChild(0).Type() != "string" {
			return false
		}
		if stringValue(p, c.NamedChild(0)) == "use strict" {
			return true
		}
	}
	return false
}

// header returns the statements that open the module body.
func (m *module) header(p *rewrite.Program) []string {
	var lines []string
	if !hasUseStrict(p) {
		lines = append(lines, `"use strict";`)
	}
	if m.exported && !m.opts.Strict {
		lines = append(lines, "Object.defineProperty(exports, \"__esModule\", {\n  value: true\n});")
	}
	return append(lines, m.hoisted...)
}

// afterHashbang is where a wrapper may start.
func afterHashbang(p *rewrite.Program) int {
	for _, c := range children(p.Root) {
		if c.Type() == "hash_bang_line" {
			return skipSpace(p, endOf(c))
		}
	}
	return 0
}

func (m *module) wrap(p *rewrite.Program) []rewrite.Edit {
	header := m.header(p)
	if m.opts.Type == ModuleCommonJS {
		if len(header) == 0 {
			return nil
		}
		if !hasUseStrict(p) {
			// use strict must lead the directive prologue.
			return []rewrite.Edit{rewrite.Insert(afterHashbang(p), rewrite.Text(strings.Join(header, "\n"), "\n"))}
		}
		return []rewrite.Edit{prologue(p, strings.Join(header, "\n"))}
	}

	if hasUseStrict(p) {
		// The source's own directive no longer leads the factory body.
		header = append([]string{`"use strict";`}, header...)
	}
	deps := []string{`"exports"`}
	params := []string{"exports"}
	for _, d := range m.deps {
		deps = append(deps, quote(d.source))
		params = append(params, d.param)
	}
	body := "  " + strings.ReplaceAll(strings.Join(header, "\n"), "\n", "\n  ") + "\n"
	factory := "function (" + strings.Join(params, ", ") + ") {\n" + body

	var open string
	switch m.opts.Type {
	case ModuleAMD:
		open = "define("
		if m.opts.ModuleID != "" {
			open += quote(m.opts.ModuleID) + ", "
		}
		open += "[" + strings.Join(deps, ", ") + "], " + factory
	case ModuleUMD:
		open = m.umdHead(deps) + factory
	}
	return []rewrite.Edit{
		rewrite.Insert(afterHashbang(p), rewrite.Text(open)),
		rewrite.Insert(len(p.Src), rewrite.Text("\n});\n")),
	}
}

func (m *module) umdHead(deps []string) string {
	var globals []string
	requires := []string{"exports"}
	for _, d := range m.deps {
		globals = append(globals, "global."+strings.TrimPrefix(sourceIdent(d.source), "_"))
		requires = append(requires, "require("+quote(d.source)+")")
	}
	name := m.opts.ModuleID
	if name == "" && m.ctx.File != nil && m.ctx.File.Name != "" {
		name = strings.TrimPrefix(sourceIdent(m.ctx.File.Name), "_")
	}
	if name == "" {
		name = "module"
	}
	define := "define([" + strings.Join(deps, ", ") + "], factory);"
	if m.opts.ModuleID != "" {
		define = "define(" + quote(m.opts.ModuleID) + ", [" + strings.Join(deps, ", ") + "], factory);"
	}
	return "(function (global, factory) {\n" +
		"  if (typeof define === \"function\" && define.amd) {\n" +
		"    " + define + "\n" +
		"  } else if (typeof exports !== \"undefined\") {\n" +
		"    factory(" + strings.Join(requires, ", ") + ");\n" +
		"  } else {\n" +
		"    var mod = {\n      exports: {}\n    };\n" +
		"    factory(" + strings.Join(append([]string{"mod.exports"}, globals...), ", ") + ");\n" +
		"    global." + name + " = mod.exports;\n" +
		"  }\n" +
		"})(this, "
}
