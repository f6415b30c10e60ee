package transform

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// exportInterop splits re-exports that bind a namespace or a default
// export into an import plus a local export, which every module format
// understands.
type exportInterop struct {
	ctx *Context
}

func (*exportInterop) Name() string { return "export-interop" }

func (e *exportInterop) Run(ctx *Context, p *rewrite.Program) error {
	e.ctx = ctx
	return rewrite.Rewrite(p, e.visit)
}

func (e *exportInterop) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	if n.Type() != "export_statement" {
		return nil, false
	}
	src := field(n, "source")
	if src == nil {
		return nil, false
	}
	from := r.Text(src)
	indent := indentOf(r.P, n)

	if ns := firstOfType(n, "namespace_export"); ns != nil {
		name := exportedName(r.P, ns.NamedChild(0))
		local := e.ctx.Names.Fresh(localName(name))
		return rewrite.Text("import * as ", local, " from ", from, ";\n",
			indent, "export { ", local, " as ", exportName(name), " };"), true
	}

	clause := firstOfType(n, "export_clause")
	if clause == nil {
		return nil, false
	}
	var def, rest []string
	for _, spec := range namedChildren(clause) {
		name := exportedName(r.P, field(spec, "name"))
		alias := name
		if a := field(spec, "alias"); a != nil {
			alias = exportedName(r.P, a)
		}
		if name != "default" {
			rest = append(rest, r.Text(spec))
			continue
		}
		def = append(def, alias)
	}
	if len(def) == 0 {
		return nil, false
	}

	local := e.ctx.Names.Fresh(localName(def[0]))
	out := rewrite.Text("import ", local, " from ", from, ";\n", indent, "export { ")
	for i, alias := range def {
		if i > 0 {
			out.Str(", ")
		}
		out.Str(local, " as ", exportName(alias))
	}
	out.Str(" };")
	if len(rest) > 0 {
		out.Str("\n", indent, "export { ", strings.Join(rest, ", "), " } from ", from, ";")
	}
	return out, true
}

// exportedName returns the name an export specifier refers to; string
// names like `export { "a-b" }` are decoded.
func exportedName(p *rewrite.Program, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "string" {
		return stringValue(p, n)
	}
	return p.Text(n)
}

func exportName(name string) string {
	if isIdentifierName(name) {
		return name
	}
	return quote(name)
}

// localName derives a binding name for an exported name.
func localName(name string) string {
	var sb strings.Builder
	sb.WriteByte('_')
	for _, r := range name {
		if r == '_' || r == '$' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
