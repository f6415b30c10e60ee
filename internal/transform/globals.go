package transform

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// inlineGlobals replaces references to configured globals with their
// replacement expressions and process.env.NAME lookups of allowed
// environment variables with string literals. Names bound anywhere in
// the program are not globals and are left alone.
type inlineGlobals struct {
	opts GlobalsOptions
}

func (*inlineGlobals) Name() string { return "inline-globals" }

func (g *inlineGlobals) Run(ctx *Context, p *rewrite.Program) error {
	if len(g.opts.Vars) == 0 && len(g.opts.Envs) == 0 {
		return nil
	}
	return rewrite.Rewrite(p, g.visit)
}

func (g *inlineGlobals) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "identifier":
		expr, ok := g.opts.Vars[r.Text(n)]
		if !ok || !isReference(n) || resolvesLocally(r.P, n) {
			return nil, false
		}
		return g.replacement(n, expr), true

	case "shorthand_property_identifier":
		expr, ok := g.opts.Vars[r.Text(n)]
		if !ok || resolvesLocally(r.P, n) {
			return nil, false
		}
		return rewrite.Text(r.Text(n), ": ", expr), true

	case "member_expression", "subscript_expression":
		if val, ok := g.envLookup(r, n); ok {
			if localRoot(r, n) {
				return nil, false
			}
			return rewrite.Text(val), true
		}
		if isAssignTarget(n) {
			return nil, false
		}
		if expr, ok := g.opts.Vars[compact(r.Text(n))]; ok && n.Type() == "member_expression" && !localRoot(r, n) {
			return g.replacement(n, expr), true
		}
	}
	return nil, false
}

// replacement parenthesizes expressions that could bind differently once
// substituted.
func (g *inlineGlobals) replacement(n *sitter.Node, expr string) *rewrite.Fragment {
	if isSimpleExpr(expr) {
		return rewrite.Text(expr)
	}
	return rewrite.Text("(", expr, ")")
}

// envLookup matches process.env.NAME and process.env["NAME"].
func (g *inlineGlobals) envLookup(r *rewrite.Rewriter, n *sitter.Node) (string, bool) {
	if len(g.opts.Envs) == 0 || isAssignTarget(n) {
		return "", false
	}
	obj := field(n, "object")
	if obj == nil || obj.Type() != "member_expression" || compact(r.Text(obj)) != "process.env" {
		return "", false
	}
	var name string
	switch n.Type() {
	case "member_expression":
		prop := field(n, "property")
		if prop == nil {
			return "", false
		}
		name = r.Text(prop)
	case "subscript_expression":
		idx := field(n, "index")
		if idx == nil || idx.Type() != "string" {
			return "", false
		}
		name = stringValue(r.P, idx)
	}
	val, ok := g.opts.Envs[name]
	if !ok {
		return "", false
	}
	return quote(val), true
}

// localRoot reports whether the member chain n starts from a locally
// bound identifier.
func localRoot(r *rewrite.Rewriter, n *sitter.Node) bool {
	for n != nil {
		switch n.Type() {
		case "identifier":
			return resolvesLocally(r.P, n)
		case "member_expression", "subscript_expression":
			n = field(n, "object")
		default:
			return false
		}
	}
	return false
}

func isAssignTarget(n *sitter.Node) bool {
	switch parentType(n) {
	case "assignment_expression", "augmented_assignment_expression":
		return fieldOf(n) == "left"
	case "update_expression":
		return true
	case "unary_expression":
		return hasToken(n.Parent(), "delete")
	}
	return false
}

// compact strips whitespace so "process . env" matches "process.env".
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// isSimpleExpr reports whether a replacement needs no parentheses: a
// literal, an identifier or a member path.
func isSimpleExpr(s string) bool {
	if s == "" {
		return false
	}
	switch s {
	case "true", "false", "null", "undefined", "this":
		return true
	}
	if s[0] == '"' || s[0] == '\'' {
		return true
	}
	for _, part := range strings.Split(s, ".") {
		if !isIdentifierName(part) {
			return isNumber(s)
		}
	}
	return true
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}
