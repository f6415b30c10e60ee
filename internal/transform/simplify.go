package transform

import (
	"math"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

const simplifyRounds = 10

// simplify folds expressions over literals and removes branches whose
// test is a literal. It runs until nothing changes.
type simplify struct {
	changed bool
}

func (*simplify) Name() string { return "simplify" }

func (s *simplify) Run(ctx *Context, p *rewrite.Program) error {
	for range simplifyRounds {
		s.changed = false
		if err := rewrite.Rewrite(p, s.visit); err != nil {
			return err
		}
		if !s.changed {
			return nil
		}
	}
	return nil
}

// litKind is the type of a value known at compile time.
type litKind int

const (
	litNumber litKind = iota
	litString
	litBool
	litNull
	litUndefined
)

type lit struct {
	kind litKind
	num  float64
	str  string
	b    bool
}

func (l lit) truthy() bool {
	switch l.kind {
	case litNumber:
		return l.num != 0 && !math.IsNaN(l.num)
	case litString:
		return l.str != ""
	case litBool:
		return l.b
	}
	return false
}

func (l lit) typeOf() string {
	switch l.kind {
	case litNumber:
		return "number"
	case litString:
		return "string"
	case litBool:
		return "boolean"
	case litNull:
		return "object"
	}
	return "undefined"
}

// render returns source text for values that fold to booleans or strings.
func (l lit) render() (string, bool) {
	switch l.kind {
	case litBool:
		if l.b {
			return "true", true
		}
		return "false", true
	case litString:
		return quote(l.str), true
	}
	return "", false
}

func strictEquals(a, b lit) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case litNumber:
		return a.num == b.num
	case litString:
		return a.str == b.str
	case litBool:
		return a.b == b.b
	}
	return true
}

// eval computes the value of an expression made only of literals.
func eval(p *rewrite.Program, n *sitter.Node) (lit, bool) {
	if n == nil {
		return lit{}, false
	}
	switch n.Type() {
	case "number":
		f, ok := parseNumber(strings.ReplaceAll(p.Text(n), "_", ""))
		return lit{kind: litNumber, num: f}, ok
	case "string":
		raw := p.Text(n)
		if hasNumericEscape(raw) {
			return lit{}, false
		}
		return lit{kind: litString, str: stringValue(p, n)}, true
	case "true":
		return lit{kind: litBool, b: true}, true
	case "false":
		return lit{kind: litBool}, true
	case "null":
		return lit{kind: litNull}, true
	case "undefined":
		return lit{kind: litUndefined}, true
	case "parenthesized_expression":
		if n.NamedChildCount() != 1 {
			return lit{}, false
		}
		return eval(p, n.NamedChild(0))
	case "unary_expression":
		arg, ok := eval(p, field(n, "argument"))
		if !ok {
			return lit{}, false
		}
		switch p.Text(field(n, "operator")) {
		case "!":
			return lit{kind: litBool, b: !arg.truthy()}, true
		case "typeof":
			return lit{kind: litString, str: arg.typeOf()}, true
		case "-":
			if arg.kind == litNumber {
				return lit{kind: litNumber, num: -arg.num}, true
			}
		}
	case "binary_expression":
		return evalBinary(p, n)
	case "ternary_expression":
		test, ok := eval(p, field(n, "condition"))
		if !ok {
			return lit{}, false
		}
		if test.truthy() {
			return eval(p, field(n, "consequence"))
		}
		return eval(p, field(n, "alternative"))
	}
	return lit{}, false
}

func evalBinary(p *rewrite.Program, n *sitter.Node) (lit, bool) {
	left, ok := eval(p, field(n, "left"))
	if !ok {
		return lit{}, false
	}
	op := p.Text(field(n, "operator"))
	switch op {
	case "&&":
		if !left.truthy() {
			return left, true
		}
		return eval(p, field(n, "right"))
	case "||":
		if left.truthy() {
			return left, true
		}
		return eval(p, field(n, "right"))
	}
	right, ok := eval(p, field(n, "right"))
	if !ok {
		return lit{}, false
	}
	switch op {
	case "===":
		return lit{kind: litBool, b: strictEquals(left, right)}, true
	case "!==":
		return lit{kind: litBool, b: !strictEquals(left, right)}, true
	case "==", "!=":
		var eq bool
		switch {
		case left.kind == right.kind:
			eq = strictEquals(left, right)
		case isNullish(left) && isNullish(right):
			eq = true
		case isNullish(left) || isNullish(right):
			eq = false
		default:
			return lit{}, false
		}
		return lit{kind: litBool, b: eq == (op == "==")}, true
	case "+":
		if left.kind == litString && right.kind == litString {
			return lit{kind: litString, str: left.str + right.str}, true
		}
	}
	return lit{}, false
}

// hasNumericEscape reports escapes stringValue does not decode: \x, \u
// and octal.
func hasNumericEscape(raw string) bool {
	for i := 0; i+1 < len(raw); i++ {
		if raw[i] != '\\' {
			continue
		}
		c := raw[i+1]
		if c == 'x' || c == 'u' || c >= '0' && c <= '9' {
			return true
		}
		i++
	}
	return false
}

func isNullish(l lit) bool { return l.kind == litNull || l.kind == litUndefined }

// conditions keep their parentheses: they are part of the statement
// syntax.
var conditions = map[string]bool{
	"if_statement":     true,
	"while_statement":  true,
	"do_statement":     true,
	"switch_statement": true,
	"with_statement":   true,
}

func (s *simplify) replace(r *rewrite.Rewriter, n *sitter.Node, f *rewrite.Fragment) (*rewrite.Fragment, bool) {
	if f.String(r.P) != r.Text(n) {
		s.changed = true
	}
	return f, true
}

func (s *simplify) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "unary_expression", "binary_expression":
		if n.Type() == "binary_expression" {
			switch r.Text(field(n, "operator")) {
			case "&&", "||":
				return s.logical(r, n)
			}
		}
		v, ok := eval(r.P, n)
		if !ok {
			return nil, false
		}
		text, ok := v.render()
		if !ok {
			return nil, false
		}
		return s.replace(r, n, rewrite.Text(text))

	case "ternary_expression":
		test, ok := eval(r.P, field(n, "condition"))
		if !ok {
			return nil, false
		}
		branch := field(n, "alternative")
		if test.truthy() {
			branch = field(n, "consequence")
		}
		return s.replace(r, n, r.Node(branch))

	case "parenthesized_expression":
		inner := n.NamedChild(0)
		if inner == nil || n.NamedChildCount() != 1 || conditions[parentType(n)] {
			return nil, false
		}
		switch inner.Type() {
		case "string", "true", "false", "null", "undefined":
			return s.replace(r, n, r.Node(inner))
		}

	case "if_statement":
		return s.ifStatement(r, n)
	}
	return nil, false
}

func (s *simplify) logical(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	left, ok := eval(r.P, field(n, "left"))
	if !ok {
		return nil, false
	}
	keepLeft := left.truthy() == (r.Text(field(n, "operator")) == "||")
	if keepLeft {
		return s.replace(r, n, r.Node(field(n, "left")))
	}
	return s.replace(r, n, r.Node(field(n, "right")))
}

func (s *simplify) ifStatement(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	test, ok := eval(r.P, field(n, "condition"))
	if !ok {
		return nil, false
	}
	branch := field(n, "consequence")
	if !test.truthy() {
		branch = nil
		if alt := field(n, "alternative"); alt != nil {
			// else_clause wraps the statement.
			branch = alt.NamedChild(0)
		}
	}

	inList := parentType(n) == "program" || parentType(n) == "statement_block"
	if branch == nil {
		if inList {
			return s.replace(r, n, rewrite.Text())
		}
		return s.replace(r, n, rewrite.Text(";"))
	}
	if branch.Type() == "statement_block" && inList && !declaresLexically(branch) {
		return s.replace(r, n, r.Range(branch, startOf(branch)+1, endOf(branch)-1))
	}
	return s.replace(r, n, r.Node(branch))
}

// declaresLexically reports whether a block declares block-scoped bindings
// that would leak if the braces were removed.
func declaresLexically(block *sitter.Node) bool {
	for _, c := range namedChildren(block) {
		switch c.Type() {
		case "lexical_declaration", "class_declaration", "function_declaration", "generator_function_declaration":
			return true
		}
	}
	return false
}
