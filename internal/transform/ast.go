package transform

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

func field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName(name)
}

func startOf(n *sitter.Node) int { return int(n.StartByte()) }
func endOf(n *sitter.Node) int   { return int(n.EndByte()) }

func children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil && c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

// hasToken reports whether n has a direct anonymous child with the given
// text, such as "static" or "async".
func hasToken(n *sitter.Node, tok string) bool {
	return tokenChild(n, tok) != nil
}

func tokenChild(n *sitter.Node, tok string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && !c.IsNamed() && c.Type() == tok {
			return c
		}
	}
	return nil
}

func same(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// fieldOf returns the field name n occupies in its parent.
func fieldOf(n *sitter.Node) string {
	parent := n.Parent()
	if parent == nil {
		return ""
	}
	for i := 0; i < int(parent.ChildCount()); i++ {
		if same(parent.Child(i), n) {
			return parent.FieldNameForChild(i)
		}
	}
	return ""
}

func parentType(n *sitter.Node) string {
	if p := n.Parent(); p != nil {
		return p.Type()
	}
	return ""
}

func isFunctionExpr(t string) bool {
	return t == "function" || t == "function_expression"
}

// isFunction reports whether t introduces its own this binding.
func isFunction(t string) bool {
	switch t {
	case "function", "function_expression", "function_declaration",
		"generator_function", "generator_function_declaration", "method_definition":
		return true
	}
	return false
}

// isClass matches class node types. The class keyword token is also
// typed "class", so callers walking anonymous nodes check IsNamed.
func isClass(t string) bool {
	return t == "class" || t == "class_declaration"
}

func isFieldDefinition(t string) bool {
	return t == "field_definition" || t == "public_field_definition"
}

// isReference reports whether an identifier reads a binding rather than
// declaring one or naming a property.
func isReference(n *sitter.Node) bool {
	if n.Type() != "identifier" {
		return false
	}
	parent := n.Parent()
	if parent == nil {
		return true
	}
	f := fieldOf(n)
	switch parent.Type() {
	case "variable_declarator", "function_declaration", "function", "function_expression",
		"generator_function", "generator_function_declaration", "class_declaration", "class":
		return f != "name"
	case "formal_parameters", "rest_pattern", "array_pattern", "object_pattern",
		"import_clause", "namespace_import", "import_specifier", "export_specifier",
		"namespace_export", "labeled_statement", "catch_clause":
		return false
	case "assignment_pattern", "object_assignment_pattern":
		return f != "left"
	case "pair_pattern":
		return f != "value"
	case "arrow_function":
		return f != "parameter"
	case "assignment_expression", "augmented_assignment_expression":
		return f != "left"
	case "update_expression":
		return false
	case "for_in_statement":
		return f != "left"
	case "jsx_opening_element", "jsx_closing_element", "jsx_self_closing_element", "jsx_attribute":
		return false
	}
	return true
}

// isDeclarationName reports whether an identifier introduces a binding.
func isDeclarationName(n *sitter.Node) bool {
	return n.Type() == "identifier" && !isReference(n)
}

// quote renders s as a double-quoted JavaScript string literal.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\u2028':
			sb.WriteString(`\u2028`)
		case '\u2029':
			sb.WriteString(`\u2029`)
		default:
			if r < 0x20 {
				sb.WriteString(`\x` + strconv.FormatInt(int64(r)+0x100, 16)[1:])
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// stringValue decodes a string literal node. Only the common escapes are
// understood; anything else is returned raw.
func stringValue(p *rewrite.Program, n *sitter.Node) string {
	text := p.Text(n)
	if len(text) < 2 {
		return text
	}
	body := text[1 : len(text)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\n':
		default:
			sb.WriteByte(body[i])
		}
	}
	return sb.String()
}

// isIdentifierName reports whether s can be written as a bare identifier.
func isIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || r >= utf8.RuneSelf:
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case '0' <= r && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// atoms never need parentheses when substituted into a larger expression.
var atoms = map[string]bool{
	"identifier":               true,
	"number":                   true,
	"string":                   true,
	"template_string":          true,
	"true":                     true,
	"false":                    true,
	"null":                     true,
	"undefined":                true,
	"this":                     true,
	"super":                    true,
	"regex":                    true,
	"array":                    true,
	"object":                   true,
	"parenthesized_expression": true,
	"member_expression":        true,
	"subscript_expression":     true,
	"call_expression":          true,
}

// paren wraps f in parentheses unless n is an atom.
func paren(n *sitter.Node, f *rewrite.Fragment) *rewrite.Fragment {
	if atoms[n.Type()] {
		return f
	}
	return rewrite.Text("(").Add(f).Str(")")
}

// directives returns the end offset of the directive prologue (and any
// hashbang line), or -1 when the program has neither.
func directives(p *rewrite.Program) int {
	end := -1
	for _, c := range children(p.Root) {
		switch c.Type() {
		case "hash_bang_line":
			end = endOf(c)
			continue
		case "comment":
			continue
		case "expression_statement":
			if e := c.NamedChild(0); e != nil && e.Type() == "string" && c.NamedChildCount() == 1 {
				end = endOf(c)
				continue
			}
		}
		return end
	}
	return end
}

// prologue returns where program-level declarations go and the fragment
// that should wrap them: after the directives when there are any,
// otherwise at the very start.
func prologue(p *rewrite.Program, text string) rewrite.Edit {
	if end := directives(p); end >= 0 {
		return rewrite.Insert(end, rewrite.Text("\n", text))
	}
	return rewrite.Insert(0, rewrite.Text(text, "\n"))
}

// indentOf returns the leading whitespace of the line n starts on.
func indentOf(p *rewrite.Program, n *sitter.Node) string {
	start := startOf(n)
	lineStart := start
	for lineStart > 0 && p.Src[lineStart-1] != '\n' {
		lineStart--
	}
	i := lineStart
	for i < start && (p.Src[i] == ' ' || p.Src[i] == '\t') {
		i++
	}
	return string(p.Src[lineStart:i])
}

// bodyIndent guesses the indentation of statements inside a block.
func bodyIndent(p *rewrite.Program, block *sitter.Node) string {
	for _, c := range namedChildren(block) {
		return indentOf(p, c)
	}
	return indentOf(p, block) + "  "
}

// keyOf renders a property key as an expression usable in a computed
// position, e.g. "name" for a bare identifier key.
func keyOf(r *rewrite.Rewriter, key *sitter.Node) *rewrite.Fragment {
	switch key.Type() {
	case "property_identifier", "identifier", "private_property_identifier":
		return rewrite.Text(quote(r.Text(key)))
	case "computed_property_name":
		if inner := key.NamedChild(0); inner != nil {
			return r.Node(inner)
		}
	}
	return r.Node(key)
}

// bareName returns the identifier name of a key when it has one.
func bareName(r *rewrite.Rewriter, key *sitter.Node) string {
	switch key.Type() {
	case "property_identifier", "identifier":
		name := r.Text(key)
		if !reserved[name] {
			return name
		}
	}
	return ""
}

// reserved lists words that cannot be bare property names in ES3 nor
// binding names anywhere.
var reserved = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`break case catch class const continue debugger default delete do
		else enum export extends false finally for function if import in instanceof new null return
		super switch this throw true try typeof var void while with
		abstract boolean byte char double final float goto implements int interface let long native
		package private protected public short static synchronized throws transient volatile yield`) {
		reserved[w] = true
	}
}

// afterDecorators returns the offset of the first non-decorator child of n,
// skipping whitespace.
func afterDecorators(p *rewrite.Program, n *sitter.Node) int {
	off := startOf(n)
	for _, c := range children(n) {
		if c.Type() != "decorator" {
			break
		}
		off = endOf(c)
	}
	for off < endOf(n) && isSpace(p.Src[off]) {
		off++
	}
	return off
}

func decoratorsOf(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range children(n) {
		if c.Type() == "decorator" {
			out = append(out, c)
		}
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// skipSpace advances off past whitespace.
func skipSpace(p *rewrite.Program, off int) int {
	for off < len(p.Src) && isSpace(p.Src[off]) {
		off++
	}
	return off
}
