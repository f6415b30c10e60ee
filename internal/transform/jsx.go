package transform

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// jsx lowers JSX elements and fragments to pragma calls.
type jsx struct {
	opts JSXOptions

	ctx *Context
	err error
}

func (*jsx) Name() string { return "jsx" }

func (j *jsx) Run(ctx *Context, p *rewrite.Program) error {
	j.ctx = ctx
	r := rewrite.NewRewriter(p, j.visit)
	edits := r.Edits()
	if j.err != nil {
		return j.err
	}
	return p.Apply(edits)
}

func (j *jsx) fail(n *sitter.Node, format string, args ...any) {
	if j.err == nil {
		j.err = fmt.Errorf("%d:%d: %s", n.StartPoint().Row+1, n.StartPoint().Column+1, fmt.Sprintf(format, args...))
	}
}

func (j *jsx) visit(r *rewrite.Rewriter, n *sitter.Node) (*rewrite.Fragment, bool) {
	switch n.Type() {
	case "jsx_element":
		open := field(n, "open_tag")
		if open == nil {
			open = n.NamedChild(0)
		}
		end := endOf(n)
		if closeTag := field(n, "close_tag"); closeTag != nil {
			end = startOf(closeTag)
		} else if last := n.NamedChild(int(n.NamedChildCount()) - 1); last != nil && last.Type() == "jsx_closing_element" {
			end = startOf(last)
		}
		return j.element(r, open, j.children(r, n, endOf(open), end)), true
	case "jsx_self_closing_element":
		return j.element(r, n, nil), true
	case "jsx_fragment":
		start, end := endOf(n), endOf(n)
		for _, c := range children(n) {
			switch {
			case c.Type() == ">" && start == endOf(n):
				start = endOf(c)
			case c.Type() == "<":
				end = startOf(c)
			}
		}
		return j.call(rewrite.Text(j.opts.PragmaFrag), rewrite.Text("null"), j.children(r, n, start, end)), true
	}
	return nil, false
}

// element builds the call for an opening (or self-closing) tag and the
// children between it and its closing tag.
func (j *jsx) element(r *rewrite.Rewriter, tag *sitter.Node, kids []*rewrite.Fragment) *rewrite.Fragment {
	name := field(tag, "name")
	var typ *rewrite.Fragment
	switch {
	case name == nil:
		typ = rewrite.Text(j.opts.PragmaFrag)
	case name.Type() == "jsx_namespace_name":
		if j.opts.ThrowIfNamespace {
			j.fail(name, "namespace tags are not supported: %s", r.Text(name))
		}
		typ = rewrite.Text(quote(r.Text(name)))
	case name.Type() == "identifier" && isIntrinsic(r.Text(name)):
		typ = rewrite.Text(quote(r.Text(name)))
	default:
		typ = rewrite.Copy(startOf(name), endOf(name))
	}
	return j.call(typ, j.props(r, tag), kids)
}

func (j *jsx) call(typ, props *rewrite.Fragment, kids []*rewrite.Fragment) *rewrite.Fragment {
	out := rewrite.Text(j.opts.Pragma, "(").Add(typ).Str(", ").Add(props)
	for _, k := range kids {
		out.Str(", ").Add(k)
	}
	return out.Str(")")
}

// isIntrinsic reports whether a tag names a host element rather than a
// component binding.
func isIntrinsic(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c >= 'a' && c <= 'z' || strings.Contains(name, "-")
}

func (j *jsx) props(r *rewrite.Rewriter, tag *sitter.Node) *rewrite.Fragment {
	var segments []*rewrite.Fragment
	var obj []*rewrite.Fragment
	spread := false
	flush := func() {
		if len(obj) > 0 {
			segments = append(segments, rewrite.Text("{").Add(rewrite.Join(obj, ", ")).Str("}"))
			obj = nil
		}
	}
	for _, a := range namedChildren(tag) {
		switch a.Type() {
		case "jsx_attribute":
			obj = append(obj, j.attribute(r, a))
		case "jsx_expression":
			inner := a.NamedChild(0)
			if inner == nil || inner.Type() != "spread_element" {
				continue
			}
			flush()
			spread = true
			segments = append(segments, r.Node(inner.NamedChild(0)))
		}
	}
	if j.opts.Development && field(tag, "name") != nil && j.ctx.File != nil {
		obj = append(obj, j.source(r, tag))
	}
	flush()

	switch {
	case len(segments) == 0:
		return rewrite.Text("null")
	case !spread:
		return segments[0]
	}
	assign := "Object.assign"
	if !j.opts.UseBuiltins {
		assign = j.ctx.Helper("_extends")
	}
	return rewrite.Text(assign, "({}, ").Add(rewrite.Join(segments, ", ")).Str(")")
}

func (j *jsx) attribute(r *rewrite.Rewriter, a *sitter.Node) *rewrite.Fragment {
	nameNode := a.NamedChild(0)
	var value *sitter.Node
	if a.NamedChildCount() > 1 {
		value = a.NamedChild(int(a.NamedChildCount()) - 1)
	}

	name := r.Text(nameNode)
	if nameNode.Type() == "jsx_namespace_name" && j.opts.ThrowIfNamespace {
		j.fail(nameNode, "namespace attributes are not supported: %s", name)
	}
	key := rewrite.Text(name)
	if !isIdentifierName(name) {
		key = rewrite.Text(quote(name))
	}

	out := key.Str(": ")
	switch {
	case value == nil:
		return out.Str("true")
	case value.Type() == "string":
		raw := r.Text(value)
		body := raw[1 : len(raw)-1]
		if strings.ContainsAny(body, "\\&\n\r") {
			return out.Str(quote(html.UnescapeString(body)))
		}
		return out.Add(r.Node(value))
	case value.Type() == "jsx_expression":
		return out.Add(r.Node(value.NamedChild(0)))
	default:
		return out.Add(r.Node(value))
	}
}

// source renders the __source prop development builds attach to every
// element.
func (j *jsx) source(r *rewrite.Rewriter, tag *sitter.Node) *rewrite.Fragment {
	off := int(r.P.OriginOf(startOf(tag)))
	pos := j.ctx.File.Position(off)
	return rewrite.Text("__source: {fileName: ", quote(j.ctx.File.Name),
		", lineNumber: ", strconv.Itoa(pos.Line+1),
		", columnNumber: ", strconv.Itoa(pos.Column+1), "}")
}

func isJSXText(n *sitter.Node) bool {
	return n.Type() == "jsx_text" || n.Type() == "html_character_reference"
}

// children renders the children of n found in [start, end). Text is taken
// from the raw bytes between the other children so that no whitespace the
// grammar folds into neighbouring tokens is lost.
func (j *jsx) children(r *rewrite.Rewriter, n *sitter.Node, start, end int) []*rewrite.Fragment {
	var out []*rewrite.Fragment
	text := func(from, to int) {
		if to <= from {
			return
		}
		if s := cleanJSXText(r.P.Slice(from, to)); s != "" {
			out = append(out, rewrite.Text(quote(html.UnescapeString(s))))
		}
	}
	cursor := start
	for _, k := range children(n) {
		if !k.IsNamed() || isJSXText(k) || startOf(k) < start || endOf(k) > end {
			continue
		}
		text(cursor, startOf(k))
		cursor = endOf(k)
		switch k.Type() {
		case "jsx_expression":
			inner := k.NamedChild(0)
			if inner == nil || inner.Type() == "comment" {
				continue
			}
			out = append(out, r.Node(inner))
		case "comment":
		default:
			out = append(out, r.Node(k))
		}
	}
	text(cursor, end)
	return out
}

// cleanJSXText applies React's whitespace rules: lines are trimmed where
// they meet a line break, blank lines vanish and the rest are joined by a
// single space.
func cleanJSXText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")

	lastNonEmpty := -1
	for i, line := range lines {
		if strings.TrimLeft(line, " \t") != "" {
			lastNonEmpty = i
		}
	}

	var sb strings.Builder
	for i, line := range lines {
		line = strings.ReplaceAll(line, "\t", " ")
		if i > 0 {
			line = strings.TrimLeft(line, " ")
		}
		if i < len(lines)-1 {
			line = strings.TrimRight(line, " ")
		}
		if line == "" {
			continue
		}
		if i != lastNonEmpty {
			line += " "
		}
		sb.WriteString(line)
	}
	return sb.String()
}
