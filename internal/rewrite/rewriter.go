package rewrite

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Visit decides how a node is rendered. Returning false leaves the node to
// the default rendering: its own text with every child rendered in turn.
type Visit func(r *Rewriter, n *sitter.Node) (*Fragment, bool)

// Rewriter folds a program into edits. Each node handled by the visitor at
// the outermost level becomes one edit; handled nodes below it are reached
// through Node and Range while the visitor builds its fragment.
type Rewriter struct {
	P *Program

	visit Visit
	extra []Edit
}

func NewRewriter(p *Program, visit Visit) *Rewriter {
	return &Rewriter{P: p, visit: visit}
}

// Node renders n, letting the visitor handle it or any descendant.
func (r *Rewriter) Node(n *sitter.Node) *Fragment {
	if n == nil {
		return new(Fragment)
	}
	if f, ok := r.visit(r, n); ok {
		if f == nil {
			f = new(Fragment)
		}
		return f
	}
	return r.Range(n, int(n.StartByte()), int(n.EndByte()))
}

// Range renders the bytes [start, end) of n. Children entirely inside the
// range are rendered with Node; gaps between them are copied.
func (r *Rewriter) Range(n *sitter.Node, start, end int) *Fragment {
	out := new(Fragment)
	cursor := start
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		cs, ce := int(c.StartByte()), int(c.EndByte())
		if ce <= start || cs >= end || ce <= cursor {
			if cs >= end {
				break
			}
			continue
		}
		if cs >= cursor && ce <= end {
			out.Copy(cursor, cs)
			out.Add(r.Node(c))
			cursor = ce
			continue
		}
		// Partial overlap: descend into the child for the covered part.
		lo, hi := max(cursor, cs), min(end, ce)
		out.Copy(cursor, lo)
		out.Add(r.Range(c, lo, hi))
		cursor = hi
	}
	out.Copy(cursor, end)
	return out
}

// Text returns the source text of n.
func (r *Rewriter) Text(n *sitter.Node) string { return r.P.Text(n) }

// Insert queues an insertion at off alongside the visitor's edits.
func (r *Rewriter) Insert(off int, f *Fragment) {
	r.extra = append(r.extra, Insert(off, f))
}

// Edits walks the tree top-down and returns one edit per outermost handled
// node plus any queued insertions.
func (r *Rewriter) Edits() []Edit {
	var edits []Edit
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if f, ok := r.visit(r, n); ok {
			edits = append(edits, Edit{Start: int(n.StartByte()), End: int(n.EndByte()), Frag: f})
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil {
				walk(c)
			}
		}
	}
	walk(r.P.Root)
	return append(edits, r.extra...)
}

// Run computes the edits and applies them to the program.
func (r *Rewriter) Run() error {
	edits := r.Edits()
	r.extra = nil
	return r.P.Apply(edits)
}

// Rewrite is shorthand for NewRewriter(p, visit).Run().
func Rewrite(p *Program, visit Visit) error {
	return NewRewriter(p, visit).Run()
}
