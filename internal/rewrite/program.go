// Package rewrite holds a parsed program as text plus tree and applies
// byte-range edits to it, keeping track of where every surviving byte came
// from in the original source.
package rewrite

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/syntax"
)

// Synthesized marks a byte with no origin in the original source.
const Synthesized int32 = -1

// ErrOverlap is returned when two edits claim overlapping ranges.
var ErrOverlap = errors.New("overlapping edits")

// Edit replaces [Start, End) with Frag. A zero-length range is an insertion.
type Edit struct {
	Start, End int
	Frag       *Fragment
}

// Insert is shorthand for a zero-length edit.
func Insert(off int, f *Fragment) Edit {
	return Edit{Start: off, End: off, Frag: f}
}

// Program is the current state of one compile: text, tree and per-byte
// origin map. It is owned by a single compile and never shared.
type Program struct {
	Syntax syntax.Syntax
	Src    []byte
	Origin []int32
	Root   *sitter.Node

	tree *syntax.Tree
}

// New wraps a freshly parsed tree. Every byte maps to itself.
func New(t *syntax.Tree) *Program {
	origin := make([]int32, len(t.Src))
	for i := range origin {
		origin[i] = int32(i)
	}
	return &Program{Syntax: t.Syntax, Src: t.Src, Origin: origin, Root: t.Root, tree: t}
}

// Tree returns the current parse tree.
func (p *Program) Tree() *syntax.Tree { return p.tree }

// Text returns the source text of n.
func (p *Program) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(p.Src[n.StartByte():n.EndByte()])
}

// Slice returns the text in [start, end).
func (p *Program) Slice(start, end int) string {
	return string(p.Src[start:end])
}

// OriginOf returns the original offset of the byte at off, or Synthesized.
func (p *Program) OriginOf(off int) int32 {
	if off < 0 || off >= len(p.Origin) {
		return Synthesized
	}
	return p.Origin[off]
}

// Apply splices the edits into the program and re-parses it. Edits that
// reproduce their own range are dropped; if nothing is left the program is
// untouched. The result must parse under the program's syntax.
func (p *Program) Apply(edits []Edit) error {
	kept := edits[:0:0]
	for _, e := range edits {
		if e.Frag.IsCopyOf(e.Start, e.End) {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return nil
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Start != kept[j].Start {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].End-kept[i].Start < kept[j].End-kept[j].Start
	})

	prevEnd := 0
	for _, e := range kept {
		if e.Start < 0 || e.End > len(p.Src) || e.Start > e.End {
			return fmt.Errorf("invalid byte range [%d:%d] for program of length %d", e.Start, e.End, len(p.Src))
		}
		if e.Start < prevEnd {
			return fmt.Errorf("%w: [%d:%d] starts before %d", ErrOverlap, e.Start, e.End, prevEnd)
		}
		prevEnd = e.End
	}

	src := make([]byte, 0, len(p.Src))
	origin := make([]int32, 0, len(p.Src))
	cursor := 0
	for _, e := range kept {
		src = append(src, p.Src[cursor:e.Start]...)
		origin = append(origin, p.Origin[cursor:e.Start]...)
		src, origin = p.render(e.Frag, src, origin)
		cursor = e.End
	}
	src = append(src, p.Src[cursor:]...)
	origin = append(origin, p.Origin[cursor:]...)

	return p.reset(src, origin, p.Syntax)
}

// SetSyntax re-parses the current text under a different syntax.
func (p *Program) SetSyntax(s syntax.Syntax) error {
	return p.reset(p.Src, p.Origin, s)
}

func (p *Program) render(f *Fragment, src []byte, origin []int32) ([]byte, []int32) {
	if f == nil {
		return src, origin
	}
	for _, pt := range f.parts {
		if pt.copy {
			src = append(src, p.Src[pt.start:pt.end]...)
			origin = append(origin, p.Origin[pt.start:pt.end]...)
			continue
		}
		src = append(src, pt.text...)
		for range len(pt.text) {
			origin = append(origin, Synthesized)
		}
	}
	return src, origin
}

func (p *Program) reset(src []byte, origin []int32, s syntax.Syntax) error {
	t, err := syntax.Parse(src, s, nil)
	if err != nil {
		var synErr *syntax.Error
		if errors.As(err, &synErr) {
			return fmt.Errorf("rewritten program does not parse: %w\n%s", err, excerpt(src, int(synErr.Line)))
		}
		return fmt.Errorf("rewritten program does not parse: %w", err)
	}
	p.Src, p.Origin, p.Root, p.Syntax, p.tree = src, origin, t.Root, s, t
	return nil
}

// excerpt returns up to two lines around line for error messages.
func excerpt(src []byte, line int) string {
	lines := strings.Split(string(src), "\n")
	lo, hi := line-1, line+2
	if lo < 0 {
		lo = 0
	}
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo >= hi {
		return ""
	}
	return strings.Join(lines[lo:hi], "\n")
}
