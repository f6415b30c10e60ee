package transform

import (
	"strconv"

	"github.com/RoaringBitmap/roaring"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// hygiene renames synthesized identifiers that collide with identifiers
// written in the source. Only the synthesized occurrences change, so the
// source's own bindings keep their names.
type hygiene struct{}

func (*hygiene) Name() string { return "hygiene" }

// occurrences indexes one synthesized name by start offset.
type occurrences struct {
	synthesized *roaring.Bitmap
	shorthand   *roaring.Bitmap // synthesized shorthand properties
	inSource    bool
}

func (*hygiene) Run(ctx *Context, p *rewrite.Program) error {
	index := map[string]*occurrences{}
	taken := map[string]bool{}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
			name := p.Text(n)
			taken[name] = true
			if !ctx.Names.Has(name) {
				break
			}
			occ := index[name]
			if occ == nil {
				occ = &occurrences{synthesized: roaring.New(), shorthand: roaring.New()}
				index[name] = occ
			}
			if p.OriginOf(startOf(n)) != rewrite.Synthesized {
				occ.inSource = true
				break
			}
			occ.synthesized.Add(uint32(startOf(n)))
			if n.Type() != "identifier" {
				occ.shorthand.Add(uint32(startOf(n)))
			}
		}
		for _, c := range children(n) {
			walk(c)
		}
	}
	walk(p.Root)

	var edits []rewrite.Edit
	for _, name := range ctx.Names.All() {
		occ := index[name]
		if occ == nil || !occ.inSource || occ.synthesized.IsEmpty() {
			continue
		}
		renamed := freeName(name, taken, ctx.Names)
		taken[renamed] = true
		ctx.Log.Debug("renaming synthesized identifier", "name", name, "to", renamed, "occurrences", occ.synthesized.GetCardinality())

		it := occ.synthesized.Iterator()
		for it.HasNext() {
			off := int(it.Next())
			frag := rewrite.Text(renamed)
			if occ.shorthand.Contains(uint32(off)) {
				frag = rewrite.Text(name, ": ", renamed)
			}
			edits = append(edits, rewrite.Edit{Start: off, End: off + len(name), Frag: frag})
		}
	}
	if len(edits) == 0 {
		return nil
	}
	return p.Apply(edits)
}

// freeName returns name1, name2, ... whichever is first unused by both the
// program and the synthesized names.
func freeName(name string, taken map[string]bool, names *Names) string {
	for i := 1; ; i++ {
		candidate := name + strconv.Itoa(i)
		if !taken[candidate] && !names.Has(candidate) {
			names.Register(candidate)
			return candidate
		}
	}
}
