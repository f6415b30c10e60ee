package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Node is a JSON-friendly summary of a named tree node.
type Node struct {
	Type     string  `json:"type"`
	Field    string  `json:"field,omitempty"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Text     string  `json:"text,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Dump summarizes the named nodes of t. Leaf text is included so the dump
// can be read without the source.
func Dump(t *Tree) *Node {
	return dumpNode(t.Root, "", t.Src)
}

func dumpNode(n *sitter.Node, field string, src []byte) *Node {
	out := &Node{
		Type:  n.Type(),
		Field: field,
		Start: int(n.StartByte()),
		End:   int(n.EndByte()),
	}
	if n.NamedChildCount() == 0 {
		out.Text = string(src[n.StartByte():n.EndByte()])
		return out
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.IsNamed() {
			continue
		}
		out.Children = append(out.Children, dumpNode(c, n.FieldNameForChild(i), src))
	}
	return out
}
