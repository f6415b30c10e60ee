package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// CheckFeatures rejects constructs the grammar accepted but the configured
// syntax does not allow: JSX without the jsx/tsx flag and decorators
// without the decorators flag.
func CheckFeatures(t *Tree) error {
	var found *sitter.Node
	var msg string
	walk(t.Root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		typ := n.Type()
		switch {
		case strings.HasPrefix(typ, "jsx_") && !t.Syntax.AllowsJSX():
			found, msg = n, "JSX is not enabled for this syntax"
		case typ == "decorator" && !t.Syntax.Decorators:
			found, msg = n, "decorators are not enabled for this syntax"
		}
		return found == nil
	})
	if found == nil {
		return nil
	}
	return &Error{
		Line:    found.StartPoint().Row,
		Column:  found.StartPoint().Column,
		Message: msg,
	}
}

func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil {
			walk(c, fn)
		}
	}
}
