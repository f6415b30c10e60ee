package transform

import (
	"slices"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/agentic-research/kiln/internal/rewrite"
)

// scopePatternNames returns the names a binding pattern introduces. Default
// values are not descended into.
func scopePatternNames(p *rewrite.Program, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{p.Text(n)}
	case "assignment_pattern", "object_assignment_pattern":
		return scopePatternNames(p, field(n, "left"))
	case "pair_pattern":
		return scopePatternNames(p, field(n, "value"))
	}
	var out []string
	for _, c := range namedChildren(n) {
		out = append(out, scopePatternNames(p, c)...)
	}
	return out
}

// scopeDeclaredNames returns the names bound by a var, let or const
// declaration.
func scopeDeclaredNames(p *rewrite.Program, decl *sitter.Node) []string {
	var out []string
	for _, d := range namedChildren(decl) {
		if d.Type() == "variable_declarator" {
			out = append(out, scopePatternNames(p, field(d, "name"))...)
		}
	}
	return out
}

// lexicalDeclares reports whether a block, switch body or program binds
// name directly: let, const, function, class or import.
func lexicalDeclares(p *rewrite.Program, block *sitter.Node, name string) bool {
	for _, s := range namedChildren(block) {
		if s.Type() == "switch_case" || s.Type() == "switch_default" {
			if lexicalDeclares(p, s, name) {
				return true
			}
			continue
		}
		if s.Type() == "export_statement" {
			if s = field(s, "declaration"); s == nil {
				continue
			}
		}
		switch s.Type() {
		case "lexical_declaration":
			if slices.Contains(scopeDeclaredNames(p, s), name) {
				return true
			}
		case "function_declaration", "generator_function_declaration", "class_declaration":
			if id := field(s, "name"); id != nil && p.Text(id) == name {
				return true
			}
		case "import_statement":
			if slices.Contains(importedNames(p, s), name) {
				return true
			}
		}
	}
	return false
}

func importedNames(p *rewrite.Program, imp *sitter.Node) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "string":
			return
		case "import_specifier":
			id := field(n, "alias")
			if id == nil {
				id = field(n, "name")
			}
			if id != nil {
				out = append(out, p.Text(id))
			}
			return
		case "identifier":
			out = append(out, p.Text(n))
			return
		}
		for _, c := range namedChildren(n) {
			walk(c)
		}
	}
	walk(imp)
	return out
}

// varDeclares reports whether a var binding of name is hoisted to the
// function or program n.
func varDeclares(p *rewrite.Program, n *sitter.Node, name string) bool {
	found := false
	var walk func(c *sitter.Node)
	walk = func(c *sitter.Node) {
		t := c.Type()
		switch {
		case found || isFunction(t) || t == "arrow_function" || isClass(t):
			return
		case t == "variable_declaration":
			found = slices.Contains(scopeDeclaredNames(p, c), name)
		case t == "for_in_statement" && hasToken(c, "var"):
			found = slices.Contains(scopePatternNames(p, field(c, "left")), name)
		}
		for _, cc := range namedChildren(c) {
			walk(cc)
		}
	}
	for _, c := range namedChildren(n) {
		walk(c)
	}
	return found
}

// functionDeclares reports whether fn binds name for its own body: as
// its expression name, a parameter, or a declaration in the body.
func functionDeclares(p *rewrite.Program, fn *sitter.Node, name string) bool {
	if isFunctionExpr(fn.Type()) || fn.Type() == "generator_function" {
		if id := field(fn, "name"); id != nil && p.Text(id) == name {
			return true
		}
	}
	if id := field(fn, "parameter"); id != nil && p.Text(id) == name {
		return true
	}
	if params := field(fn, "parameters"); params != nil && slices.Contains(scopePatternNames(p, params), name) {
		return true
	}
	body := field(fn, "body")
	if body == nil || body.Type() != "statement_block" {
		return false
	}
	return lexicalDeclares(p, body, name) || varDeclares(p, body, name)
}

// shadows reports whether the scope n introduces its own binding of name.
func shadows(p *rewrite.Program, n *sitter.Node, name string) bool {
	switch t := n.Type(); {
	case isFunction(t) || t == "arrow_function":
		return functionDeclares(p, n, name)
	case t == "program":
		return lexicalDeclares(p, n, name) || varDeclares(p, n, name)
	case t == "statement_block" || t == "switch_body" || t == "class_static_block":
		return lexicalDeclares(p, n, name)
	case t == "for_statement":
		init := field(n, "initializer")
		return init != nil && init.Type() == "lexical_declaration" && slices.Contains(scopeDeclaredNames(p, init), name)
	case t == "for_in_statement":
		return (hasToken(n, "let") || hasToken(n, "const")) && slices.Contains(scopePatternNames(p, field(n, "left")), name)
	case t == "catch_clause":
		return slices.Contains(scopePatternNames(p, field(n, "parameter")), name)
	}
	return false
}

// resolvesLocally reports whether the identifier n refers to a binding
// declared somewhere in the program rather than to a global.
func resolvesLocally(p *rewrite.Program, n *sitter.Node) bool {
	name := p.Text(n)
	for a := n.Parent(); a != nil; a = a.Parent() {
		if shadows(p, a, name) {
			return true
		}
	}
	return false
}

// blockBinding is a let or const declared below function level.
type blockBinding struct {
	name  string
	scope *sitter.Node
}

// lexicalScope returns the scope of a let or const declaration, or nil
// when it already sits at function or program level.
func lexicalScope(decl *sitter.Node) *sitter.Node {
	s := decl.Parent()
	if s == nil {
		return nil
	}
	switch s.Type() {
	case "program", "export_statement":
		return nil
	case "statement_block":
		if t := parentType(s); isFunction(t) || t == "arrow_function" {
			return nil
		}
	case "switch_case", "switch_default":
		return s.Parent()
	}
	return s
}

// blockRenames picks new names for block-scoped bindings that would
// collide once let and const become var: any whose name also occurs
// outside its block. The result maps the offset of every identifier
// referring to such a binding to its new name.
func blockRenames(p *rewrite.Program, names *Names) map[int]string {
	uses := map[string][]int{}
	var bindings []blockBinding
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
			name := p.Text(n)
			uses[name] = append(uses[name], startOf(n))
		case "lexical_declaration":
			if s := lexicalScope(n); s != nil {
				for _, name := range scopeDeclaredNames(p, n) {
					bindings = append(bindings, blockBinding{name, s})
				}
			}
		case "for_in_statement":
			if hasToken(n, "let") || hasToken(n, "const") {
				for _, name := range scopePatternNames(p, field(n, "left")) {
					bindings = append(bindings, blockBinding{name, n})
				}
			}
		}
		for _, c := range namedChildren(n) {
			walk(c)
		}
	}
	walk(p.Root)

	renames := map[int]string{}
	for _, b := range bindings {
		outside := slices.ContainsFunc(uses[b.name], func(off int) bool {
			return off < startOf(b.scope) || off >= endOf(b.scope)
		})
		if !outside {
			continue
		}
		fresh := names.Fresh("_" + b.name)
		bindingRefs(p, b.scope, b.name, b.scope, func(off int) { renames[off] = fresh })
	}
	return renames
}

// bindingRefs calls add for every identifier under n that refers to the
// binding of name owned by scope.
func bindingRefs(p *rewrite.Program, n *sitter.Node, name string, scope *sitter.Node, add func(int)) {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		if p.Text(n) == name {
			add(startOf(n))
		}
		return
	}
	if !same(n, scope) && shadows(p, n, name) {
		return
	}
	for _, c := range namedChildren(n) {
		bindingRefs(p, c, name, scope, add)
	}
}
