package rewrite

import (
	"errors"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/kiln/internal/syntax"
)

func parse(t *testing.T, src string) *Program {
	t.Helper()
	tree, err := syntax.Parse([]byte(src), syntax.Syntax{Dialect: syntax.ECMAScript, JSX: true}, nil)
	require.NoError(t, err)
	return New(tree)
}

func TestApplySplice(t *testing.T) {
	p := parse(t, "let a = 1;")
	require.NoError(t, p.Apply([]Edit{
		{Start: 0, End: 3, Frag: Text("var")},
		{Start: 8, End: 9, Frag: Text("42")},
	}))
	assert.Equal(t, "var a = 42;", string(p.Src))

	// "var" and "42" are synthesized, " a = " and ";" keep their origin.
	assert.Equal(t, Synthesized, p.OriginOf(0))
	assert.Equal(t, int32(4), p.OriginOf(4))
	assert.Equal(t, Synthesized, p.OriginOf(8))
	assert.Equal(t, int32(9), p.OriginOf(10))
}

func TestApplyInsertBeforeReplace(t *testing.T) {
	p := parse(t, "a;")
	require.NoError(t, p.Apply([]Edit{
		{Start: 0, End: 1, Frag: Text("b")},
		Insert(0, Text("x;\n")),
	}))
	assert.Equal(t, "x;\nb;", string(p.Src))
}

func TestApplyCopyKeepsOrigin(t *testing.T) {
	p := parse(t, "f(a, b);")
	// Swap the arguments by copying.
	frag := Copy(5, 6).Str(", ").Add(Copy(2, 3))
	require.NoError(t, p.Apply([]Edit{{Start: 2, End: 6, Frag: frag}}))
	assert.Equal(t, "f(b, a);", string(p.Src))
	assert.Equal(t, int32(5), p.OriginOf(2))
	assert.Equal(t, int32(2), p.OriginOf(5))
}

func TestApplyOverlap(t *testing.T) {
	p := parse(t, "abc;")
	err := p.Apply([]Edit{
		{Start: 0, End: 2, Frag: Text("x")},
		{Start: 1, End: 3, Frag: Text("y")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverlap))
	assert.Equal(t, "abc;", string(p.Src), "failed apply leaves the program untouched")
}

func TestApplyRejectsBrokenOutput(t *testing.T) {
	p := parse(t, "a;")
	err := p.Apply([]Edit{{Start: 0, End: 1, Frag: Text("(")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not parse")
	assert.Equal(t, "a;", string(p.Src))
}

func TestApplyIdentityIsNoop(t *testing.T) {
	p := parse(t, "a + b;")
	root := p.Root
	require.NoError(t, p.Apply([]Edit{{Start: 0, End: 5, Frag: Copy(0, 5)}}))
	assert.Same(t, root, p.Root, "identity edits must not re-parse")
}

func TestRewriterRenamesIdentifiers(t *testing.T) {
	p := parse(t, "const x = y + f(y, z.y);")
	err := Rewrite(p, func(r *Rewriter, n *sitter.Node) (*Fragment, bool) {
		if n.Type() == "identifier" && r.Text(n) == "y" {
			return Text("w"), true
		}
		return nil, false
	})
	require.NoError(t, err)
	// z.y is a property_identifier and stays.
	assert.Equal(t, "const x = w + f(w, z.y);", string(p.Src))
}

func TestRewriterNestedHandledNodes(t *testing.T) {
	p := parse(t, "a(b(c));")
	// Wrap every call in brackets; inner calls are reached through Node.
	err := Rewrite(p, func(r *Rewriter, n *sitter.Node) (*Fragment, bool) {
		if n.Type() != "call_expression" {
			return nil, false
		}
		return Text("[").Add(r.Range(n, int(n.StartByte()), int(n.EndByte()))).Str("]"), true
	})
	require.NoError(t, err)
	assert.Equal(t, "[a([b(c)])];", string(p.Src))
}

func TestRewriterQueuedInsert(t *testing.T) {
	p := parse(t, "x;")
	r := NewRewriter(p, func(*Rewriter, *sitter.Node) (*Fragment, bool) { return nil, false })
	r.Insert(0, Text("var y;\n"))
	require.NoError(t, r.Run())
	assert.Equal(t, "var y;\nx;", string(p.Src))
}

func TestFragment(t *testing.T) {
	f := Copy(0, 2).Copy(2, 4).Str("a", "b")
	assert.Len(t, f.parts, 2, "adjacent copies and texts merge")
	assert.True(t, Copy(1, 3).IsCopyOf(1, 3))
	assert.False(t, Copy(1, 3).Str("x").IsCopyOf(1, 3))
	assert.True(t, (*Fragment)(nil).Empty())

	p := parse(t, "abcd;")
	assert.Equal(t, "a, b", Join([]*Fragment{Copy(0, 1), Text("b")}, ", ").String(p))
}

func TestSetSyntax(t *testing.T) {
	tree, err := syntax.Parse([]byte("let a: number = 1;"), syntax.Syntax{Dialect: syntax.TypeScript}, nil)
	require.NoError(t, err)
	p := New(tree)

	assert.Error(t, p.SetSyntax(syntax.Syntax{Dialect: syntax.ECMAScript}))
	require.NoError(t, p.Apply([]Edit{{Start: 5, End: 13, Frag: Text("")}}))
	require.NoError(t, p.SetSyntax(syntax.Syntax{Dialect: syntax.ECMAScript}))
	assert.Equal(t, "let a = 1;", string(p.Src))
}
