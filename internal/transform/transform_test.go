package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/kiln/internal/rewrite"
	"github.com/agentic-research/kiln/internal/syntax"
)

var (
	js = syntax.Syntax{Dialect: syntax.ECMAScript, JSX: true}
	ts = syntax.Syntax{Dialect: syntax.TypeScript}
)

func program(t *testing.T, src string, s syntax.Syntax) *rewrite.Program {
	t.Helper()
	tree, err := syntax.Parse([]byte(src), s, nil)
	require.NoError(t, err)
	return rewrite.New(tree)
}

// run parses src, applies specs in order and returns the resulting text.
func run(t *testing.T, src string, s syntax.Syntax, specs ...Spec) (string, *Context) {
	t.Helper()
	p := program(t, src, s)
	ctx := NewContext(nil, nil)
	require.NoError(t, Run(ctx, p, specs))
	return string(p.Src), ctx
}

func runErr(t *testing.T, src string, s syntax.Syntax, specs ...Spec) error {
	t.Helper()
	p := program(t, src, s)
	return Run(NewContext(nil, nil), p, specs)
}

func TestNamesFresh(t *testing.T) {
	n := NewNames()
	assert.Equal(t, "_class", n.Fresh("_class"))
	assert.Equal(t, "_class2", n.Fresh("_class"))
	assert.Equal(t, "_this", n.Fresh("_this"))
	n.Register("_defineProperty")

	assert.True(t, n.Has("_class2"))
	assert.False(t, n.Has("_class3"))
	assert.Equal(t, []string{"_class", "_class2", "_defineProperty", "_this"}, n.All())

	assert.Equal(t, "_x2", n.Fresh("_x2"))
	assert.Equal(t, "_x", n.Fresh("_x"))
	assert.Equal(t, "_x3", n.Fresh("_x"))
}

func TestContextHelperRegistersName(t *testing.T) {
	ctx := NewContext(nil, nil)
	assert.Equal(t, "_extends", ctx.Helper("_extends"))
	assert.True(t, ctx.Names.Has("_extends"))
	assert.True(t, ctx.Helpers.Has("_extends"))
}

func TestParseTarget(t *testing.T) {
	for _, name := range []string{"es3", "es5", "es2015", "es2016", "es2017", "es2018", "es2019", "es2020"} {
		target, err := ParseTarget(name)
		require.NoError(t, err)
		assert.Equal(t, name, target.String())
	}
	_, err := ParseTarget("es2077")
	assert.Error(t, err)
	assert.Less(t, ES5, ES2015)
}

func TestKindOrder(t *testing.T) {
	assert.Less(t, KindStripTypes, KindInlineGlobals)
	assert.Less(t, KindES2015, KindModule)
	assert.Less(t, KindHygiene, KindFixer)
	assert.Equal(t, "Fixer", KindFixer.String())
}

func TestRunNamesFailingPass(t *testing.T) {
	err := runErr(t, "x = <a:b />;", js, Spec{Kind: KindJSX, JSX: &JSXOptions{
		Pragma:           "React.createElement",
		PragmaFrag:       "React.Fragment",
		ThrowIfNamespace: true,
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jsx:")
	assert.Contains(t, err.Error(), "namespace")
}

func TestRunLeavesUntouchedSource(t *testing.T) {
	src := "const a = 1;\nfoo(a);\n"
	out, ctx := run(t, src, js,
		Spec{Kind: KindES2016, Target: ES5},
		Spec{Kind: KindES3, Target: ES5},
		Spec{Kind: KindHygiene},
	)
	assert.Equal(t, src, out)
	assert.Empty(t, ctx.Helpers.Used())
}
