package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/kiln/internal/rewrite"
)

func TestDecorateClass(t *testing.T) {
	out, ctx := run(t, "@dec\nclass Foo {\n  @log\n  m() {}\n}\n", js, Spec{Kind: KindDecorators})
	assert.Contains(t, out, "var _class;")
	assert.Contains(t, out, "let Foo = (_class = class Foo {")
	assert.Contains(t, out, `_decorate([log], _class.prototype, "m", null)`)
	assert.Contains(t, out, "_class = _decorate([dec], _class), _class);")
	assert.NotContains(t, out, "@")
	assert.True(t, ctx.Helpers.Has("_decorate"))
}

func TestDecorateLegacyClass(t *testing.T) {
	out, _ := run(t, "@a\n@b\nclass Foo {}\n", js, Spec{Kind: KindDecorators, Legacy: true})
	// Decorators apply bottom-up.
	assert.Contains(t, out, "_class = b(_class) || _class, _class = a(_class) || _class")
}

func TestDecorateExportDefault(t *testing.T) {
	out, _ := run(t, "@dec\nexport default class Foo {}\n", js, Spec{Kind: KindDecorators})
	assert.Contains(t, out, "let Foo = (_class = class Foo {}")
	assert.Contains(t, out, "export default Foo;")
}

func TestHygieneRenamesDecoratorTemp(t *testing.T) {
	src := "var _class = 1;\n@dec\nclass Foo {}\nuse(_class);\n"
	out, _ := run(t, src, js, Spec{Kind: KindDecorators}, Spec{Kind: KindHygiene})
	assert.Contains(t, out, "var _class1;")
	assert.Contains(t, out, "(_class1 = class Foo {}, _class1 = _decorate([dec], _class1), _class1)")
	assert.Contains(t, out, "var _class = 1;")
	assert.Contains(t, out, "use(_class);")
}

func TestHygieneOnlyTouchesSynthesized(t *testing.T) {
	p := program(t, "var _tmp = 1;", js)
	ctx := NewContext(nil, nil)
	name := ctx.Names.Fresh("_tmp")
	require.NoError(t, p.Apply([]rewrite.Edit{rewrite.Insert(len(p.Src), rewrite.Text("\n", name, " = 2;"))}))

	require.NoError(t, Run(ctx, p, []Spec{{Kind: KindHygiene}}))
	assert.Equal(t, "var _tmp = 1;\n_tmp1 = 2;", string(p.Src))
	assert.True(t, ctx.Names.Has("_tmp1"))
}

func TestHygieneNoCollision(t *testing.T) {
	src := "@dec\nclass Foo {}\n"
	before, _ := run(t, src, js, Spec{Kind: KindDecorators})
	after, _ := run(t, src, js, Spec{Kind: KindDecorators}, Spec{Kind: KindHygiene})
	assert.Equal(t, before, after)
}

func TestClassProperties(t *testing.T) {
	out, ctx := run(t, "class A {\n  x = 1;\n  static y = 2;\n  z;\n}\n", js, Spec{Kind: KindClassProperties})
	assert.Contains(t, out, "constructor() {")
	assert.Contains(t, out, `_defineProperty(this, "x", 1);`)
	assert.Contains(t, out, `_defineProperty(this, "z", void 0);`)
	assert.Contains(t, out, `_defineProperty(A, "y", 2);`)
	assert.True(t, ctx.Helpers.Has("_defineProperty"))
}

func TestClassPropertiesAfterSuper(t *testing.T) {
	src := "class B extends A {\n  x = 1;\n  constructor() {\n    super();\n    go();\n  }\n}\n"
	out, _ := run(t, src, js, Spec{Kind: KindClassProperties})
	assert.Less(t, strings.Index(out, "super();"), strings.Index(out, "_defineProperty(this"))
	assert.Less(t, strings.Index(out, "_defineProperty(this"), strings.Index(out, "go();"))
}

func TestClassPropertiesSynthesizedDerivedConstructor(t *testing.T) {
	out, _ := run(t, "class B extends A {\n  x = 1;\n}\n", js, Spec{Kind: KindClassProperties})
	assert.Contains(t, out, "super(...arguments);")
}
