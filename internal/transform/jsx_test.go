package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func react() Spec {
	return Spec{Kind: KindJSX, JSX: &JSXOptions{
		Pragma:           "React.createElement",
		PragmaFrag:       "React.Fragment",
		ThrowIfNamespace: true,
	}}
}

func TestJSX(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{
			"intrinsic element",
			`x = <div className="a">hi</div>;`,
			`x = React.createElement("div", {className: "a"}, "hi");`,
		},
		{
			"component with spread",
			`x = <Foo {...p} b={1} />;`,
			`x = React.createElement(Foo, _extends({}, p, {b: 1}));`,
		},
		{
			"fragment",
			`x = <>a</>;`,
			`x = React.createElement(React.Fragment, null, "a");`,
		},
		{
			"boolean attribute",
			`x = <input disabled />;`,
			`x = React.createElement("input", {disabled: true});`,
		},
		{
			"multiline text",
			"x = <p>\n  hello\n  world\n</p>;",
			`x = React.createElement("p", null, "hello world");`,
		},
		{
			"nested",
			`x = <ul><li>{item}</li></ul>;`,
			`x = React.createElement("ul", null, React.createElement("li", null, item));`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, tt.src, js, react())
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestJSXSpreadUsesHelper(t *testing.T) {
	_, ctx := run(t, `x = <Foo {...p} />;`, js, react())
	assert.True(t, ctx.Helpers.Has("_extends"))

	spec := react()
	spec.JSX.UseBuiltins = true
	out, ctx := run(t, `x = <Foo {...p} />;`, js, spec)
	assert.Equal(t, `x = React.createElement(Foo, Object.assign({}, p));`, out)
	assert.False(t, ctx.Helpers.Has("_extends"))
}

func TestJSXCustomPragma(t *testing.T) {
	spec := react()
	spec.JSX.Pragma = "h"
	out, _ := run(t, `x = <b />;`, js, spec)
	assert.Equal(t, `x = h("b", null);`, out)
}
