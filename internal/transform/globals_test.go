package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func globals(vars, envs map[string]string) Spec {
	return Spec{Kind: KindInlineGlobals, Globals: &GlobalsOptions{Vars: vars, Envs: envs}}
}

func TestInlineEnv(t *testing.T) {
	envs := map[string]string{"NODE_ENV": "production"}
	tests := []struct {
		name, src, want string
	}{
		{"member", `if (process.env.NODE_ENV === "production") a();`, `if ("production" === "production") a();`},
		{"subscript", `x = process.env["NODE_ENV"];`, `x = "production";`},
		{"not allowed", `x = process.env.SECRET;`, `x = process.env.SECRET;`},
		{"assignment target", `process.env.NODE_ENV = "x";`, `process.env.NODE_ENV = "x";`},
		{"local process", `function f(process) { return process.env.NODE_ENV; }`, `function f(process) { return process.env.NODE_ENV; }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, tt.src, js, globals(nil, envs))
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestInlineVars(t *testing.T) {
	vars := map[string]string{
		"__DEV__":         "false",
		"process.browser": "true",
		"VERSION":         `"1.2.3"`,
		"API":             "a + b",
	}
	tests := []struct {
		name, src, want string
	}{
		{"identifier", `if (__DEV__) x();`, `if (false) x();`},
		{"dotted", `y = process.browser;`, `y = true;`},
		{"string", `v = VERSION;`, `v = "1.2.3";`},
		{"compound is parenthesized", `z = API * 2;`, `z = (a + b) * 2;`},
		{"declaration untouched", `var __DEV__ = 1;`, `var __DEV__ = 1;`},
		{"property key untouched", `o.__DEV__ = 1;`, `o.__DEV__ = 1;`},
		{"shorthand", `o = {__DEV__};`, `o = {__DEV__: false};`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, tt.src, js, globals(vars, nil))
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestInlineVarsSkipsLocalBindings(t *testing.T) {
	vars := map[string]string{"__DEV__": "true", "process.browser": "true"}
	tests := []struct {
		name, src, want string
	}{
		{"parameter", `function f(__DEV__) { return __DEV__; }`, `function f(__DEV__) { return __DEV__; }`},
		{"arrow parameter", `g = (__DEV__) => __DEV__;`, `g = (__DEV__) => __DEV__;`},
		{
			"function var",
			"function g() { var __DEV__ = 1; return __DEV__; }\nh(__DEV__);",
			"function g() { var __DEV__ = 1; return __DEV__; }\nh(true);",
		},
		{"block let", "{ let __DEV__ = 1; a(__DEV__); }\nb(__DEV__);", "{ let __DEV__ = 1; a(__DEV__); }\nb(true);"},
		{"catch", `try {} catch (__DEV__) { f(__DEV__); }`, `try {} catch (__DEV__) { f(__DEV__); }`},
		{"top-level const shorthand", "const __DEV__ = 1;\no = {__DEV__};", "const __DEV__ = 1;\no = {__DEV__};"},
		{"imported member root", "import process from \"p\";\ny = process.browser;", "import process from \"p\";\ny = process.browser;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, tt.src, js, globals(vars, nil))
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestInlineThenSimplify(t *testing.T) {
	out, _ := run(t, "if (process.env.NODE_ENV !== \"production\") {\n  warn();\n}\nrun();\n", js,
		globals(nil, map[string]string{"NODE_ENV": "production"}),
		Spec{Kind: KindSimplify},
	)
	assert.Equal(t, "\nrun();\n", out)
}
