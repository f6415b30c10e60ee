package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplify(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"string concat", `x = "a" + "b";`, `x = "ab";`},
		{"typeof", `y = typeof 1 === "number";`, `y = true;`},
		{"ternary", `z = !0 ? a : b;`, `z = a;`},
		{"logical or", `w = false || c;`, `w = c;`},
		{"logical and", `w = "" && c;`, `w = "";`},
		{"dead if", `if (false) f();`, ``},
		{"loose null", `v = null == undefined;`, `v = true;`},
		{"untouched", `u = a + 1;`, `u = a + 1;`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := run(t, tt.src, js, Spec{Kind: KindSimplify})
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSimplifyUnwrapsLiveBranch(t *testing.T) {
	out, _ := run(t, "if (true) { a(); } else { b(); }", js, Spec{Kind: KindSimplify})
	assert.Equal(t, "a();", strings.TrimSpace(out))

	// A block with its own bindings keeps its braces.
	out, _ = run(t, "if (1) { let a = 1; }", js, Spec{Kind: KindSimplify})
	assert.Equal(t, "{ let a = 1; }", out)
}

func TestES2018ObjectSpread(t *testing.T) {
	out, ctx := run(t, `o = {...a, b: 1};`, js, Spec{Kind: KindES2018, Target: ES5})
	assert.Equal(t, `o = _objectSpread({}, a, {b: 1});`, out)
	assert.True(t, ctx.Helpers.Has("_objectSpread"))

	out, _ = run(t, `o = {x, ...a};`, js, Spec{Kind: KindES2018, Target: ES2018})
	assert.Equal(t, `o = {x, ...a};`, out)
}

func TestES2017Async(t *testing.T) {
	out, ctx := run(t, "async function f() {\n  await g();\n}\n", js, Spec{Kind: KindES2017, Target: ES5})
	assert.Contains(t, out, "function f() {")
	assert.Contains(t, out, "return _asyncToGenerator(function* () {")
	assert.Contains(t, out, "(yield g());")
	assert.Contains(t, out, ").apply(this, arguments);")
	assert.NotContains(t, out, "async function")
	assert.True(t, ctx.Helpers.Has("_asyncToGenerator"))
}

func TestES2017AsyncArrow(t *testing.T) {
	out, _ := run(t, "h = async () => await x;", js, Spec{Kind: KindES2017, Target: ES5})
	assert.Equal(t, "h = () => _asyncToGenerator(function* () { return (yield x); }).call(this);", out)
}

func TestES2016(t *testing.T) {
	out, _ := run(t, "a ** b;\nx **= 2;", js, Spec{Kind: KindES2016, Target: ES5})
	assert.Equal(t, "Math.pow(a, b);\nx = Math.pow(x, 2);", out)
}

func lowerES2015(t *testing.T, src string) (string, *Context) {
	t.Helper()
	return run(t, src, js, Spec{Kind: KindES2015, Target: ES5})
}

func TestES2015Basics(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"let", `let a = 1;`, `var a = 1;`},
		{"const", `const a = 1, b = 2;`, `var a = 1, b = 2;`},
		{"arrow", `var f = (x) => x * 2;`, "var f = function (x) {\n  return x * 2;\n};"},
		{"template", "s = `a${b}c`;", `s = "a" + b + "c";`},
		{"template without substitutions", "s = `plain`;", `s = "plain";`},
		{"shorthand", `o = {a};`, `o = {a: a};`},
		{"method", `o = {m() { return 1; }};`, `o = {m: function () { return 1; }};`},
		{"spread call", `f(...a);`, `f.apply(void 0, _toConsumableArray(a));`},
		{"spread method call", `o.f(1, ...a);`, `o.f.apply(o, [1].concat(_toConsumableArray(a)));`},
		{"array spread", `x = [1, ...a];`, `x = [1].concat(_toConsumableArray(a));`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := lowerES2015(t, tt.src)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestES2015ArrowCapturesThis(t *testing.T) {
	out, _ := lowerES2015(t, "function g() {\n  return () => this.x;\n}\n")
	assert.Contains(t, out, "var _this = this;")
	assert.Contains(t, out, "return _this.x;")
	assert.NotContains(t, out, "=>")
}

func TestES2015DefaultAndRest(t *testing.T) {
	out, _ := lowerES2015(t, "function h(a, b = 1, ...rest) {\n  return rest;\n}\n")
	assert.Contains(t, out, "function h(a, b) {")
	assert.Contains(t, out, "if (b === void 0) {")
	assert.Contains(t, out, "b = 1;")
	assert.Contains(t, out, "var rest = [].slice.call(arguments, 2);")
}

func TestES2015Class(t *testing.T) {
	src := "class A extends B {\n  constructor() {\n    super();\n    this.x = 1;\n  }\n  m() {\n    return super.m();\n  }\n  static s() {}\n}\n"
	out, ctx := lowerES2015(t, src)
	for _, want := range []string{
		"var A = /*#__PURE__*/function (_B) {",
		"_inherits(A, _B);",
		"function A() {",
		"var _this;",
		"_classCallCheck(this, A);",
		"_this = _possibleConstructorReturn(this, _getPrototypeOf(A).call(this));",
		"_this.x = 1;",
		"return _this;",
		`key: "m"`,
		`_get(_getPrototypeOf(A.prototype), "m", this).call(this)`,
		`key: "s"`,
		"return A;",
		"}(B);",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "class ")
	assert.NotContains(t, out, "super")
	for _, h := range []string{"_inherits", "_classCallCheck", "_possibleConstructorReturn", "_getPrototypeOf", "_createClass", "_get"} {
		assert.True(t, ctx.Helpers.Has(h), h)
	}
}

func TestES2015ClassWithoutConstructor(t *testing.T) {
	out, _ := lowerES2015(t, "class A {\n  get v() { return 1; }\n  set v(x) {}\n}\n")
	assert.Contains(t, out, "function A() {\n    _classCallCheck(this, A);\n  }")
	assert.Equal(t, 1, strings.Count(out, `key: "v"`), "accessor pair shares a descriptor")
	assert.Contains(t, out, "get: function ()")
	assert.Contains(t, out, "set: function (x)")
}

func TestES2015ClassOneLineConstructor(t *testing.T) {
	out, _ := lowerES2015(t, "class A extends B { constructor() { super(); } }\n")
	assert.Contains(t, out, "\n  function A() {\n"+
		"    var _this;\n"+
		"    _classCallCheck(this, A);\n"+
		"    _this = _possibleConstructorReturn(this, _getPrototypeOf(A).call(this));\n"+
		"    return _this;\n"+
		"  }")

	out, _ = lowerES2015(t, "class P { constructor(x) { this.x = x; } }\n")
	assert.Contains(t, out, "function P(x) {\n    _classCallCheck(this, P);\n    this.x = x;\n  }")
}

func TestES2015BlockScopedShadowing(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{
			"shadowed block binding is renamed",
			"let x = 1;\n{\n  let x = 2;\n}\nconsole.log(x);",
			"var x = 1;\n{\n  var _x = 2;\n}\nconsole.log(x);",
		},
		{"unique name is kept", `{ let y = 1; f(y); }`, `{ var y = 1; f(y); }`},
		{
			"inner parameter keeps its name",
			"{ let a = 1; h(function (a) { return a; }, a); }\na;",
			"{ var _a = 1; h(function (a) { return a; }, _a); }\na;",
		},
		{
			"sibling loops",
			"for (let i of a) {}\nfor (let i of b) {}",
			"for (var _i of a) {}\nfor (var _i2 of b) {}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := lowerES2015(t, tt.src)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestES2015BlockBindingUsedByClosure(t *testing.T) {
	out, ctx := lowerES2015(t, "function f() {\n  use(x);\n  {\n    const x = 2;\n    g(x, {x});\n  }\n}\n")
	assert.Contains(t, out, "use(x);")
	assert.Contains(t, out, "var _x = 2;")
	assert.Contains(t, out, "g(_x, {x: _x});")
	assert.True(t, ctx.Names.Has("_x"))
}

func TestES2015ExportDefaultClass(t *testing.T) {
	out, _ := lowerES2015(t, "export default class A {}\n")
	assert.Contains(t, out, "var A = /*#__PURE__*/function () {")
	assert.Contains(t, out, "\nexport default A;")
}

func TestES2015TaggedTemplate(t *testing.T) {
	out, ctx := lowerES2015(t, "tag`a${b}c`;")
	assert.Contains(t, out, `tag(_templateObject || (_templateObject = _taggedTemplateLiteral(["a", "c"])), b);`)
	assert.True(t, strings.HasPrefix(out, "var _templateObject;\n"))
	assert.True(t, ctx.Helpers.Has("_taggedTemplateLiteral"))
}

func TestES2015SuperOutsideClass(t *testing.T) {
	err := runErr(t, "var o = { m() { return super.x; } };", js, Spec{Kind: KindES2015, Target: ES5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "super outside of a class method")
}

func TestES2015NoopForModernTargets(t *testing.T) {
	src := "const f = () => `${a}`;"
	out, _ := run(t, src, js, Spec{Kind: KindES2015, Target: ES2015})
	assert.Equal(t, src, out)
}

func TestES3QuotesReservedNames(t *testing.T) {
	out, _ := run(t, `a.default = {class: 1};`, js, Spec{Kind: KindES3, Target: ES3})
	assert.Equal(t, `a["default"] = {"class": 1};`, out)

	out, _ = run(t, `a.default = 1;`, js, Spec{Kind: KindES3, Target: ES5})
	assert.Equal(t, `a.default = 1;`, out)
}
