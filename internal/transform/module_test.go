package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func moduleSpec(typ ModuleType) Spec {
	return Spec{Kind: KindModule, Target: ES5, Module: &ModuleOptions{Type: typ}}
}

func TestCommonJSImports(t *testing.T) {
	src := "import foo from \"./foo\";\nimport * as ns from \"ns\";\nimport { a as b } from \"./m\";\nfoo();\nx = ns.y + b;\no = {b};\n"
	out, ctx := run(t, src, js, moduleSpec(ModuleCommonJS))

	assert.True(t, strings.HasPrefix(out, "\"use strict\";\n"))
	assert.Contains(t, out, `var _foo = _interopRequireDefault(require("./foo"));`)
	assert.Contains(t, out, `var ns = _interopRequireWildcard(require("ns"));`)
	assert.Contains(t, out, `var _m = require("./m");`)
	assert.Contains(t, out, "(0, _foo.default)();")
	assert.Contains(t, out, "x = ns.y + _m.a;")
	assert.Contains(t, out, "o = {b: _m.a};")
	assert.NotContains(t, out, "__esModule", "nothing is exported")
	assert.True(t, ctx.Helpers.Has("_interopRequireDefault"))
}

func TestCommonJSExports(t *testing.T) {
	src := "export const x = 1;\nexport function f() {}\nconst a = 2;\nexport { a as b };\nexport default a;\n"
	out, _ := run(t, src, js, moduleSpec(ModuleCommonJS))

	assert.Contains(t, out, "Object.defineProperty(exports, \"__esModule\", {\n  value: true\n});")
	assert.Contains(t, out, "const x = 1;\nexports.x = x;")
	assert.Contains(t, out, "exports.b = a;")
	assert.Contains(t, out, "exports.default = a;")
	assert.NotContains(t, out, "export ")
	// Function exports are hoisted with the declaration.
	assert.Less(t, strings.Index(out, "exports.f = f;"), strings.Index(out, "function f()"))
}

func TestCommonJSReexports(t *testing.T) {
	out, ctx := run(t, "export * from \"m\";\nexport { a as c } from \"n\";\n", js, moduleSpec(ModuleCommonJS))
	assert.Contains(t, out, `_exportStar(require("m"), exports);`)
	assert.Contains(t, out, `var _n = require("n");`)
	assert.Contains(t, out, `Object.defineProperty(exports, "c", {`)
	assert.Contains(t, out, "return _n.a;")
	assert.True(t, ctx.Helpers.Has("_exportStar"))
}

func TestCommonJSNoInterop(t *testing.T) {
	spec := moduleSpec(ModuleCommonJS)
	spec.Module.NoInterop = true
	out, ctx := run(t, "import foo from \"foo\";\nfoo.bar();\n", js, spec)
	assert.Contains(t, out, `var _foo = require("foo");`)
	assert.Contains(t, out, "_foo.default.bar();")
	assert.Empty(t, ctx.Helpers.Used())
}

func TestCommonJSStrictSkipsESModuleMarker(t *testing.T) {
	spec := moduleSpec(ModuleCommonJS)
	spec.Module.Strict = true
	out, _ := run(t, "\"use strict\";\nexport var v = 1;\n", js, spec)
	assert.NotContains(t, out, "__esModule")
	assert.Equal(t, 1, strings.Count(out, "use strict"))
}

func TestAMD(t *testing.T) {
	spec := moduleSpec(ModuleAMD)
	spec.Module.ModuleID = "pkg"
	out, _ := run(t, "import { x } from \"dep\";\nx();\n", js, spec)
	assert.True(t, strings.HasPrefix(out, "define(\"pkg\", [\"exports\", \"dep\"], function (exports, _dep) {\n  \"use strict\";\n"), out)
	assert.Contains(t, out, "(0, _dep.x)();")
	assert.True(t, strings.HasSuffix(out, "});\n"))
}

func TestUMD(t *testing.T) {
	out, _ := run(t, "import a from \"lib-a\";\nexport default a;\n", js, moduleSpec(ModuleUMD))
	assert.Contains(t, out, "(function (global, factory) {")
	assert.Contains(t, out, `define(["exports", "lib-a"], factory);`)
	assert.Contains(t, out, `factory(exports, require("lib-a"));`)
	assert.Contains(t, out, "factory(mod.exports, global.libA);")
	assert.Contains(t, out, "})(this, function (exports, _libA) {")
	assert.Contains(t, out, "_interopRequireDefault(_libA)")
	assert.Contains(t, out, "exports.default = _libA2.default;")
}

func TestModuleES6IsUntouched(t *testing.T) {
	src := "import a from \"a\";\nexport default a;\n"
	out, _ := run(t, src, js, moduleSpec(ModuleES6))
	assert.Equal(t, src, out)
}

func TestSourceIdent(t *testing.T) {
	assert.Equal(t, "_fooBar", sourceIdent("./foo-bar.js"))
	assert.Equal(t, "_react", sourceIdent("react"))
	assert.Equal(t, "_dom", sourceIdent("react/dom"))
	assert.Equal(t, "_module", sourceIdent("./-"))
}
