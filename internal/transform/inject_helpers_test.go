package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func spreadThenInject(opts HelpersOptions) Spec {
	return Spec{Kind: KindInjectHelpers, Helpers: &opts}
}

var spread = Spec{Kind: KindES2018, Target: ES5}

func TestInjectHelpersInline(t *testing.T) {
	out, ctx := run(t, "o = {...a};\n", js, spread, spreadThenInject(HelpersOptions{}))
	def := strings.Index(out, "function _defineProperty(")
	obj := strings.Index(out, "function _objectSpread(")
	assert.GreaterOrEqual(t, def, 0)
	assert.Less(t, def, obj, "dependencies come first")
	assert.Less(t, obj, strings.Index(out, "o = _objectSpread({}, a);"))
	assert.True(t, ctx.Names.Has("_defineProperty"))
}

func TestInjectHelpersAfterDirectives(t *testing.T) {
	out, _ := run(t, "\"use strict\";\no = {...a};\n", js, spread, spreadThenInject(HelpersOptions{}))
	assert.True(t, strings.HasPrefix(out, "\"use strict\";\nfunction _defineProperty("), out)
}

func TestInjectHelpersExternalCommonJS(t *testing.T) {
	out, _ := run(t, "o = {...a};\n", js, spread, spreadThenInject(HelpersOptions{External: true, Module: ModuleCommonJS}))
	assert.Equal(t, "var _objectSpread = require(\"@kiln/helpers\")._objectSpread;\no = _objectSpread({}, a);\n", out)
}

func TestInjectHelpersExternalES6(t *testing.T) {
	out, _ := run(t, "o = {...a};\n", js, spread, spreadThenInject(HelpersOptions{External: true, Module: ModuleES6}))
	assert.Equal(t, "import { _objectSpread } from \"@kiln/helpers\";\no = _objectSpread({}, a);\n", out)
}

func TestInjectHelpersExternalAMDInlines(t *testing.T) {
	out, _ := run(t, "o = {...a};\n", js, spread, spreadThenInject(HelpersOptions{External: true, Module: ModuleAMD}))
	assert.Contains(t, out, "function _objectSpread(")
	assert.NotContains(t, out, "@kiln/helpers")
}

func TestInjectHelpersNothingUsed(t *testing.T) {
	src := "o = {a};\n"
	out, _ := run(t, src, js, spread, spreadThenInject(HelpersOptions{}))
	assert.Equal(t, src, out)
}
