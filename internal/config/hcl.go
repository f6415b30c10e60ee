package config

import (
	"encoding/json"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/agentic-research/kiln/api"
)

// DecodeHCL parses a .kilnrc.hcl document. Its top-level attributes are
// the keys of the JSON form and object values stand for nested sections:
//
//	jsc = {
//	  target = "es2015"
//	  parser = { syntax = "typescript", tsx = true }
//	}
//	minify = true
//
// Blocks, variables and function calls are rejected. The result goes
// through Decode, so the same keys are accepted as in JSON.
func DecodeHCL(data []byte, filename string) (*api.Config, error) {
	f, diags := hclsyntax.ParseConfig(data, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diags
	}
	attrs, diags := f.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	doc := make(map[string]json.RawMessage, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		raw, err := ctyjson.Marshal(val, val.Type())
		if err != nil {
			return nil, err
		}
		doc[name] = raw
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
