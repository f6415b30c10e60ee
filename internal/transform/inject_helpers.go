package transform

import (
	"strings"

	"github.com/agentic-research/kiln/internal/helpers"
	"github.com/agentic-research/kiln/internal/rewrite"
)

// injectHelpers makes the runtime helpers the earlier passes called
// available: inline definitions after the directives, or imports of
// helpers.Module when they are external.
type injectHelpers struct {
	opts HelpersOptions
}

func (*injectHelpers) Name() string { return "inject-helpers" }

func (h *injectHelpers) Run(ctx *Context, p *rewrite.Program) error {
	used := ctx.Helpers.Used()
	if len(used) == 0 {
		return nil
	}
	for _, name := range used {
		ctx.Names.Register(name)
	}

	var text string
	switch {
	case !h.opts.External, h.opts.Module == ModuleAMD, h.opts.Module == ModuleUMD:
		var err error
		if text, err = inlineHelpers(used); err != nil {
			return err
		}
	case h.opts.Module == ModuleCommonJS:
		var lines []string
		for _, name := range used {
			if ctx.Helpers.Has(name) {
				lines = append(lines, "var "+name+" = require("+quote(helpers.Module)+")."+name+";")
			}
		}
		text = strings.Join(lines, "\n")
	default:
		var names []string
		for _, name := range used {
			if ctx.Helpers.Has(name) {
				names = append(names, name)
			}
		}
		text = "import { " + strings.Join(names, ", ") + " } from " + quote(helpers.Module) + ";"
	}
	ctx.Log.Debug("injected helpers", "helpers", used, "external", h.opts.External)
	return p.Apply([]rewrite.Edit{prologue(p, text)})
}

func inlineHelpers(names []string) (string, error) {
	var sb strings.Builder
	for i, name := range names {
		src, err := helpers.Source(name)
		if err != nil {
			return "", err
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.TrimRight(src, "\n"))
	}
	return sb.String(), nil
}
