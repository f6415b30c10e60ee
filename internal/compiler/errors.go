package compiler

import (
	"errors"

	"github.com/agentic-research/kiln/internal/config"
)

// Error kinds. Returned errors wrap exactly one of these (or a
// pipeline.ErrInvalidGlobal / pipeline.ErrInvalidConfig) and can be
// matched with errors.Is. Parse failures also wrap a *syntax.Error.
var (
	ErrReadConfigFile     = config.ErrReadConfigFile
	ErrParseConfigFile    = config.ErrParseConfigFile
	ErrParseModule        = errors.New("failed to parse module")
	ErrReadModule         = errors.New("failed to read module")
	ErrTransform          = errors.New("failed to transform module")
	ErrEmitModule         = errors.New("failed to emit module")
	ErrSerializeSourceMap = errors.New("failed to serialize source map")
	ErrWriteSourceMap     = errors.New("failed to write source map")
	ErrSourceMapNotUTF8   = errors.New("source map content is not valid utf-8")
	ErrOutputNotUTF8      = errors.New("generated code is not valid utf-8")
)
