// Package cmd implements the kiln command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/kiln/api"
	"github.com/agentic-research/kiln/internal/compiler"
	"github.com/agentic-research/kiln/internal/syntax"
)

var (
	logLevel  string
	logFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.AddCommand(newTransformCmd(), newConfigCmd(), newParseCmd())
}

var rootCmd = &cobra.Command{
	Use:           "kiln",
	Short:         "Kiln: a configurable JavaScript and TypeScript compiler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func newLogger(levelStr, formatStr string, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", levelStr)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch formatStr {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", formatStr)
	}
}

// newCompiler builds a compiler logging to the command's stderr.
func newCompiler(cmd *cobra.Command) (*compiler.Compiler, *slog.Logger, error) {
	log, err := newLogger(logLevel, logFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return compiler.New(compiler.WithLogger(log)), log, nil
}

// inferSyntax picks the parser from the file extension when neither the
// command line nor any config file chose one. opts is not modified.
func inferSyntax(c *compiler.Compiler, path string, opts *api.Options) (*api.Options, error) {
	if path == "" || (opts.Jsc != nil && opts.Jsc.Parser != nil) {
		return opts, nil
	}
	built, err := c.Config(path, opts)
	if err != nil {
		return nil, err
	}
	if *built.Config.Jsc.Parser != *api.Defaults().Jsc.Parser {
		return opts, nil
	}
	s := syntax.ForPath(path)
	o := *opts
	jsc := api.JscConfig{}
	if o.Jsc != nil {
		jsc = *o.Jsc
	}
	jsc.Parser = &api.ParserConfig{
		Syntax:     string(s.Dialect),
		JSX:        s.JSX,
		TSX:        s.TSX,
		Decorators: s.Decorators,
	}
	o.Jsc = &jsc
	return &o, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
