package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

type configFlags struct {
	compileFlags
	query  string
	passes bool
}

func newConfigCmd() *cobra.Command {
	f := &configFlags{}
	cmd := &cobra.Command{
		Use:   "config [file]",
		Short: "Print the configuration a file compiles with",
		Long: `Resolve .kilnrc files and flags for file (or an anonymous source) and
print the merged configuration as JSON. --query selects parts of it with
a JSONPath expression, e.g. '$.jsc.target'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd, f, args)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "JSONPath selecting parts of the config")
	cmd.Flags().BoolVar(&f.passes, "passes", false, "Print the passes that would run instead")
	return cmd
}

func runConfig(cmd *cobra.Command, f *configFlags, args []string) error {
	opts, err := f.options(cmd)
	if err != nil {
		return err
	}
	c, _, err := newCompiler(cmd)
	if err != nil {
		return err
	}
	path := opts.Filename
	if len(args) == 1 {
		path = args[0]
	}
	if opts, err = inferSyntax(c, path, opts); err != nil {
		return err
	}
	built, err := c.Config(path, opts)
	if err != nil {
		return err
	}

	var doc any
	if f.passes {
		names := []any{}
		for _, n := range built.PassNames() {
			names = append(names, n)
		}
		doc = names
	} else {
		// Round-trip through JSON so the query sees the wire names.
		data, err := json.Marshal(built.Config)
		if err != nil {
			return err
		}
		if doc, err = oj.Parse(data); err != nil {
			return err
		}
	}
	if f.query != "" {
		x, err := jp.ParseString(f.query)
		if err != nil {
			return fmt.Errorf("invalid jsonpath '%s': %w", f.query, err)
		}
		doc = x.Get(doc)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), oj.JSON(doc, &oj.Options{Indent: 2, Sort: true})+"\n")
	return err
}
