package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/kiln/internal/compiler"
	"github.com/agentic-research/kiln/internal/syntax"
)

func newParseCmd() *cobra.Command {
	f := &compileFlags{}
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Print the syntax tree of a source as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			c, _, err := newCompiler(cmd)
			if err != nil {
				return err
			}

			var src []byte
			if len(args) == 1 && args[0] != "-" {
				opts.Filename = args[0]
				if src, err = os.ReadFile(args[0]); err != nil {
					return fmt.Errorf("%w: %s: %w", compiler.ErrReadModule, args[0], err)
				}
			} else if src, err = io.ReadAll(cmd.InOrStdin()); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			if opts, err = inferSyntax(c, opts.Filename, opts); err != nil {
				return err
			}

			tree, err := c.Parse(string(src), opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(syntax.Dump(tree))
		},
	}
	f.bind(cmd)
	return cmd
}
