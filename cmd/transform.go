package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/agentic-research/kiln/api"
	"github.com/agentic-research/kiln/internal/compiler"
	"github.com/agentic-research/kiln/internal/outcache"
	"github.com/agentic-research/kiln/internal/pipeline"
)

type transformFlags struct {
	compileFlags
	out    string
	outDir string
	cache  string
}

func newTransformCmd() *cobra.Command {
	f := &transformFlags{}
	cmd := &cobra.Command{
		Use:   "transform [file...]",
		Short: "Compile JavaScript or TypeScript sources",
		Long: `Compile sources with the configuration resolved from .kilnrc files and
the flags given. Without arguments (or with "-") the source is read from
stdin and the result written to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, f, args)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&f.outDir, "out-dir", "d", "", "Output directory, required for several inputs")
	cmd.Flags().StringVar(&f.cache, "cache", "", "SQLite database caching compiled outputs")
	return cmd
}

// unit is one source to compile and where its output goes.
type unit struct {
	name string // as given on the command line, "" for anonymous stdin
	src  string
	out  string // "" for stdout
}

type runner struct {
	cmd   *cobra.Command
	c     *compiler.Compiler
	log   *slog.Logger
	opts  *api.Options
	cache *outcache.Cache
}

func runTransform(cmd *cobra.Command, f *transformFlags, args []string) error {
	opts, err := f.options(cmd)
	if err != nil {
		return err
	}
	if f.out != "" && f.outDir != "" {
		return errors.New("--out and --out-dir are exclusive")
	}
	c, log, err := newCompiler(cmd)
	if err != nil {
		return err
	}
	r := &runner{cmd: cmd, c: c, log: log, opts: opts}
	if f.cache != "" {
		if r.cache, err = outcache.Open(f.cache); err != nil {
			return err
		}
		defer func() { _ = r.cache.Close() }()
	}

	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		return r.compile(unit{name: opts.Filename, src: string(data), out: f.out})
	}
	if len(args) > 1 && f.outDir == "" {
		return errors.New("several inputs need --out-dir")
	}

	units := make([]unit, len(args))
	for i, name := range args {
		data, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", compiler.ErrReadModule, name, err)
		}
		units[i] = unit{name: name, src: string(data), out: f.out}
		if f.outDir != "" {
			units[i].out = outPath(f.outDir, name)
		}
	}
	if len(units) == 1 {
		return r.compile(units[0])
	}

	errs := make([]error, len(units))
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = r.compile(u)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (r *runner) compile(u unit) error {
	o := *r.opts
	o.Filename = u.name
	// A bare "true" picks the map location from the output.
	if sm := o.SourceMaps; sm != nil && sm.Enabled && sm.Target == "" {
		if u.out == "" {
			o.SourceMaps = &api.SourceMaps{Enabled: true, Target: "inline"}
		} else {
			o.SourceMaps = &api.SourceMaps{Enabled: true, Target: u.out + ".map"}
		}
	}
	opts, err := inferSyntax(r.c, u.name, &o)
	if err != nil {
		return err
	}
	built, err := r.c.Config(u.name, opts)
	if err != nil {
		return err
	}

	var key string
	if r.cache != nil {
		if key, err = outcache.Key(u.name, u.src, built); err != nil {
			return err
		}
		out, ok, err := r.cache.Get(key)
		if err != nil {
			return err
		}
		if ok {
			r.log.Debug("output cache hit", "file", u.name)
			return r.write(u, built, out)
		}
	}

	out, err := r.c.Transform(u.src, opts)
	if err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.Put(key, u.name, out); err != nil {
			return err
		}
	}
	return r.write(u, built, out)
}

func (r *runner) write(u unit, built *pipeline.BuiltConfig, out *api.Output) error {
	if u.out == "" {
		if _, err := io.WriteString(r.cmd.OutOrStdout(), out.Code); err != nil {
			return err
		}
	} else if err := writeFile(u.out, out.Code); err != nil {
		return fmt.Errorf("write %s: %w", u.out, err)
	}
	if out.Map == nil {
		return nil
	}
	mapPath := built.SourceMapFile
	if mapPath == "" && u.out != "" {
		mapPath = u.out + ".map"
	}
	if mapPath == "" {
		r.log.Warn("source map dropped, output goes to stdout", "file", u.name)
		return nil
	}
	if err := writeFile(mapPath, *out.Map); err != nil {
		return fmt.Errorf("%w: %s: %w", compiler.ErrWriteSourceMap, mapPath, err)
	}
	return nil
}

func writeFile(path, data string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(data), 0o644)
}

// outPath maps an input to its file under dir, keeping relative layout
// for inputs below the working directory.
func outPath(dir, name string) string {
	rel := name
	if filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
		rel = filepath.Base(rel)
	}
	return filepath.Join(dir, strings.TrimSuffix(rel, filepath.Ext(rel))+".js")
}
