// Package config discovers .kilnrc files above a source file, merges them
// with the invocation options and caches the resulting pipelines.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/kiln/api"
	"github.com/agentic-research/kiln/internal/pipeline"
	"github.com/agentic-research/kiln/internal/source"
)

// FileName is the per-directory configuration file.
const FileName = ".kilnrc"

// HCLFileName is the HCL form of FileName, consulted when a directory
// has no FileName.
const HCLFileName = ".kilnrc.hcl"

var (
	ErrReadConfigFile  = errors.New("failed to read config file")
	ErrParseConfigFile = errors.New("failed to parse config file")
)

// cacheKey identifies a built pipeline. dir is "" for pipelines built
// without a config file.
type cacheKey struct {
	env string
	dir string
	fp  string
}

// Resolver finds and caches the pipeline for a source file. It is safe for
// concurrent use.
type Resolver struct {
	fs  billy.Filesystem
	env pipeline.EnvLookup
	log *slog.Logger

	mu    sync.RWMutex
	cache map[cacheKey]*pipeline.BuiltConfig
}

// NewResolver returns a resolver reading config files from fsys. env is
// passed to the pipeline builder; a nil log discards records.
func NewResolver(fsys billy.Filesystem, env pipeline.EnvLookup, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{fs: fsys, env: env, log: log, cache: map[cacheKey]*pipeline.BuiltConfig{}}
}

// Resolve returns the pipeline for file under opts. The nearest .kilnrc
// between the file's directory and the root wins; invocation options are
// merged over it. Anonymous sources and disabled lookup use the
// invocation options alone and never touch the filesystem.
func (r *Resolver) Resolve(opts *api.Options, file *source.File) (*pipeline.BuiltConfig, error) {
	if opts == nil {
		opts = &api.Options{}
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrInvalidConfig, err)
	}
	env := opts.Env(r.env)
	fp := opts.Config.Fingerprint()

	if !opts.LookupConfigFile() || file == nil || !file.PathBacked() {
		return r.build(cacheKey{env: env, fp: fp}, nil, &opts.Config)
	}

	cwd := opts.Cwd
	if cwd == "" {
		cwd = string(filepath.Separator)
	}
	root := absolute(cwd, opts.Root)
	if opts.Root == "" {
		root = filepath.Clean(cwd)
	}
	dir := filepath.Dir(absolute(cwd, file.Path))

	for {
		key := cacheKey{env: env, dir: dir, fp: fp}
		if b := r.get(key); b != nil {
			r.log.Debug("config cache hit", "dir", dir, "env", env)
			return b, nil
		}
		for _, name := range []string{FileName, HCLFileName} {
			path := filepath.Join(dir, name)
			cfg, err := r.Load(path)
			switch {
			case err == nil:
				r.log.Debug("loaded config file", "path", path)
				b, err := r.build(key, cfg, &opts.Config)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", path, err)
				}
				return b, nil
			case !errors.Is(err, fs.ErrNotExist):
				return nil, err
			}
		}

		if dir == root && (opts.RootMode == "" || opts.RootMode == api.RootModeRoot) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return r.build(cacheKey{env: env, fp: fp}, nil, &opts.Config)
}

// Load reads and strictly decodes one config file, HCL when path ends in
// .hcl and JSON otherwise. A missing file yields an error matching
// fs.ErrNotExist.
func (r *Resolver) Load(path string) (*api.Config, error) {
	data, err := util.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrReadConfigFile, path, err)
	}
	var cfg *api.Config
	if filepath.Ext(path) == ".hcl" {
		cfg, err = DecodeHCL(data, path)
	} else {
		cfg, err = Decode(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseConfigFile, path, err)
	}
	return cfg, nil
}

// Decode parses a .kilnrc document. Unknown keys and trailing data are
// errors.
func Decode(data []byte) (*api.Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg api.Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("unexpected data after the top-level object")
	}
	return &cfg, nil
}

// build merges the invocation config over the file config, builds the
// pipeline and caches it. Concurrent builders of one key may both build;
// the last store wins and the results are equivalent.
func (r *Resolver) build(key cacheKey, file, invocation *api.Config) (*pipeline.BuiltConfig, error) {
	if key.dir == "" {
		if b := r.get(key); b != nil {
			r.log.Debug("config cache hit", "env", key.env)
			return b, nil
		}
	}
	r.log.Debug("config cache miss", "dir", key.dir, "env", key.env)
	cfg := &api.Config{}
	cfg.Merge(file)
	cfg.Merge(invocation)
	b, err := pipeline.Build(cfg, r.env)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[key] = b
	r.mu.Unlock()
	return b, nil
}

func (r *Resolver) get(key cacheKey) *pipeline.BuiltConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[key]
}

// Len returns the number of cached pipelines.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func absolute(cwd, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}
