package config

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/kiln/api"
	"github.com/agentic-research/kiln/internal/pipeline"
	"github.com/agentic-research/kiln/internal/source"
)

// countingFS records every open so tests can assert the resolver stayed
// off the filesystem.
type countingFS struct {
	billy.Filesystem
	opens atomic.Int32
}

func (c *countingFS) Open(name string) (billy.File, error) {
	c.opens.Add(1)
	return c.Filesystem.Open(name)
}

func (c *countingFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	c.opens.Add(1)
	return c.Filesystem.OpenFile(name, flag, perm)
}

func newFS(t *testing.T, files map[string]string) *countingFS {
	t.Helper()
	fsys := memfs.New()
	for name, data := range files {
		require.NoError(t, util.WriteFile(fsys, name, []byte(data), 0o644))
	}
	return &countingFS{Filesystem: fsys}
}

func noEnv(string) (string, bool) { return "", false }

func file(path string) *source.File {
	return source.NewSet().AddFile("", path, "a;")
}

func TestResolveNearestConfigWins(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"/w/.kilnrc":     `{"jsc": {"target": "es2015"}, "minify": true}`,
		"/w/pkg/.kilnrc": `{"jsc": {"target": "es2017"}}`,
	})
	r := NewResolver(fsys, noEnv, nil)

	b, err := r.Resolve(&api.Options{Cwd: "/w"}, file("/w/pkg/src/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "es2017", b.Target.String())
	assert.False(t, b.Minify, "configs from different directories do not merge")

	b, err = r.Resolve(&api.Options{Cwd: "/w"}, file("/w/other/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "es2015", b.Target.String())
	assert.True(t, b.Minify)
}

func TestResolveStopsAtRoot(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"/w/.kilnrc": `{"jsc": {"target": "es2015"}}`,
	})
	r := NewResolver(fsys, noEnv, nil)

	b, err := r.Resolve(&api.Options{Cwd: "/w/pkg"}, file("/w/pkg/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "es5", b.Target.String(), "the parent of the root is not searched")

	b, err = r.Resolve(&api.Options{Cwd: "/w/pkg", RootMode: api.RootModeUpward}, file("/w/pkg/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "es2015", b.Target.String())

	b, err = r.Resolve(&api.Options{Cwd: "/", Root: "w/pkg"}, file("/w/pkg/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "es5", b.Target.String(), "relative root resolves against cwd")
}

func TestResolveInvocationOverridesFile(t *testing.T) {
	fsys := newFS(t, map[string]string{
		"/w/.kilnrc": `{"jsc": {"target": "es2015", "transform": {"react": {"pragma": "h", "development": true}}}}`,
	})
	r := NewResolver(fsys, noEnv, nil)
	opts := &api.Options{Cwd: "/w", Config: api.Config{Jsc: &api.JscConfig{
		Target:    api.String("es3"),
		Transform: &api.TransformConfig{React: &api.ReactConfig{PragmaFrag: api.String("F"), Development: api.Bool(false)}},
	}}}

	b, err := r.Resolve(opts, file("/w/a.js"))
	require.NoError(t, err)
	react := b.Config.Jsc.Transform.React
	assert.Equal(t, "es3", b.Target.String())
	assert.Equal(t, "h", *react.Pragma)
	assert.Equal(t, "F", *react.PragmaFrag)
	assert.True(t, *react.Development)
}

func TestResolveWithoutLookupTouchesNoFiles(t *testing.T) {
	fsys := newFS(t, map[string]string{"/w/.kilnrc": `{"minify": true}`})
	r := NewResolver(fsys, noEnv, nil)

	b, err := r.Resolve(&api.Options{Cwd: "/w", ConfigFile: api.Bool(false)}, file("/w/a.js"))
	require.NoError(t, err)
	assert.False(t, b.Minify)

	b, err = r.Resolve(&api.Options{Cwd: "/w"}, source.NewSet().AddFile("", "", "a;"))
	require.NoError(t, err)
	assert.False(t, b.Minify)

	assert.Zero(t, fsys.opens.Load())
}

func TestResolveIsCachedAndDeterministic(t *testing.T) {
	fsys := newFS(t, map[string]string{"/w/.kilnrc": `{"minify": true}`})
	r := NewResolver(fsys, noEnv, nil)
	opts := &api.Options{Cwd: "/w"}

	first, err := r.Resolve(opts, file("/w/a.js"))
	require.NoError(t, err)
	opens := fsys.opens.Load()

	second, err := r.Resolve(opts, file("/w/b.js"))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, opens, fsys.opens.Load())

	// Different overrides never share an entry.
	third, err := r.Resolve(&api.Options{Cwd: "/w", Config: api.Config{Jsc: &api.JscConfig{Target: api.String("es2018")}}}, file("/w/a.js"))
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, "es2018", third.Target.String())

	// Nor do different environments.
	fourth, err := r.Resolve(&api.Options{Cwd: "/w", EnvName: "production"}, file("/w/a.js"))
	require.NoError(t, err)
	assert.NotSame(t, first, fourth)
	assert.Equal(t, first.PassNames(), fourth.PassNames())
	assert.Equal(t, 3, r.Len())
}

func TestResolveConcurrent(t *testing.T) {
	fsys := newFS(t, map[string]string{"/w/.kilnrc": `{"jsc": {"target": "es2016"}}`})
	r := NewResolver(fsys, noEnv, nil)

	var wg sync.WaitGroup
	results := make([]*pipeline.BuiltConfig, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := r.Resolve(&api.Options{Cwd: "/w"}, file("/w/x.js"))
			assert.NoError(t, err)
			results[i] = b
		}()
	}
	wg.Wait()
	for _, b := range results {
		require.NotNil(t, b)
		assert.Equal(t, results[0].PassNames(), b.PassNames())
		assert.Equal(t, "es2016", b.Target.String())
	}
	assert.Equal(t, 1, r.Len())
}

func TestResolveErrors(t *testing.T) {
	cases := map[string]struct {
		rc   string
		want error
	}{
		"unknown key": {`{"minfy": true}`, ErrParseConfigFile},
		"bad json":    {`{"minify": `, ErrParseConfigFile},
		"trailing":    {`{} {}`, ErrParseConfigFile},
		"bad global":  {`{"jsc": {"transform": {"optimizer": {"globals": {"vars": {"X": "a b"}}}}}}`, pipeline.ErrInvalidGlobal},
		"bad target":  {`{"jsc": {"target": "es1"}}`, pipeline.ErrInvalidConfig},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewResolver(newFS(t, map[string]string{"/w/.kilnrc": c.rc}), noEnv, nil)
			_, err := r.Resolve(&api.Options{Cwd: "/w"}, file("/w/a.js"))
			assert.ErrorIs(t, err, c.want)
			assert.Contains(t, err.Error(), "/w/.kilnrc")
		})
	}
}

func TestResolveRejectsBadRootMode(t *testing.T) {
	r := NewResolver(newFS(t, nil), noEnv, nil)
	_, err := r.Resolve(&api.Options{RootMode: "sideways"}, nil)
	assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
}

func TestDecode(t *testing.T) {
	cfg, err := Decode([]byte(`{"sourceMaps": "inline", "module": {"type": "amd", "moduleId": "m"}}`))
	require.NoError(t, err)
	assert.True(t, cfg.SourceMaps.Inline())
	assert.Equal(t, "m", cfg.Module.ModuleID)
}
