package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/kiln/internal/compiler"
	"github.com/agentic-research/kiln/internal/outcache"
)

func run(t *testing.T, c *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c.SetArgs(args)
	c.SetIn(strings.NewReader(stdin))
	c.SetOut(&out)
	c.SetErr(&errOut)
	err := c.Execute()
	return out.String(), err
}

// workspace writes files under a fresh directory and makes it the
// working directory.
func workspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	t.Chdir(dir)
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestTransformStdin(t *testing.T) {
	workspace(t, map[string]string{".kilnrc": `{"jsc": {"target": "es2015"}}`})

	out, err := run(t, newTransformCmd(), "let a = 1;\n")
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;\n", out)

	// A name makes stdin path-backed, so the config applies.
	out, err = run(t, newTransformCmd(), "let a = 1;\n", "--filename", "a.js")
	require.NoError(t, err)
	assert.Equal(t, "let a = 1;\n", out)
}

func TestTransformFileUsesConfig(t *testing.T) {
	workspace(t, map[string]string{
		".kilnrc": `{"jsc": {"target": "es2015"}}`,
		"a.js":    "let a = 1;\n",
	})

	out, err := run(t, newTransformCmd(), "", "a.js")
	require.NoError(t, err)
	assert.Equal(t, "let a = 1;\n", out)

	out, err = run(t, newTransformCmd(), "", "a.js", "--no-config")
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;\n", out)

	out, err = run(t, newTransformCmd(), "", "a.js", "--minify")
	require.NoError(t, err)
	assert.Equal(t, "let a=1;", out)
}

func TestTransformInfersSyntaxFromExtension(t *testing.T) {
	workspace(t, map[string]string{"a.ts": "let n: number = 1;\n"})

	out, err := run(t, newTransformCmd(), "", "a.ts", "--target", "es2015")
	require.NoError(t, err)
	assert.Contains(t, out, "let n")
	assert.NotContains(t, out, "number")

	_, err = run(t, newTransformCmd(), "", "a.ts", "--syntax", "ecmascript")
	assert.ErrorIs(t, err, compiler.ErrParseModule)
}

func TestTransformOutDir(t *testing.T) {
	dir := workspace(t, map[string]string{
		"a.js":     "let a = 1;\n",
		"sub/b.js": "let b = 2;\n",
	})

	out, err := run(t, newTransformCmd(), "", "a.js", "sub/b.js", "-d", "out", "--minify")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "var a=1;", readFile(t, filepath.Join(dir, "out", "a.js")))
	assert.Equal(t, "var b=2;", readFile(t, filepath.Join(dir, "out", "sub", "b.js")))
}

func TestTransformSourceMapFile(t *testing.T) {
	dir := workspace(t, map[string]string{"a.js": "foo();\n"})

	_, err := run(t, newTransformCmd(), "", "a.js", "-o", "out/a.js", "--source-maps", "true")
	require.NoError(t, err)
	assert.Equal(t, "foo();\n//# sourceMappingURL=a.js.map\n", readFile(t, filepath.Join(dir, "out", "a.js")))

	var doc struct {
		File    string   `json:"file"`
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, "out", "a.js.map"))), &doc))
	assert.Equal(t, "a.js", doc.File)
	assert.Equal(t, []string{"a.js"}, doc.Sources)
}

func TestTransformSourceMapToStdoutIsInline(t *testing.T) {
	workspace(t, nil)
	out, err := run(t, newTransformCmd(), "foo();\n", "--source-maps", "true")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "foo();\n//# sourceMappingURL=data:application/json"), out)
}

func TestTransformCache(t *testing.T) {
	dir := workspace(t, map[string]string{"a.js": "let a = 1;\n"})
	db := filepath.Join(dir, "cache.db")

	first, err := run(t, newTransformCmd(), "", "a.js", "--cache", db)
	require.NoError(t, err)
	second, err := run(t, newTransformCmd(), "", "a.js", "--cache", db)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = run(t, newTransformCmd(), "", "a.js", "--cache", db, "--minify")
	require.NoError(t, err)

	c, err := outcache.Open(db)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTransformErrors(t *testing.T) {
	workspace(t, map[string]string{"a.js": "a;\n", "b.js": "b;\n"})

	for name, args := range map[string][]string{
		"several inputs":     {"a.js", "b.js"},
		"out and out-dir":    {"a.js", "-o", "x.js", "-d", "out"},
		"parser flag alone":  {"a.js", "--jsx"},
		"module flag alone":  {"a.js", "--strict"},
		"bad root mode":      {"a.js", "--root-mode", "sideways"},
		"empty source maps":  {"a.js", "--source-maps", ""},
		"unknown module":     {"a.js", "--module", "system"},
		"bad global":         {"a.js", "--global", "X=a b"},
		"commonjs module id": {"a.js", "--module", "commonjs", "--module-id", "m"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, newTransformCmd(), "", args...)
			assert.Error(t, err)
		})
	}

	_, err := run(t, newTransformCmd(), "", "missing.js")
	assert.ErrorIs(t, err, compiler.ErrReadModule)
}

func TestConfigQuery(t *testing.T) {
	workspace(t, map[string]string{".kilnrc": `{"jsc": {"target": "es2017"}}`})

	out, err := run(t, newConfigCmd(), "", "a.js", "--query", "$.jsc.target")
	require.NoError(t, err)
	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"es2017"}, got)

	out, err = run(t, newConfigCmd(), "", "a.js", "--query", "$.jsc.target", "--target", "es3")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"es3"}, got)

	_, err = run(t, newConfigCmd(), "", "--query", "$[")
	assert.Error(t, err)
}

func TestConfigWholeDocument(t *testing.T) {
	workspace(t, nil)
	out, err := run(t, newConfigCmd(), "")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, false, doc["minify"])
	jsc := doc["jsc"].(map[string]any)
	assert.Equal(t, "es5", jsc["target"])
	assert.Equal(t, "ecmascript", jsc["parser"].(map[string]any)["syntax"])
}

func TestConfigPasses(t *testing.T) {
	workspace(t, nil)
	out, err := run(t, newConfigCmd(), "", "--passes")
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{
		"ClassProperties", "ES2018", "ES2017", "ES2016", "ES2015", "ES3",
		"InjectHelpers", "Hygiene", "Fixer",
	}, got)

	out, err = run(t, newConfigCmd(), "", "a.tsx", "--passes")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "StripTypes", got[0])
	assert.Contains(t, got, "JSX")
}

func TestParseCommand(t *testing.T) {
	workspace(t, map[string]string{"a.ts": "let n: number = 1;\n"})

	out, err := run(t, newParseCmd(), "a;\n", "--syntax", "ecmascript")
	require.NoError(t, err)
	var node struct {
		Type     string `json:"type"`
		Children []struct {
			Type string `json:"type"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &node))
	assert.Equal(t, "program", node.Type)
	require.Len(t, node.Children, 1)
	assert.Equal(t, "expression_statement", node.Children[0].Type)

	out, err = run(t, newParseCmd(), "", "a.ts")
	require.NoError(t, err)
	assert.Contains(t, out, "type_annotation")

	_, err = run(t, newParseCmd(), "a b c;\n")
	assert.ErrorIs(t, err, compiler.ErrParseModule)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger("debug", "json", &buf)
	require.NoError(t, err)
	log.Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	log, err = newLogger("", "", &buf)
	require.NoError(t, err)
	log.Info("quiet")
	assert.Empty(t, buf.String())

	_, err = newLogger("loud", "text", &buf)
	assert.Error(t, err)
	_, err = newLogger("info", "xml", &buf)
	assert.Error(t, err)
}

func TestOutPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "src", "a.js"), outPath("out", "src/a.ts"))
	assert.Equal(t, filepath.Join("out", "b.js"), outPath("out", "/abs/b.tsx"))
	assert.Equal(t, filepath.Join("out", "c.js"), outPath("out", "../c.mjs"))
}
