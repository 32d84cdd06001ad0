package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benzoXdev/bundleobf/internal/tags"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// projectConfig writes a config file; extra holds additional run keys.
func projectConfig(t *testing.T, root string, extra string) string {
	t.Helper()
	path := filepath.Join(root, "bundleobf.yaml")
	writeFile(t, path, "obfuscator:\n  profile: balanced\n  seed: 99\nrun:\n  project_root: "+root+
		"\n  temp_dir: "+filepath.Join(root, "tmp")+"\n"+extra+"log:\n  format: json\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp"), 0o755))
	return path
}

func tagged(t *testing.T, code, key string) string {
	t.Helper()
	s, err := tags.Wrap(code, key)
	require.NoError(t, err)
	return s
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bundleobf v")
}

func TestStrip(t *testing.T) {
	root := t.TempDir()
	cfg := projectConfig(t, root, "")
	bundlePath := filepath.Join(root, "dist", "index.js")
	writeFile(t, bundlePath, "v();"+tagged(t, "a()", "src/a.js"))

	_, err := run(t, "strip", bundlePath, "--config", cfg, "--quiet")
	require.NoError(t, err)
	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	assert.Equal(t, "v();\na()\n", string(data))
}

func TestObfuscate(t *testing.T) {
	root := t.TempDir()
	cfg := projectConfig(t, root, "")
	bundlePath := filepath.Join(root, "dist", "index.js")
	writeFile(t, bundlePath, "var vendor = 'keep me';\n"+
		tagged(t, "function greet(n) { return 'hello ' + n + 4096; }", "src/greet.js")+
		"\nconsole.log(greet(vendor));\n")

	_, err := run(t, "obfuscate", bundlePath, "--config", cfg, "--report", "build/report.yaml", "--brotli")
	require.NoError(t, err)

	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	out := string(data)
	assert.False(t, tags.Contains(out))
	assert.True(t, strings.HasPrefix(out, "var vendor = 'keep me';\n"))
	assert.Contains(t, out, "function greet(")
	assert.NotContains(t, out, "4096")

	check := api.Transform(out, api.TransformOptions{Loader: api.LoaderJS, LogLevel: api.LogLevelSilent})
	assert.Empty(t, check.Errors)

	_, err = os.Stat(filepath.Join(root, "build", "report.yaml"))
	assert.NoError(t, err)
	_, err = os.Stat(bundlePath + ".br")
	assert.NoError(t, err)
}

func TestObfuscateSkippedStrips(t *testing.T) {
	root := t.TempDir()
	cfg := projectConfig(t, root, "  disable: true\n")
	bundlePath := filepath.Join(root, "dist", "index.js")
	writeFile(t, bundlePath, tagged(t, "a()", "src/a.js"))

	_, err := run(t, "obfuscate", bundlePath, "--config", cfg)
	require.NoError(t, err)
	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	assert.Equal(t, "\na()\n", string(data))
}

func TestObfuscateLeavesBrokenBundle(t *testing.T) {
	root := t.TempDir()
	cfg := projectConfig(t, root, "")
	bundlePath := filepath.Join(root, "dist", "index.js")
	broken := "x();" + tags.Begin("src/a.js") + "a()"
	writeFile(t, bundlePath, broken)

	_, err := run(t, "obfuscate", bundlePath, "--config", cfg)
	require.Error(t, err)
	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	assert.Equal(t, broken, string(data))
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	cfg := projectConfig(t, root, "")
	writeFile(t, filepath.Join(root, "src", "index.ts"), "import { twice } from './math';\nconst label: string = 'result';\nconsole.log(label, twice(21));\n")
	writeFile(t, filepath.Join(root, "src", "math.ts"), "export function twice(n: number): number { return n * 2; }\n")
	outfile := filepath.Join(root, "dist", "app.js")

	_, err := run(t, "build", filepath.Join(root, "src", "index.ts"),
		"--outfile", outfile, "--project-root", root, "--config", cfg, "--brotli", "--format", "esm")
	require.NoError(t, err)

	data, err := os.ReadFile(outfile)
	require.NoError(t, err)
	out := string(data)
	assert.False(t, tags.Contains(out))
	check := api.Transform(out, api.TransformOptions{Loader: api.LoaderJS, Format: api.FormatESModule, LogLevel: api.LogLevelSilent})
	assert.Empty(t, check.Errors)

	_, err = os.Stat(outfile + ".br")
	assert.NoError(t, err)
}

func TestBuildFlagErrors(t *testing.T) {
	root := t.TempDir()
	cfg := projectConfig(t, root, "")
	entry := filepath.Join(root, "src", "index.js")
	writeFile(t, entry, "console.log(1)")

	_, err := run(t, "build", entry, "--config", cfg)
	assert.ErrorContains(t, err, "--outfile or --outdir")

	_, err = run(t, "build", entry, "--config", cfg, "--outdir", filepath.Join(root, "dist"), "--format", "amd")
	assert.ErrorContains(t, err, "unknown format")
}
