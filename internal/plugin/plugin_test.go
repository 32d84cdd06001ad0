package plugin

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benzoXdev/bundleobf/internal/bundle"
	"github.com/benzoXdev/bundleobf/internal/config"
	"github.com/benzoXdev/bundleobf/internal/engine"
	"github.com/benzoXdev/bundleobf/internal/tags"
)

// markEngine replaces each module with a call naming it.
type markEngine struct {
	mu    sync.Mutex
	names []string
}

func (e *markEngine) Name() string { return "mark" }

func (e *markEngine) Obfuscate(_ context.Context, name, _ string, _ int64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, name)
	return `console.log("obf:` + name + `");`, nil
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/index.ts":                  "import { util } from './util.js';\nimport { dep } from 'dep';\nutil();\ndep();\nconsole.log('index');\n",
		"src/util.js":                   "export function util() { console.log('util ' + 255); }\n",
		"node_modules/dep/package.json": `{"name":"dep","main":"index.js"}`,
		"node_modules/dep/index.js":     "export function dep() { console.log('vendorMarker'); }\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func testConfig(root string) *config.Config {
	seed := int64(7)
	return &config.Config{
		Obfuscator: engine.Options{Profile: "balanced", Seed: &seed},
		Run: config.RunConfig{
			ProjectRoot: root,
			Pattern:     "**/*.js",
			TempDir:     filepath.Join(root, "tmp"),
		},
	}
}

func build(t *testing.T, root string, p *Plugin, write bool) api.BuildResult {
	t.Helper()
	opts := api.BuildOptions{
		EntryPoints:   []string{filepath.Join(root, "src", "index.ts")},
		AbsWorkingDir: root,
		Bundle:        true,
		Format:        api.FormatESModule,
		Platform:      api.PlatformNeutral,
		Write:         write,
		LogLevel:      api.LogLevelSilent,
		Plugins:       []api.Plugin{p.Esbuild()},
	}
	if write {
		opts.Outdir = filepath.Join(root, "dist")
	} else {
		opts.Outfile = filepath.Join(root, "dist", "index.js")
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp"), 0o755))
	return api.Build(opts)
}

func TestBuildInMemory(t *testing.T) {
	root := writeProject(t)
	eng := &markEngine{}
	p := New(testConfig(root), eng, zerolog.Nop())

	res := build(t, root, p, false)
	require.Empty(t, res.Errors)
	require.Len(t, res.OutputFiles, 1)
	out := string(res.OutputFiles[0].Contents)

	assert.Contains(t, out, `console.log("obf:src/index.js")`)
	assert.Contains(t, out, `console.log("obf:src/util.js")`)
	assert.Contains(t, out, "vendorMarker", "vendor code is untouched")
	assert.NotContains(t, out, `console.log("index")`)
	assert.False(t, tags.Contains(out))

	sort.Strings(eng.names)
	assert.Equal(t, []string{"src/index.js", "src/util.js"}, eng.names)
	assert.Equal(t, []string{"src/index.js", "src/util.js"}, p.Modules())
	require.Len(t, p.Results(), 1)
	assert.Equal(t, int64(7), p.Results()[0].Report.Seed)
}

func TestBuildWritesToDisk(t *testing.T) {
	root := writeProject(t)
	p := New(testConfig(root), &markEngine{}, zerolog.Nop())

	res := build(t, root, p, true)
	require.Empty(t, res.Errors)
	data, err := os.ReadFile(filepath.Join(root, "dist", "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `console.log("obf:src/util.js")`)
	assert.False(t, tags.Contains(string(data)))
}

func TestBuildWithBuiltinEngineProducesValidJS(t *testing.T) {
	root := writeProject(t)
	cfg := testConfig(root)
	eng, err := engine.New(cfg.Obfuscator, zerolog.Nop())
	require.NoError(t, err)
	p := New(cfg, eng, zerolog.Nop())

	res := build(t, root, p, false)
	require.Empty(t, res.Errors)
	out := string(res.OutputFiles[0].Contents)
	assert.False(t, tags.Contains(out))
	assert.Contains(t, out, "vendorMarker")

	check := api.Transform(out, api.TransformOptions{Loader: api.LoaderJS, Format: api.FormatESModule, LogLevel: api.LogLevelSilent})
	assert.Empty(t, check.Errors, "obfuscated bundle must parse")
}

func TestSkippedBuild(t *testing.T) {
	root := writeProject(t)
	cfg := testConfig(root)
	cfg.Run.Dev = true
	eng := &markEngine{}
	p := New(cfg, eng, zerolog.Nop())

	res := build(t, root, p, false)
	require.Empty(t, res.Errors)
	out := string(res.OutputFiles[0].Contents)
	assert.Contains(t, out, `console.log("index")`)
	assert.False(t, tags.Contains(out))
	assert.Empty(t, eng.names)
	assert.Equal(t, "development build (run_in_debug=false)", p.Skipped())
}

func TestSourceMapWarning(t *testing.T) {
	root := writeProject(t)
	p := New(testConfig(root), &markEngine{}, zerolog.Nop())
	res := api.Build(api.BuildOptions{
		EntryPoints:   []string{filepath.Join(root, "src", "index.ts")},
		AbsWorkingDir: root,
		Bundle:        true,
		Format:        api.FormatESModule,
		Outfile:       filepath.Join(root, "dist", "index.js"),
		Sourcemap:     api.SourceMapExternal,
		LogLevel:      api.LogLevelSilent,
		Plugins:       []api.Plugin{p.Esbuild()},
	})
	require.Empty(t, res.Errors)
	var found bool
	for _, w := range res.Warnings {
		if strings.Contains(w.Text, "source maps") {
			found = true
		}
	}
	assert.True(t, found, "expected a source map warning, got %v", res.Warnings)
}

func TestUntracked(t *testing.T) {
	p := New(testConfig(t.TempDir()), &markEngine{}, zerolog.Nop())
	p.modules["src/a.js"] = "/abs/src/a.js"
	got := p.untracked([]bundle.Chunk{
		{Code: "x"},
		{Module: true, Key: "src/a.js"},
		{Module: true, Key: "lib/other.js"},
		{Module: true, Key: "lib/other.js"},
	})
	assert.Equal(t, []string{"lib/other.js"}, got)
}

func TestMetafileOutputs(t *testing.T) {
	paths, err := metafileOutputs(`{"outputs":{"dist/b.js":{},"dist/a.js.map":{},"dist/a.js":{"entryPoint":"src/a.ts"}}}`, "/work")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("/work", "dist", "a.js"),
		filepath.Join("/work", "dist", "a.js.map"),
		filepath.Join("/work", "dist", "b.js"),
	}, paths)

	_, err = metafileOutputs("", "/work")
	assert.Error(t, err)
}
