package bundleobf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObfuscateBundle(t *testing.T) {
	root := t.TempDir()
	bundlePath := filepath.Join(root, "app.js")
	require.NoError(t, os.WriteFile(bundlePath, []byte("x();/*!jso-beg:src/a.js*/\nlet a = 'secret';\n/*!jso-end*/y();"), 0o644))

	seed := int64(3)
	cfg := &Config{Obfuscator: Options{Profile: "heavy", Seed: &seed}}
	cfg.Run.ProjectRoot = root
	cfg.Run.TempDir = root

	report, err := ObfuscateBundle(context.Background(), bundlePath, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Seed)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "src/a.js", report.Files[0].Name)

	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "jso-")
	check := api.Transform(string(data), api.TransformOptions{Loader: api.LoaderJS, LogLevel: api.LogLevelSilent})
	assert.Empty(t, check.Errors)
}

func TestNewPluginSkipped(t *testing.T) {
	cfg := &Config{}
	cfg.Run.Disable = true
	cfg.Obfuscator.Engine = "exec"
	cfg.Obfuscator.ExecCommand = "/definitely/missing/cli"
	p, err := NewPlugin(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err, "a skipped plugin never looks for the engine")
	assert.Equal(t, "bundleobf", p.Name)
}
