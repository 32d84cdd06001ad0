package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/benzoXdev/bundleobf/internal/sourcemap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// upperEngine upper-cases code and records every call.
type upperEngine struct {
	mu    sync.Mutex
	calls map[string]int64
	fail  string
}

func (e *upperEngine) Name() string { return "upper" }

func (e *upperEngine) Obfuscate(ctx context.Context, name, code string, seed int64) (string, error) {
	if name == e.fail {
		return "", errors.New("engine exploded")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = map[string]int64{}
	}
	e.calls[name] = seed
	return strings.ToUpper(code), nil
}

func seedTree(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, WriteFile(fs, "/work/src/"+name, []byte(content)))
	}
}

func TestRunObfuscatesAndExcludes(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedTree(t, fs, map[string]string{
		"src/app.js":       "let app = 1;",
		"src/util/math.js": "let add = 2;",
		"vendor/lib.js":    "let keep = 3;",
		"src/app.js.map":   "{}",
		"src/empty.js":     "",
	})
	eng := &upperEngine{}
	d := New(fs, eng, zerolog.Nop())

	res, err := d.Run(context.Background(), Job{
		SrcDir:   "/work/src",
		DestDir:  "/work/dist",
		Excludes: []string{"vendor/**"},
		Seed:     77,
	})
	require.NoError(t, err)

	got := func(name string) string {
		data, err := afero.ReadFile(fs, "/work/dist/"+name)
		require.NoError(t, err, name)
		return string(data)
	}
	assert.Equal(t, "LET APP = 1;", got("src/app.js"))
	assert.Equal(t, "LET ADD = 2;", got("src/util/math.js"))
	assert.Equal(t, "let keep = 3;", got("vendor/lib.js"))
	assert.Equal(t, "", got("src/empty.js"))

	exists, err := afero.Exists(fs, "/work/dist/src/app.js.map")
	require.NoError(t, err)
	assert.False(t, exists, "files outside the pattern are not copied")

	assert.Equal(t, map[string]int64{"src/app.js": 77, "src/util/math.js": 77}, eng.calls)
	assert.Equal(t, []string{"vendor/lib.js"}, res.Excluded)
	require.Len(t, res.Files, 4)
	assert.Equal(t, "src/app.js", res.Files[0].Name)
	assert.True(t, res.Files[3].Skipped)
	assert.Empty(t, res.SourceMap)
}

func TestRunWritesSourceMap(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedTree(t, fs, map[string]string{
		"b.js":           "b()\n",
		"a.js":           "a()",
		"skip/vendor.js": "v()",
	})
	d := New(fs, &upperEngine{}, zerolog.Nop())

	res, err := d.Run(context.Background(), Job{
		SrcDir:        "/work/src",
		DestDir:       "/work/dist",
		Excludes:      []string{"skip/*.js"},
		SourceMap:     true,
		SourceMapPath: "/out/app.bundle.map",
	})
	require.NoError(t, err)
	assert.Equal(t, "/out/app.bundle.map", res.SourceMap)

	data, err := afero.ReadFile(fs, "/out/app.bundle.map")
	require.NoError(t, err)
	var m sourcemap.Map
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "app.bundle", m.File)
	assert.Equal(t, []string{"a.js", "b.js"}, m.Sources)
	assert.Equal(t, []string{"a()", "b()\n"}, m.SourcesContent, "the map describes unobfuscated code")
}

func TestRunDefaultSourceMapPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedTree(t, fs, map[string]string{"a.js": "a()"})
	res, err := New(fs, &upperEngine{}, zerolog.Nop()).Run(context.Background(), Job{
		SrcDir: "/work/src", DestDir: "/work/dist", SourceMap: true,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultSourceMapPath, res.SourceMap)
	exists, err := afero.Exists(fs, DefaultSourceMapPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunEngineFailureNamesModule(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("m%02d.js", i)] = "x()"
	}
	seedTree(t, fs, files)
	d := New(fs, &upperEngine{fail: "m07.js"}, zerolog.Nop())

	_, err := d.Run(context.Background(), Job{SrcDir: "/work/src", DestDir: "/work/dist", Concurrency: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m07.js")
	assert.Contains(t, err.Error(), "engine exploded")
}

func TestRunRejectsBadPattern(t *testing.T) {
	d := New(afero.NewMemMapFs(), &upperEngine{}, zerolog.Nop())
	_, err := d.Run(context.Background(), Job{SrcDir: "/work/src", DestDir: "/work/dist", Excludes: []string{"[a-"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid glob pattern")
}

func TestReadSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteFile(fs, "/bom.js", append([]byte{0xEF, 0xBB, 0xBF}, "a()"...)))
	require.NoError(t, WriteFile(fs, "/bad.js", []byte{0xff, 0xfe, 'a'}))

	code, err := ReadSource(fs, "/bom.js")
	require.NoError(t, err)
	assert.Equal(t, "a()", code)

	_, err = ReadSource(fs, "/bad.js")
	assert.ErrorIs(t, err, ErrNotUTF8)

	_, err = ReadSource(fs, "/missing.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}
