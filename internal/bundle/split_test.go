package bundle

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benzoXdev/bundleobf/internal/tags"
)

func wrap(t *testing.T, code, key string) string {
	t.Helper()
	s, err := tags.Wrap(code, key)
	require.NoError(t, err)
	return s
}

func TestSplit(t *testing.T) {
	text := "(()=>{" + wrap(t, "a()", "src/a.js") + ";" + wrap(t, "b()", "src/b.js") + "})();"
	chunks, err := Split(text)
	require.NoError(t, err)

	want := []Chunk{
		{Code: "(()=>{"},
		{Module: true, Key: "src/a.js", File: "src/a.js", Code: "a()"},
		{Code: ";"},
		{Module: true, Key: "src/b.js", File: "src/b.js", Code: "b()"},
		{Code: "})();"},
	}
	if diff := cmp.Diff(want, chunks); diff != "" {
		t.Errorf("Split() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "(()=>{a();b()})();", Rejoin(chunks, nil))
}

func TestSplitWithoutSentinels(t *testing.T) {
	chunks, err := Split("var x = 1;")
	require.NoError(t, err)
	assert.Equal(t, []Chunk{{Code: "var x = 1;"}}, chunks)

	chunks, err = Split("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"begin without end", "x;" + tags.Begin("a.js") + "a()", ErrUnbalanced},
		{"end without begin", "x;" + tags.End + "y", ErrUnbalanced},
		{"stray end before begin", tags.End + wrap(t, "a()", "a.js"), ErrUnbalanced},
		{"trailing stray end", wrap(t, "a()", "a.js") + tags.End, ErrUnbalanced},
		{"nested begin", tags.Begin("a.js") + wrap(t, "b()", "b.js") + tags.End, ErrNestedBegin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(tt.text)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSplitDuplicateKeys(t *testing.T) {
	text := wrap(t, "a()", "src/a.js") + wrap(t, "a()", "src/a.js") + wrap(t, "other()", "src/a.js")
	chunks, err := Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "src/a.js", chunks[0].File)
	assert.Equal(t, "src/a.js", chunks[1].File, "same key and code share a file")
	assert.Equal(t, "src/a.1.js", chunks[2].File)
	assert.Len(t, Modules(chunks), 2)
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"src/a.js":              "src/a.js",
		"../../etc/passwd":      "etc/passwd.js",
		"/abs/x.js":             "abs/x.js",
		`_external\lib\util.js`: "_external/lib/util.js",
		"..":                    "module.js",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitize(in), in)
	}
}

func TestRejoinSubstitutes(t *testing.T) {
	chunks := []Chunk{
		{Code: "head;"},
		{Module: true, Key: "a.js", File: "a.js", Code: "a()"},
		{Code: ";"},
		{Module: true, Key: "b.js", File: "b.js", Code: "b()"},
	}
	out := Rejoin(chunks, map[string]string{"a.js": "X" + tags.End})
	assert.Equal(t, "head;X;b()", out)
}

func TestRejoinKeepsLineCommentsClosed(t *testing.T) {
	text := wrap(t, "a() //! kept", "a.js") + "b()"
	chunks, err := Split(text)
	require.NoError(t, err)
	assert.Equal(t, "a() //! kept\nb()", Rejoin(chunks, nil))
	assert.Equal(t, "x()\n//c\nb()", Rejoin(chunks, map[string]string{"a.js": "x()\n//c"}))
}

func TestSplitUnreplacedModuleIsByteIdentical(t *testing.T) {
	module := "\nfunction u() {\n  return 1;\n}\n"
	text := "head;" + wrap(t, module, "src/u.js") + ";tail"
	chunks, err := Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, module, chunks[1].Code)
	assert.Equal(t, "head;"+module+";tail", Rejoin(chunks, nil))
}
