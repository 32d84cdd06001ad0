package tags

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	out, err := Wrap("console.log(1)", "src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "/*!jso-beg:src/app.js*/\nconsole.log(1)\n/*!jso-end*/", out)

	m := BeginPattern.FindStringSubmatch(out)
	require.Len(t, m, 2)
	assert.Equal(t, "src/app.js", m[1])
}

func TestWrapRejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "a*/b.js", "a\nb.js"} {
		_, err := Wrap("x", key)
		assert.True(t, errors.Is(err, ErrInvalidKey), "key %q", key)
	}
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no tags", "var a=1;", "var a=1;"},
		{"one module", "pre;/*!jso-beg:a.js*/\nx()\n/*!jso-end*/post;", "pre;\nx()\npost;"},
		{"two modules", "/*!jso-beg:a.js*/a/*!jso-end*/|/*!jso-beg:b/c.js*/b/*!jso-end*/", "a|b"},
		{"stray end", "x/*!jso-end*/", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.in))
			assert.False(t, Contains(Strip(tt.in)))
		})
	}
}
