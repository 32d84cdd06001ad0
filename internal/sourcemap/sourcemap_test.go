package sourcemap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeVLQ(t *testing.T) {
	cases := map[int]string{0: "A", 1: "C", -1: "D", 15: "e", 16: "gB", -16: "hB", 1000: "w+B"}
	for in, want := range cases {
		assert.Equal(t, want, EncodeVLQ(in), "EncodeVLQ(%d)", in)
	}
}

func TestCombinerMappings(t *testing.T) {
	c := NewCombiner("index.bundle.js", 2)
	c.AddFile("a.js", "one\ntwo")
	c.AddFile("b.js", "three")
	require.Equal(t, 2, c.Len())

	data, err := c.JSON()
	require.NoError(t, err)
	var m Map
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, 3, m.Version)
	assert.Equal(t, "index.bundle.js", m.File)
	assert.Equal(t, []string{"a.js", "b.js"}, m.Sources)
	assert.Equal(t, []string{"one\ntwo", "three"}, m.SourcesContent)
	// two unmapped lines, a.js lines 0 and 1, then b.js line 0
	assert.Equal(t, ";;AAAA;AACA;ACDA", m.Mappings)
}

func TestCombinerEmpty(t *testing.T) {
	m := NewCombiner("x.js", 0).Map()
	assert.Empty(t, m.Sources)
	assert.Equal(t, "", m.Mappings)
}
