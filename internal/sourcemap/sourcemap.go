// Package sourcemap builds a combined source map (revision 3) that maps a
// concatenation of unobfuscated module files back to those files, line by line.
package sourcemap

import (
	"encoding/json"
	"strings"
)

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Map is the JSON form of a revision 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Combiner appends files one after another into a single generated file.
// Every generated line maps column 0 to column 0 of its source line.
type Combiner struct {
	file     string
	sources  []string
	contents []string
	lines    []string // one mappings segment per generated line
	prevSrc  int
	prevLine int
}

// NewCombiner starts a map for file whose first startLine generated lines
// (a bundler preamble, say) map to nothing.
func NewCombiner(file string, startLine int) *Combiner {
	if startLine < 0 {
		startLine = 0
	}
	return &Combiner{file: file, lines: make([]string, startLine)}
}

// AddFile appends name with content right after the previously added file.
func (c *Combiner) AddFile(name, content string) {
	idx := len(c.sources)
	c.sources = append(c.sources, name)
	c.contents = append(c.contents, content)
	n := strings.Count(content, "\n") + 1
	var seg strings.Builder
	for line := 0; line < n; line++ {
		seg.Reset()
		seg.WriteString(EncodeVLQ(0))
		seg.WriteString(EncodeVLQ(idx - c.prevSrc))
		seg.WriteString(EncodeVLQ(line - c.prevLine))
		seg.WriteString(EncodeVLQ(0))
		c.lines = append(c.lines, seg.String())
		c.prevSrc = idx
		c.prevLine = line
	}
}

// Len reports how many files were added.
func (c *Combiner) Len() int { return len(c.sources) }

// Map returns the combined map.
func (c *Combiner) Map() *Map {
	return &Map{
		Version:        3,
		File:           c.file,
		Sources:        append([]string{}, c.sources...),
		SourcesContent: append([]string{}, c.contents...),
		Names:          []string{},
		Mappings:       strings.Join(c.lines, ";"),
	}
}

// JSON returns the combined map serialized as JSON.
func (c *Combiner) JSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// EncodeVLQ encodes v as a base64 VLQ.
func EncodeVLQ(v int) string {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	var b strings.Builder
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		b.WriteByte(base64Digits[digit])
		if u == 0 {
			return b.String()
		}
	}
}
