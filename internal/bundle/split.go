// Package bundle splits a tagged bundle into raw and module chunks, sends the
// module chunks through the obfuscation driver and splices the results back.
package bundle

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/benzoXdev/bundleobf/internal/tags"
)

var (
	// ErrUnbalanced is returned when a begin sentinel has no end or an end
	// sentinel has no begin.
	ErrUnbalanced = errors.New("unbalanced sentinel")
	// ErrNestedBegin is returned when a begin sentinel appears inside a module.
	ErrNestedBegin = errors.New("nested begin sentinel")
)

// Chunk is a contiguous piece of a bundle. Raw chunks are bundler output kept
// byte for byte; module chunks hold the code between a pair of sentinels.
type Chunk struct {
	Module bool
	Key    string // module key from the begin sentinel
	File   string // slash-separated path of the module in the temp tree
	Code   string
}

// Split parses text into chunks. Module code excludes the line breaks Wrap
// puts next to each sentinel, so concatenating the Code of all chunks yields
// the bundle as it was before tagging.
func Split(text string) ([]Chunk, error) {
	var chunks []Chunk
	files := map[string]string{} // file -> code
	byKey := map[string][]string{}
	pos := 0
	for pos < len(text) {
		loc := tags.BeginPattern.FindStringSubmatchIndex(text[pos:])
		end := strings.Index(text[pos:], tags.End)
		if loc == nil {
			if end >= 0 {
				return nil, fmt.Errorf("%w: end sentinel without begin at offset %d", ErrUnbalanced, pos+end)
			}
			chunks = appendRaw(chunks, text[pos:])
			break
		}
		if end >= 0 && end < loc[0] {
			return nil, fmt.Errorf("%w: end sentinel without begin at offset %d", ErrUnbalanced, pos+end)
		}
		chunks = appendRaw(chunks, text[pos:pos+loc[0]])
		key := text[pos+loc[2] : pos+loc[3]]
		bodyStart := pos + loc[1]

		end = strings.Index(text[bodyStart:], tags.End)
		if end < 0 {
			return nil, fmt.Errorf("%w: module %q at offset %d is never closed", ErrUnbalanced, key, pos+loc[0])
		}
		if next := tags.BeginPattern.FindStringIndex(text[bodyStart : bodyStart+end]); next != nil {
			return nil, fmt.Errorf("%w: module %q opens inside module %q at offset %d", ErrNestedBegin,
				tags.BeginPattern.FindStringSubmatch(text[bodyStart+next[0]:])[1], key, bodyStart+next[0])
		}
		code := strings.TrimSuffix(strings.TrimPrefix(text[bodyStart:bodyStart+end], "\n"), "\n")
		chunks = append(chunks, Chunk{
			Module: true,
			Key:    key,
			File:   fileFor(key, code, files, byKey),
			Code:   code,
		})
		pos = bodyStart + end + len(tags.End)
	}
	return chunks, nil
}

func appendRaw(chunks []Chunk, s string) []Chunk {
	if s == "" {
		return chunks
	}
	return append(chunks, Chunk{Code: s})
}

// fileFor assigns a temp-tree file to a module. A key seen again with the same
// code reuses its file; with different code it gets a numbered sibling.
func fileFor(key, code string, files map[string]string, byKey map[string][]string) string {
	for _, f := range byKey[key] {
		if files[f] == code {
			return f
		}
	}
	base := sanitize(key)
	name := base
	for n := 1; ; n++ {
		if _, taken := files[name]; !taken {
			break
		}
		name = strings.TrimSuffix(base, ".js") + fmt.Sprintf(".%d.js", n)
	}
	files[name] = code
	byKey[key] = append(byKey[key], name)
	return name
}

// sanitize turns a key into a relative .js path that cannot leave the temp tree.
func sanitize(key string) string {
	p := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if p == "" {
		p = "module"
	}
	if !strings.HasSuffix(p, ".js") {
		p += ".js"
	}
	return p
}

// Modules returns one chunk per distinct temp-tree file, in bundle order.
func Modules(chunks []Chunk) []Chunk {
	seen := map[string]bool{}
	var out []Chunk
	for _, c := range chunks {
		if c.Module && !seen[c.File] {
			seen[c.File] = true
			out = append(out, c)
		}
	}
	return out
}

// Rejoin concatenates chunks, substituting replaced[c.File] for module chunks
// that have a replacement. Sentinels never appear in the result.
func Rejoin(chunks []Chunk, replaced map[string]string) string {
	var b strings.Builder
	size := 0
	for _, c := range chunks {
		size += len(c.Code)
	}
	b.Grow(size)
	for _, c := range chunks {
		if c.Module {
			code, ok := replaced[c.File]
			if ok {
				code = tags.Strip(code)
			} else {
				code = c.Code
			}
			writeModule(&b, code)
			continue
		}
		b.WriteString(c.Code)
	}
	return b.String()
}

// writeModule writes module code, ending it with a line break when its last
// line may hold a line comment that would swallow the code after it.
func writeModule(b *strings.Builder, code string) {
	b.WriteString(code)
	if last := code[strings.LastIndexByte(code, '\n')+1:]; strings.Contains(last, "//") {
		b.WriteByte('\n')
	}
}
