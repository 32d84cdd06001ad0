package engine

import (
	"fmt"
	mathrand "math/rand"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/evanw/esbuild/pkg/api"
)

// MinifyTransform renames locals and compacts syntax through esbuild. No output
// format is set, so top-level names (shared with other modules of a
// scope-hoisted bundle) are never renamed.
type MinifyTransform struct{}

func (t *MinifyTransform) Name() string { return "minify" }

func (t *MinifyTransform) Apply(js string, ctx *Ctx) (string, error) {
	o := ctx.Opts
	opts := api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        ctx.File,
		MinifyIdentifiers: o.MinifyIdentifiers,
		MinifySyntax:      o.MinifySyntax,
		MinifyWhitespace:  o.MinifyWhitespace,
		MangleProps:       o.MangleProps,
		KeepNames:         o.KeepNames,
		LegalComments:     api.LegalCommentsNone,
		Charset:           api.CharsetUTF8,
		TreeShaking:       api.TreeShakingFalse,
		LogLevel:          api.LogLevelSilent,
	}
	if o.DropConsole {
		opts.Drop |= api.DropConsole
	}
	if o.DropDebugger {
		opts.Drop |= api.DropDebugger
	}
	if o.Target != "" {
		target, err := ParseTarget(o.Target)
		if err != nil {
			return "", err
		}
		opts.Target = target
	}
	res := api.Transform(js, opts)
	if len(res.Errors) > 0 {
		return "", fmt.Errorf("esbuild: %s", formatMessages(res.Errors))
	}
	return string(res.Code), nil
}

// StringEncodeTransform rewrites characters of string literals as \xNN escapes.
// Directive strings ("use strict" and friends) are left alone since an escaped
// directive is no longer a directive.
type StringEncodeTransform struct{ Percent int }

func (t *StringEncodeTransform) Name() string { return "strenc" }

func (t *StringEncodeTransform) Apply(js string, ctx *Ctx) (string, error) {
	spans, err := scanJS(js)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(js) * 2)
	for _, sp := range spans {
		lit := js[sp.start:sp.end]
		if sp.kind != spanString || strings.HasPrefix(lit[1:], "use ") {
			b.WriteString(lit)
			continue
		}
		b.WriteString(encodeStringLiteral(lit, t.Percent, ctx.Rng))
	}
	return b.String(), nil
}

func encodeStringLiteral(lit string, percent int, r *mathrand.Rand) string {
	body := lit[1 : len(lit)-1]
	var b strings.Builder
	b.WriteByte(lit[0])
	for i := 0; i < len(body); {
		c := body[i]
		if c == '\\' {
			n := escapeLen(body, i)
			b.WriteString(body[i : i+n])
			i += n
			continue
		}
		if c >= 0x20 && c < 0x7f && r.Intn(100) < percent {
			fmt.Fprintf(&b, `\x%02x`, c)
		} else {
			b.WriteByte(c)
		}
		i++
	}
	b.WriteByte(lit[len(lit)-1])
	return b.String()
}

// escapeLen returns the byte length of the escape sequence starting at s[i].
func escapeLen(s string, i int) int {
	rest := len(s) - i
	if rest < 2 {
		return rest
	}
	n := 2
	switch s[i+1] {
	case 'x':
		n = 4
	case 'u':
		if rest > 2 && s[i+2] == '{' {
			if end := strings.IndexByte(s[i:], '}'); end >= 0 {
				n = end + 1
			} else {
				n = rest
			}
		} else {
			n = 6
		}
	case '0', '1', '2', '3', '4', '5', '6', '7':
		for n < 4 && i+n < len(s) && s[i+n] >= '0' && s[i+n] <= '7' {
			n++
		}
	case '\r':
		if rest > 2 && s[i+2] == '\n' {
			n = 3
		}
	default:
		_, size := utf8.DecodeRuneInString(s[i+1:])
		n = 1 + size
	}
	if n > rest {
		n = rest
	}
	return n
}

// NumberEncodeTransform rewrites decimal integer literals in hexadecimal. Hex is
// valid everywhere a decimal literal is (property keys included), unlike
// arithmetic expressions.
type NumberEncodeTransform struct{}

func (t *NumberEncodeTransform) Name() string { return "numenc" }

func (t *NumberEncodeTransform) Apply(js string, ctx *Ctx) (string, error) {
	spans, err := scanJS(js)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(js) + len(js)/4)
	for _, sp := range spans {
		seg := js[sp.start:sp.end]
		if sp.kind != spanCode {
			b.WriteString(seg)
			continue
		}
		b.WriteString(encodeNumbers(seg, ctx.Rng))
	}
	return b.String(), nil
}

const maxSafeInteger = 1<<53 - 1

func encodeNumbers(seg string, r *mathrand.Rand) string {
	var b strings.Builder
	for i := 0; i < len(seg); {
		c := seg[i]
		if !isDigit(c) || (i > 0 && (isIdentPart(seg[i-1]) || seg[i-1] == '.')) {
			b.WriteByte(c)
			i++
			continue
		}
		j := i
		for j < len(seg) && (isIdentPart(seg[j]) || seg[j] == '.') {
			j++
		}
		tok := seg[i:j]
		b.WriteString(hexLiteral(tok, r))
		i = j
	}
	return b.String()
}

func hexLiteral(tok string, r *mathrand.Rand) string {
	if len(tok) > 1 && tok[0] == '0' {
		return tok
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil || n > maxSafeInteger {
		return tok
	}
	if r.Intn(2) == 0 {
		return "0x" + strconv.FormatUint(n, 16)
	}
	return "0x" + strings.ToUpper(strconv.FormatUint(n, 16))
}

// DeadCodeTransform appends unreachable, block-scoped noise guarded by an
// opaque predicate. Nothing leaks into the enclosing scope.
type DeadCodeTransform struct{ Prob int }

func (t *DeadCodeTransform) Name() string { return "deadcode" }

func (t *DeadCodeTransform) Apply(js string, ctx *Ctx) (string, error) {
	if ctx.Rng.Intn(100) >= t.Prob {
		return js, nil
	}
	body := noiseBlock(ctx.Rng, 4)
	if body == "" {
		body = noiseStatement(ctx.Rng)
	}
	return js + "\n;if(" + opaqueFalse(ctx.Rng) + "){" + body + "}\n", nil
}

// ParseTarget maps a target name such as es2017 to its esbuild value.
func ParseTarget(s string) (api.Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "esnext":
		return api.ESNext, nil
	case "es5":
		return api.ES5, nil
	case "es2015", "es6":
		return api.ES2015, nil
	case "es2016":
		return api.ES2016, nil
	case "es2017":
		return api.ES2017, nil
	case "es2018":
		return api.ES2018, nil
	case "es2019":
		return api.ES2019, nil
	case "es2020":
		return api.ES2020, nil
	case "es2021":
		return api.ES2021, nil
	case "es2022":
		return api.ES2022, nil
	}
	return api.DefaultTarget, fmt.Errorf("%w: unknown target %q", ErrInvalidOptions, s)
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text
		if m.Location != nil {
			text = fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "; ")
}
