// Package tags wraps module code with begin/end sentinels and removes them again.
//
// Sentinels are legal comments ("/*!") so esbuild keeps them in place when the
// build runs with LegalComments set to inline.
package tags

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	begPrefix = "/*!jso-beg:"
	begSuffix = "*/"
	// End is the sentinel closing a tagged module.
	End = "/*!jso-end*/"
)

// ErrInvalidKey is returned when a module key cannot be embedded in a sentinel.
var ErrInvalidKey = errors.New("invalid module key")

// BeginPattern matches a begin sentinel and captures the module key.
var BeginPattern = regexp.MustCompile(`/\*!jso-beg:([^*\r\n]+)\*/`)

// Begin returns the begin sentinel for key.
func Begin(key string) string {
	return begPrefix + key + begSuffix
}

// ValidateKey reports whether key can be carried by a begin sentinel.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.ContainsAny(key, "*\r\n") {
		return fmt.Errorf("%w: %q contains '*' or a line break", ErrInvalidKey, key)
	}
	return nil
}

// Wrap surrounds code with the sentinels for key. The sentinels sit on their own
// lines so a trailing line comment in code cannot swallow the end sentinel.
func Wrap(code, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(code) + len(key) + 32)
	b.WriteString(Begin(key))
	b.WriteByte('\n')
	b.WriteString(code)
	b.WriteByte('\n')
	b.WriteString(End)
	return b.String(), nil
}

// Strip removes every begin and end sentinel from text.
func Strip(text string) string {
	if !Contains(text) {
		return text
	}
	text = BeginPattern.ReplaceAllString(text, "")
	return strings.ReplaceAll(text, End, "")
}

// Contains reports whether text carries any sentinel.
func Contains(text string) bool {
	return strings.Contains(text, begPrefix) || strings.Contains(text, End)
}
