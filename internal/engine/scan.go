package engine

import (
	"errors"
	"fmt"
)

// ErrUnterminated is returned when the scanner reaches EOF inside a literal or comment.
var ErrUnterminated = errors.New("unterminated literal")

type spanKind int

const (
	spanCode spanKind = iota
	spanString
	spanTemplate
	spanComment
	spanRegex
)

// span is a half-open byte range [start, end) of one kind.
type span struct {
	kind       spanKind
	start, end int
}

// scanJS splits src into contiguous spans so transforms only ever touch the
// parts they understand. Regex vs. division is decided from the previous
// significant token, which is exact for esbuild output.
func scanJS(src string) ([]span, error) {
	s := &scanner{src: src, regexOK: true}
	if err := s.scanCode(false); err != nil {
		return nil, err
	}
	if s.codeStart < len(src) {
		s.spans = append(s.spans, span{spanCode, s.codeStart, len(src)})
	}
	return s.spans, nil
}

type scanner struct {
	src       string
	pos       int
	spans     []span
	codeStart int
	regexOK   bool
	prev      string // last significant token, "" at the start of input
	nested    int    // >0 while inside a template substitution
}

func (s *scanner) emit(kind spanKind, start, end int) {
	if s.nested > 0 {
		return
	}
	if start > s.codeStart {
		s.spans = append(s.spans, span{spanCode, s.codeStart, start})
	}
	s.spans = append(s.spans, span{kind, start, end})
	s.codeStart = end
}

func (s *scanner) peek(off int) byte {
	if s.pos+off < len(s.src) {
		return s.src[s.pos+off]
	}
	return 0
}

// blockBrace reports whether a '{' following prev opens a block rather than
// an object literal.
func blockBrace(prev string) bool {
	switch prev {
	case "", ";", "{", "}", ")", "=>", "else", "do", "try", "finally":
		return true
	}
	return false
}

// scanCode consumes code until EOF or, with untilBrace, until the '}' closing
// a template substitution.
func (s *scanner) scanCode(untilBrace bool) error {
	// kinds of the open braces, true for blocks
	var braces []bool
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\'' || c == '"':
			start := s.pos
			if err := s.skipString(c); err != nil {
				return err
			}
			s.emit(spanString, start, s.pos)
			s.regexOK = false
			s.prev = "lit"
		case c == '`':
			start := s.pos
			if err := s.skipTemplate(); err != nil {
				return err
			}
			s.emit(spanTemplate, start, s.pos)
			s.regexOK = false
			s.prev = "lit"
		case c == '/' && s.peek(1) == '/':
			start := s.pos
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
			s.emit(spanComment, start, s.pos)
		case c == '/' && s.peek(1) == '*':
			start := s.pos
			s.pos += 2
			for {
				if s.pos+1 >= len(s.src) {
					return fmt.Errorf("%w: block comment at offset %d", ErrUnterminated, start)
				}
				if s.src[s.pos] == '*' && s.src[s.pos+1] == '/' {
					s.pos += 2
					break
				}
				s.pos++
			}
			s.emit(spanComment, start, s.pos)
		case c == '/' && s.regexOK:
			start := s.pos
			if err := s.skipRegex(); err != nil {
				return err
			}
			s.emit(spanRegex, start, s.pos)
			s.regexOK = false
			s.prev = "lit"
		case isIdentStart(c):
			start := s.pos
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			s.prev = s.src[start:s.pos]
			s.regexOK = regexKeywords[s.prev]
		case isDigit(c) || (c == '.' && isDigit(s.peek(1))):
			for s.pos < len(s.src) && (isIdentPart(s.src[s.pos]) || s.src[s.pos] == '.') {
				s.pos++
			}
			s.regexOK = false
			s.prev = "lit"
		case c == '{':
			braces = append(braces, blockBrace(s.prev))
			s.pos++
			s.regexOK = true
			s.prev = "{"
		case c == '}':
			s.pos++
			if untilBrace && len(braces) == 0 {
				return nil
			}
			block := len(braces) > 0 && braces[len(braces)-1]
			if len(braces) > 0 {
				braces = braces[:len(braces)-1]
			}
			// A regex may start a statement after a block, never after an
			// object literal.
			s.regexOK = block
			s.prev = "}"
			if !block {
				s.prev = "lit"
			}
		case c == ')' || c == ']':
			s.pos++
			s.regexOK = false
			s.prev = string(c)
		case (c == '+' || c == '-') && s.peek(1) == c:
			s.pos += 2
			s.regexOK = false
			s.prev = "++"
		case c == '=' && s.peek(1) == '>':
			s.pos += 2
			s.regexOK = true
			s.prev = "=>"
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		default:
			s.pos++
			s.regexOK = true
			s.prev = string(c)
		}
	}
	if untilBrace {
		return fmt.Errorf("%w: template substitution", ErrUnterminated)
	}
	return nil
}

func (s *scanner) skipString(q byte) error {
	start := s.pos
	s.pos++
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
		case q:
			s.pos++
			return nil
		case '\n':
			return fmt.Errorf("%w: string at offset %d", ErrUnterminated, start)
		default:
			s.pos++
		}
	}
	return fmt.Errorf("%w: string at offset %d", ErrUnterminated, start)
}

func (s *scanner) skipTemplate() error {
	start := s.pos
	s.pos++
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			s.pos += 2
		case '`':
			s.pos++
			return nil
		case '$':
			if s.peek(1) != '{' {
				s.pos++
				continue
			}
			s.pos += 2
			saved, savedPrev := s.regexOK, s.prev
			s.regexOK, s.prev = true, "("
			s.nested++
			err := s.scanCode(true)
			s.nested--
			s.regexOK, s.prev = saved, savedPrev
			if err != nil {
				return err
			}
		default:
			s.pos++
		}
	}
	return fmt.Errorf("%w: template at offset %d", ErrUnterminated, start)
}

func (s *scanner) skipRegex() error {
	start := s.pos
	s.pos++
	inClass := false
	for s.pos < len(s.src) {
		switch c := s.src[s.pos]; {
		case c == '\\':
			s.pos += 2
		case c == '[':
			inClass = true
			s.pos++
		case c == ']':
			inClass = false
			s.pos++
		case c == '/' && !inClass:
			s.pos++
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			return nil
		case c == '\n':
			return fmt.Errorf("%w: regular expression at offset %d", ErrUnterminated, start)
		default:
			s.pos++
		}
	}
	return fmt.Errorf("%w: regular expression at offset %d", ErrUnterminated, start)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$' || c == '\\' || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
