// Package lexer implements the assembler's lexical primitives: cursor-based
// scanners for whitespace, comments, identifiers, strings, and character
// literals, operating directly on a source.Buffer's byte slice the way the
// statement parser and expression evaluator both need.
package lexer

import (
	"strings"

	"github.com/nivasm/vasm/errs"
)

// Cursor is a mutable scan position into a byte buffer, shared by every
// lexical primitive below.
type Cursor struct {
	Buf []byte
	Pos int
}

// NewCursor creates a Cursor over buf starting at pos.
func NewCursor(buf []byte, pos int) *Cursor {
	return &Cursor{Buf: buf, Pos: pos}
}

func (c *Cursor) at(offset int) byte {
	p := c.Pos + offset
	if p < 0 || p >= len(c.Buf) {
		return 0
	}
	return c.Buf[p]
}

// Peek returns the byte at the cursor without advancing.
func (c *Cursor) Peek() byte { return c.at(0) }

// PeekAt returns the byte offset bytes ahead of the cursor.
func (c *Cursor) PeekAt(offset int) byte { return c.at(offset) }

// AtEnd reports whether the cursor has run off the end of the buffer.
func (c *Cursor) AtEnd() bool { return c.Pos >= len(c.Buf) }

// IsEOLByte reports whether b terminates a line: newline, CR, NUL, or the
// source registry's EOF marker.
func IsEOLByte(b byte) bool {
	return b == '\n' || b == '\r' || b == 0 || b == 0x1A
}

// AtEOL reports whether the cursor sits on an end-of-line byte.
func (c *Cursor) AtEOL() bool {
	return c.AtEnd() || IsEOLByte(c.Peek())
}

// Advance consumes one byte and returns it.
func (c *Cursor) Advance() byte {
	b := c.Peek()
	if !c.AtEnd() {
		c.Pos++
	}
	return b
}

// SkipWhite consumes spaces and tabs (not newlines).
func (c *Cursor) SkipWhite() {
	for !c.AtEnd() {
		b := c.Peek()
		if b == ' ' || b == '\t' {
			c.Pos++
			continue
		}
		break
	}
}

// SkipWhiteAndComment consumes spaces/tabs and, if present, a ';'-to-end-of-
// line comment, leaving the cursor on the terminating EOL byte.
func (c *Cursor) SkipWhiteAndComment() {
	c.SkipWhite()
	if c.Peek() == ';' {
		for !c.AtEOL() {
			c.Pos++
		}
	}
}

func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '.' || b == '_'
}

func isIdentChar(b byte, numericOK bool) bool {
	if isIdentStart(b) {
		return true
	}
	if b >= '0' && b <= '9' {
		return true
	}
	return false
}

const maxIdentLen = 32

// Ident scans an identifier: letters, digits, '.', '_'. A leading digit is
// only accepted when numericOK is set (the numeric-label variant). Fails
// IdentifierTooLong beyond 32 characters.
func (c *Cursor) Ident(numericOK bool, pos errs.Position) (string, error) {
	start := c.Pos
	first := c.Peek()
	if !isIdentStart(first) && !(numericOK && first >= '0' && first <= '9') {
		return "", errs.New(pos, errs.IdentifierExpected, "")
	}
	for isIdentChar(c.Peek(), numericOK) {
		c.Pos++
	}
	name := string(c.Buf[start:c.Pos])
	if len(name) > maxIdentLen {
		return "", errs.New(pos, errs.IdentifierTooLong, name[:maxIdentLen])
	}
	return name, nil
}

// Upcase scans an identifier the same way Ident does and upper-cases it.
func (c *Cursor) Upcase(numericOK bool, pos errs.Position) (string, error) {
	s, err := c.Ident(numericOK, pos)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(s), nil
}

const maxStringLen = 128

// StringLiteral scans a double-quoted string. If quoteRequired is false and
// the cursor isn't on a '"', it returns "", false, nil (not a string here).
// Rejects an embedded newline or EOF before the closing quote.
func (c *Cursor) StringLiteral(quoteRequired bool, pos errs.Position) (string, bool, error) {
	if c.Peek() != '"' {
		if quoteRequired {
			return "", false, errs.New(pos, errs.StringExpected, "")
		}
		return "", false, nil
	}
	c.Pos++ // consume opening quote
	start := c.Pos
	for {
		if c.AtEnd() || IsEOLByte(c.Peek()) {
			return "", false, errs.New(pos, errs.StringNotTerminated, "")
		}
		if c.Peek() == '"' {
			break
		}
		c.Pos++
	}
	s := string(c.Buf[start:c.Pos])
	c.Pos++ // consume closing quote
	if len(s) > maxStringLen {
		return "", false, errs.New(pos, errs.StringTooLong, s[:maxStringLen])
	}
	return s, true, nil
}

// CharLiteral scans a single-quoted character constant 'c', returning its
// byte value.
func (c *Cursor) CharLiteral(pos errs.Position) (byte, error) {
	if c.Peek() != '\'' {
		return 0, errs.New(pos, errs.MalformedChar, "")
	}
	c.Pos++
	if c.AtEnd() || IsEOLByte(c.Peek()) {
		return 0, errs.New(pos, errs.CharNotTerminated, "")
	}
	ch := c.Advance()
	if c.Peek() != '\'' {
		return 0, errs.New(pos, errs.CharNotTerminated, "")
	}
	c.Pos++
	return ch, nil
}

// RestOfLine returns the remaining text up to (not including) the line
// terminator, without advancing the cursor.
func (c *Cursor) RestOfLine() string {
	start := c.Pos
	i := start
	for i < len(c.Buf) && !IsEOLByte(c.Buf[i]) {
		i++
	}
	return string(c.Buf[start:i])
}

// SkipToEOL advances the cursor to the line terminator.
func (c *Cursor) SkipToEOL() {
	for !c.AtEOL() {
		c.Pos++
	}
}
