// Package value implements the assembler's tagged numeric value: a width
// (byte/word/dword), a definedness flag, and the promotion and conversion
// rules expressions and directives use throughout both passes.
package value

import "fmt"

// Width is the storage size a Value currently claims.
type Width int

const (
	Byte Width = iota
	Word
	Dword
)

func (w Width) String() string {
	switch w {
	case Byte:
		return "byte"
	case Word:
		return "word"
	case Dword:
		return "dword"
	default:
		return "?"
	}
}

// Value is the assembler's universal numeric type. Content is always stored
// widened to 32 bits; Width records the narrowest size the value is known to
// need, and Defined records whether it has been resolved yet (false for a
// forward reference not yet seen in the current pass).
type Value struct {
	Content uint32
	Width   Width
	Defined bool
}

// Undefined returns a BYTE-width, not-yet-defined value — what a forward
// symbol reference evaluates to during pass 1 before its definition is seen.
func Undefined() Value {
	return Value{Width: Byte, Defined: false}
}

// FromByte wraps a known byte value.
func FromByte(b byte) Value {
	return Value{Content: uint32(b), Width: Byte, Defined: true}
}

// FromWord wraps a known 16-bit value.
func FromWord(w uint16) Value {
	return Value{Content: uint32(w), Width: Word, Defined: true}
}

// FromDword wraps a known 32-bit value.
func FromDword(d uint32) Value {
	return Value{Content: d, Width: Dword, Defined: true}
}

// Promote returns the wider of two widths — the rule expressions use when
// combining two operands: the result takes on the larger operand's width.
func Promote(a, b Width) Width {
	if a > b {
		return a
	}
	return b
}

// Combine merges two values under a binary operator's width-promotion and
// undefined-propagation rules: the result is undefined if either operand is,
// and its width is the wider of the two operands'.
func Combine(a, b Value, content uint32) Value {
	return Value{
		Content: content,
		Width:   Promote(a.Width, b.Width),
		Defined: a.Defined && b.Defined,
	}
}

// ToByte narrows v to a byte. A value above 0xFF is an error unless force is
// set, in which case it is truncated to its low 8 bits (callers pass
// force=true for operands that are explicitly truncated, e.g. the [!b] cast).
func (v Value) ToByte(force bool) (byte, error) {
	if !force && v.Content > 0xFF {
		return 0, fmt.Errorf("value 0x%X does not fit in a byte", v.Content)
	}
	return byte(v.Content), nil
}

// ToWord narrows v to a 16-bit word under the same force convention as
// ToByte.
func (v Value) ToWord(force bool) (uint16, error) {
	if !force && v.Content > 0xFFFF {
		return 0, fmt.Errorf("value 0x%X does not fit in a word", v.Content)
	}
	return uint16(v.Content), nil
}

// Format renders v according to a single-character radix specifier, as used
// by listing and diagnostic code: 'd'/none decimal, 'x'/'X' hex, 'o' octal,
// 'b' binary, '%' hex prefixed with '$', '#' decimal prefixed with '#'.
func (v Value) Format(spec byte) string {
	switch spec {
	case 'x':
		return fmt.Sprintf("%x", v.Content)
	case 'X':
		return fmt.Sprintf("%X", v.Content)
	case 'o':
		return fmt.Sprintf("%o", v.Content)
	case 'b':
		return fmt.Sprintf("%b", v.Content)
	case '%', '$':
		return fmt.Sprintf("$%X", v.Content)
	case '#':
		return fmt.Sprintf("#%d", v.Content)
	default:
		return fmt.Sprintf("%d", v.Content)
	}
}
