// Package macro implements the assembler's macro facility: definition
// capture as verbatim body lines, and expansion with parameter substitution
// into text terminated by a sentinel byte. The pass driver dispatches the
// expanded lines itself; this package keeps no source pointer.
package macro

import (
	"strings"

	"github.com/nivasm/vasm/errs"
)

// EndSentinel is the 0x03 byte Expand appends after an expanded macro body
// to mark where the expansion ends.
const EndSentinel = 0x03

// Macro is one recorded definition: its formal parameter names and the
// verbatim body text captured between MACRO and ENDM.
type Macro struct {
	Name   string
	Params []string
	Body   []string // one entry per captured source line, leading whitespace preserved
	Pos    errs.Position
}

// Table holds every macro defined so far in the current pass. Cleared at
// the start of each pass and rebuilt as MACRO directives are re-encountered.
type Table struct {
	macros map[string]*Macro
}

// New creates an empty macro Table.
func New() *Table {
	return &Table{macros: make(map[string]*Macro)}
}

// Reset clears all definitions, called at the start of every pass.
func (t *Table) Reset() {
	t.macros = make(map[string]*Macro)
}

// Define records a new macro. A duplicate name is not an error: the later
// definition replaces the earlier one. The pass driver raises
// EndmBeforeMacro for an ENDM outside a definition.
func (t *Table) Define(name string, params []string, body []string, pos errs.Position) {
	t.macros[strings.ToUpper(name)] = &Macro{Name: name, Params: params, Body: body, Pos: pos}
}

// Lookup finds a macro by name, case-insensitively (mnemonic matching is
// always case-insensitive regardless of the symbol-table case option).
func (t *Table) Lookup(name string) (*Macro, bool) {
	m, ok := t.macros[strings.ToUpper(name)]
	return m, ok
}

// ParseFormalParams splits a comma-separated formal parameter list.
func ParseFormalParams(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ParseActualParams splits a comma-separated actual parameter list the same
// way, after comments have already been stripped and trailing whitespace
// trimmed by the caller.
func ParseActualParams(s string) []string {
	return ParseFormalParams(s)
}

// Expand substitutes each formal parameter, in order, with its corresponding
// actual throughout the macro body, and returns the resulting text ready to
// append to the macro's invocation buffer, followed by EndSentinel.
func (m *Macro) Expand(actuals []string, pos errs.Position) (string, error) {
	if len(actuals) != len(m.Params) {
		if len(actuals) < len(m.Params) {
			return "", errs.New(pos, errs.NotEnoughActualParams, m.Name)
		}
		return "", errs.New(pos, errs.NotEnoughFormalParams, m.Name)
	}

	var out strings.Builder
	for _, line := range m.Body {
		out.WriteString(substituteParams(line, m.Params, actuals))
		out.WriteByte('\n')
	}
	out.WriteByte(EndSentinel)
	return out.String(), nil
}

// substituteParams replaces every occurrence of each formal (matched as a
// whole identifier, not a substring of a larger one) with its actual.
func substituteParams(line string, formals, actuals []string) string {
	var out strings.Builder
	i := 0
	for i < len(line) {
		matched := false
		for idx, f := range formals {
			if f == "" {
				continue
			}
			if strings.HasPrefix(line[i:], f) && !identContinues(line, i+len(f)) && !identPrecedes(line, i) {
				out.WriteString(actuals[idx])
				i += len(f)
				matched = true
				break
			}
		}
		if !matched {
			out.WriteByte(line[i])
			i++
		}
	}
	return out.String()
}

func identContinues(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	b := s[i]
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

func identPrecedes(s string, i int) bool {
	if i == 0 {
		return false
	}
	return identContinues(s, i-1)
}
