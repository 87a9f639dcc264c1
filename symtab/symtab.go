// Package symtab implements the assembler's symbol table: global symbols
// with nested per-global local-label scopes, forward-reference creation on
// first use, and pass-aware redefinition rules (strict in pass 1, tolerant
// in pass 2 provided the value doesn't change).
package symtab

import (
	"strings"

	"github.com/nivasm/vasm/errs"
	"github.com/nivasm/vasm/value"
)

// Kind distinguishes how a symbol was introduced.
type Kind int

const (
	KindLabel Kind = iota
	KindEqu
	KindVariable
)

// Symbol is one entry in the table: a name, its current value, whether it
// has been defined yet, and where it was first referenced (for unresolved-
// forward-reference diagnostics at end of pass 1).
type Symbol struct {
	Name       string
	Kind       Kind
	Value      value.Value
	Pos        errs.Position
	Referenced bool
	locals     map[string]*Symbol
}

// Table holds the assembler's whole symbol universe for one assembly run.
// It persists across both passes; only Defined/Value fields are allowed to
// change between passes.
type Table struct {
	globals       map[string]*Symbol
	current       *Symbol // enclosing global label for local-label scoping
	caseSensitive bool
}

// New creates an empty Table. caseSensitive mirrors the -C flag: when false,
// all symbol names are folded to upper case on entry.
func New(caseSensitive bool) *Table {
	return &Table{globals: make(map[string]*Symbol), caseSensitive: caseSensitive}
}

func (t *Table) norm(name string) string {
	if t.caseSensitive {
		return name
	}
	return strings.ToUpper(name)
}

// isLocal reports whether name is a dot-prefixed local label.
func isLocal(name string) bool {
	return strings.HasPrefix(name, ".")
}

// resolve splits name into the table that should hold it (globals, or the
// current global's locals) and the key to use within that table.
func (t *Table) resolve(name string) (map[string]*Symbol, string, error) {
	name = t.norm(name)
	if !isLocal(name) {
		return t.globals, name, nil
	}
	if t.current == nil {
		return nil, "", errs.New(errs.Position{}, errs.LocalWithoutGlobal, name)
	}
	if t.current.locals == nil {
		t.current.locals = make(map[string]*Symbol)
	}
	return t.current.locals, name, nil
}

// SetCurrentGlobal establishes the enclosing global label that subsequent
// local labels nest under. Called whenever a non-local LABEL is defined.
func (t *Table) SetCurrentGlobal(sym *Symbol) {
	t.current = sym
}

// Define records name = v at pos. pass1 selects strict (any redefinition is
// an error) versus pass2 semantics (redefinition is tolerated as long as the
// value is unchanged, matching the idempotent-pass invariant).
func (t *Table) Define(name string, v value.Value, pos errs.Position, kind Kind, pass1 bool) (*Symbol, error) {
	table, key, err := t.resolve(name)
	if err != nil {
		return nil, err
	}

	existing, ok := table[key]
	if !ok {
		sym := &Symbol{Name: key, Kind: kind, Value: v, Pos: pos}
		table[key] = sym
		if !isLocal(key) {
			t.SetCurrentGlobal(sym)
		}
		return sym, nil
	}

	if pass1 {
		if existing.Value.Defined {
			if isLocal(key) {
				return nil, errs.New(pos, errs.LocalRedefinition, key)
			}
			return nil, errs.New(pos, errs.IllegalRedefinition, key)
		}
		existing.Value = v
		existing.Kind = kind
		existing.Pos = pos
		if !isLocal(key) {
			t.SetCurrentGlobal(existing)
		}
		return existing, nil
	}

	// pass 2: tolerate redefinition as long as the resolved value matches
	// what pass 1 settled on (the idempotent-pass invariant); anything else
	// is a genuine redefinition, not just a forward reference resolving.
	if existing.Value.Defined && v != existing.Value {
		if isLocal(key) {
			return nil, errs.New(pos, errs.LocalRedefinition, key)
		}
		return nil, errs.New(pos, errs.IllegalRedefinition, key)
	}
	existing.Value = v
	existing.Kind = kind
	if !isLocal(key) {
		t.SetCurrentGlobal(existing)
	}
	return existing, nil
}

// Reference looks up name, creating an undefined forward-reference entry on
// first use if it doesn't exist yet (so pass 1 can proceed, sizing the
// instruction optimistically, and resolve it by end of pass).
func (t *Table) Reference(name string, pos errs.Position) (*Symbol, error) {
	table, key, err := t.resolve(name)
	if err != nil {
		return nil, err
	}

	sym, ok := table[key]
	if !ok {
		sym = &Symbol{Name: key, Value: value.Undefined(), Pos: pos}
		table[key] = sym
	}
	sym.Referenced = true
	return sym, nil
}

// Lookup returns the symbol named name without creating it, reporting
// whether it exists.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	table, key, err := t.resolve(name)
	if err != nil {
		return nil, false
	}
	sym, ok := table[key]
	return sym, ok
}

// UndefinedSymbols returns every global symbol, and every local label nested
// under any global, that remains undefined — called after pass 1 to raise
// UndefinedValue for anything that never got a definition.
func (t *Table) UndefinedSymbols() []*Symbol {
	var out []*Symbol
	for _, sym := range t.globals {
		if !sym.Value.Defined {
			out = append(out, sym)
		}
		for _, local := range sym.locals {
			if !local.Value.Defined {
				out = append(out, local)
			}
		}
	}
	return out
}

// Globals returns every global symbol, for the listing engine's ON-mode
// symbol dump.
func (t *Table) Globals() map[string]*Symbol {
	return t.globals
}

// AllLocals returns the local-label table nested under a given global
// symbol, for the listing engine's FULL-mode symbol dump.
func AllLocals(sym *Symbol) map[string]*Symbol {
	return sym.locals
}

// ResetForPass2 clears nothing (the table persists across passes by design)
// but marks every symbol as not-yet-referenced so pass 2's forward-reference
// bookkeeping starts fresh.
func (t *Table) ResetForPass2() {
	for _, sym := range t.globals {
		sym.Referenced = false
		for _, local := range sym.locals {
			local.Referenced = false
		}
	}
	t.current = nil
}
