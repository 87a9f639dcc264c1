package symtab

import (
	"testing"

	"github.com/nivasm/vasm/errs"
	"github.com/nivasm/vasm/value"
)

func TestDefineAndLookup(t *testing.T) {
	tab := New(true)
	pos := errs.Position{File: "f.asm", Line: 1}

	if _, err := tab.Define("START", value.FromWord(0x8000), pos, KindLabel, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sym, ok := tab.Lookup("START")
	if !ok {
		t.Fatal("expected START to be found")
	}
	if sym.Value.Content != 0x8000 {
		t.Errorf("got 0x%X", sym.Value.Content)
	}
}

func TestForwardReferenceThenDefine(t *testing.T) {
	tab := New(true)
	pos := errs.Position{File: "f.asm", Line: 1}

	sym, err := tab.Reference("LOOP", pos)
	if err != nil {
		t.Fatal(err)
	}
	if sym.Value.Defined {
		t.Error("expected forward reference to be undefined")
	}

	if _, err := tab.Define("LOOP", value.FromWord(0x9000), pos, KindLabel, true); err != nil {
		t.Fatalf("unexpected error defining forward-referenced symbol: %v", err)
	}
	sym2, _ := tab.Lookup("LOOP")
	if !sym2.Value.Defined || sym2.Value.Content != 0x9000 {
		t.Error("expected LOOP resolved to 0x9000")
	}
}

func TestRedefinitionPass1Fails(t *testing.T) {
	tab := New(true)
	pos := errs.Position{File: "f.asm", Line: 1}

	if _, err := tab.Define("X", value.FromByte(1), pos, KindEqu, true); err != nil {
		t.Fatal(err)
	}
	_, err := tab.Define("X", value.FromByte(2), pos, KindEqu, true)
	if err == nil {
		t.Error("expected illegal redefinition error in pass 1")
	}
}

func TestLocalLabelRequiresGlobal(t *testing.T) {
	tab := New(true)
	pos := errs.Position{File: "f.asm", Line: 1}

	_, err := tab.Define(".loop", value.FromWord(1), pos, KindLabel, true)
	if err == nil {
		t.Error("expected error defining local label with no enclosing global")
	}

	if _, err := tab.Define("MAIN", value.FromWord(0x8000), pos, KindLabel, true); err != nil {
		t.Fatal(err)
	}
	if _, err := tab.Define(".loop", value.FromWord(0x8002), pos, KindLabel, true); err != nil {
		t.Errorf("expected local label to succeed under enclosing global: %v", err)
	}
}

func TestPass2ToleratesMatchingRedefinition(t *testing.T) {
	tab := New(true)
	pos := errs.Position{File: "f.asm", Line: 1}

	if _, err := tab.Define("START", value.Value{Content: 0x8000, Width: value.Word, Defined: true}, pos, KindLabel, true); err != nil {
		t.Fatal(err)
	}
	if _, err := tab.Define("START", value.Value{Content: 0x8000, Width: value.Word, Defined: true}, pos, KindLabel, false); err != nil {
		t.Errorf("expected pass 2 redefinition with identical value to succeed: %v", err)
	}
}

func TestPass2RejectsMismatchedRedefinition(t *testing.T) {
	tab := New(true)
	pos := errs.Position{File: "f.asm", Line: 1}

	if _, err := tab.Define("START", value.Value{Content: 0x8000, Width: value.Word, Defined: true}, pos, KindLabel, true); err != nil {
		t.Fatal(err)
	}
	_, err := tab.Define("START", value.Value{Content: 0x8002, Width: value.Word, Defined: true}, pos, KindLabel, false)
	if err == nil {
		t.Error("expected pass 2 redefinition with a different value to fail")
	}
}

func TestUndefinedSymbols(t *testing.T) {
	tab := New(true)
	pos := errs.Position{File: "f.asm", Line: 1}
	if _, err := tab.Reference("MISSING", pos); err != nil {
		t.Fatal(err)
	}
	undef := tab.UndefinedSymbols()
	if len(undef) != 1 || undef[0].Name != "MISSING" {
		t.Errorf("expected one undefined symbol MISSING, got %v", undef)
	}
}
