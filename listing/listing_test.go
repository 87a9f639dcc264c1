package listing

import (
	"os"
	"strings"
	"testing"

	"github.com/nivasm/vasm/errs"
	"github.com/nivasm/vasm/symtab"
	"github.com/nivasm/vasm/value"
)

func TestEmitLineFormat(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.lst"
	l, err := Open(path, 66, 80)
	if err != nil {
		t.Fatal(err)
	}
	l.SetSource("demo.asm")
	l.Emit(Line{LineNumber: 1, PC: 0xC000, Bytes: []byte{0xA9, 0x41}, SourceText: "lda #$41", Active: true})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "00001") || !strings.Contains(out, "C000") || !strings.Contains(out, "A9 41") {
		t.Errorf("unexpected listing output:\n%s", out)
	}
}

func TestWrapsOverflowBytes(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir+"/out.lst", 66, 80)
	if err != nil {
		t.Fatal(err)
	}
	l.SetSource("demo.asm")
	l.Emit(Line{LineNumber: 1, PC: 0x10, Bytes: []byte{1, 2, 3, 4, 5, 6}, SourceText: "byte 1,2,3,4,5,6", Active: true})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(dir + "/out.lst")
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	found := 0
	for _, ln := range lines {
		if strings.Contains(ln, "05 06") {
			found++
		}
	}
	if found != 1 {
		t.Errorf("expected a continuation line with overflow bytes, got:\n%s", data)
	}
}

func TestDumpSymbolsOnMode(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir+"/out.lst", 66, 80)
	if err != nil {
		t.Fatal(err)
	}
	l.SetSymbolMode(SymOn)
	tab := symtab.New(true)
	tab.SetCurrentGlobal(nil)
	_, _ = tab.Define("START", value.FromWord(0xC000), errs.Position{File: "t", Line: 1}, symtab.KindLabel, true)
	l.DumpSymbols(tab)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(dir + "/out.lst")
	if !strings.Contains(string(data), "START") {
		t.Errorf("expected symbol dump to contain START, got:\n%s", data)
	}
}

func TestParseSymbolMode(t *testing.T) {
	if ParseSymbolMode("full") != SymFull {
		t.Error("expected full")
	}
	if ParseSymbolMode("OFF") != SymOff {
		t.Error("expected off")
	}
	if ParseSymbolMode("on") != SymOn {
		t.Error("expected on")
	}
}
