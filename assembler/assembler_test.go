package assembler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nivasm/vasm/config"
	"github.com/nivasm/vasm/errs"
)

func assembleAndRead(t *testing.T, source string) (*Result, []byte) {
	t.Helper()
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "in.asm")
	if err := os.WriteFile(mainPath, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "out.bin")

	cfg := config.DefaultConfig()
	a := New(cfg)
	res := a.Run(Options{
		MainFile:   mainPath,
		OutputFile: outPath,
		Cfg:        cfg,
	})
	if !res.OK() {
		for _, e := range res.Errors {
			t.Logf("error: %v", e)
		}
		return res, nil
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	return res, data
}

func TestScenarioS1BasicAssembly(t *testing.T) {
	src := `.cpu "6502"
.org $C000
start: lda #$41
       sta $0400
       rts
`
	res, data := assembleAndRead(t, src)
	if !res.OK() {
		t.Fatalf("assembly failed")
	}
	want := []byte{0xA9, 0x41, 0x8D, 0x00, 0x04, 0x60}
	if len(data) != len(want) {
		t.Fatalf("got % X, want % X", data, want)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("byte %d: got %02X want %02X", i, data[i], want[i])
		}
	}
	sym, ok := res.Symbols.Lookup("start")
	if !ok || sym.Value.Content != 0xC000 {
		t.Errorf("expected start=0xC000, got %+v ok=%v", sym, ok)
	}
}

func TestScenarioS2ForwardReference(t *testing.T) {
	src := `.cpu "6502"
.org 0
jmp later
later: nop
`
	_, data := assembleAndRead(t, src)
	want := []byte{0x4C, 0x03, 0x00, 0xEA}
	if len(data) != len(want) {
		t.Fatalf("got % X, want % X", data, want)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("byte %d: got %02X want %02X", i, data[i], want[i])
		}
	}
}

func TestScenarioS4Conditional(t *testing.T) {
	src := `.cpu "6502"
.org 0
.define DBG=0
.ifdef DBG
.byte 1
.else
.byte 2
.endif
`
	_, data := assembleAndRead(t, src)
	if len(data) != 1 || data[0] != 0x01 {
		t.Fatalf("got % X, want [01]", data)
	}
}

func TestScenarioS5Repeat(t *testing.T) {
	src := `.cpu "6502"
.org 0
.repeat 3
 .byte $AA
.endrep
`
	_, data := assembleAndRead(t, src)
	want := []byte{0xAA, 0xAA, 0xAA}
	if len(data) != len(want) {
		t.Fatalf("got % X, want % X", data, want)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("byte %d: got %02X want %02X", i, data[i], want[i])
		}
	}
}

func TestScenarioS6Macro(t *testing.T) {
	src := `.cpu "6502"
put MACRO a,b
  .byte a
  .byte b
ENDM
   .org 0
   put $11,$22
`
	_, data := assembleAndRead(t, src)
	want := []byte{0x11, 0x22}
	if len(data) != len(want) {
		t.Fatalf("got % X, want % X", data, want)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("byte %d: got %02X want %02X", i, data[i], want[i])
		}
	}
}

func TestUndefinedSymbolIsError(t *testing.T) {
	src := `.cpu "6502"
.org 0
lda #nope
`
	res, _ := assembleAndRead(t, src)
	if res.OK() {
		t.Fatal("expected an undefined-symbol error")
	}
}

func TestEquDoesNotClashWithLabelAutoDefine(t *testing.T) {
	src := `.cpu "6502"
.org $0200
limit EQU $10
start: lda #limit
`
	res, data := assembleAndRead(t, src)
	if !res.OK() {
		t.Fatalf("assembly failed")
	}
	if len(data) != 2 || data[0] != 0xA9 || data[1] != 0x10 {
		t.Errorf("got % X, want [A9 10]", data)
	}
	sym, ok := res.Symbols.Lookup("limit")
	if !ok || sym.Value.Content != 0x10 {
		t.Errorf("expected limit=0x10, got %+v ok=%v", sym, ok)
	}
}

func TestUnrecognizedDottedDirectiveIsError(t *testing.T) {
	src := `.cpu "6502"
.org 0
.foobar 1
`
	res, _ := assembleAndRead(t, src)
	if res.OK() {
		t.Fatal("expected an unknown-directive error, not a silent label definition")
	}
	if res.Errors[0].Kind != errs.UnknownDirective {
		t.Errorf("expected UnknownDirective, got %v", res.Errors[0].Kind)
	}
}

func TestLocalLabelScopedUnderGlobal(t *testing.T) {
	src := `.cpu "6502"
.org 0
first: lda #1
.loop: sta $10
       bne .loop
second: lda #2
.loop: sta $20
       bne .loop
`
	res, _ := assembleAndRead(t, src)
	if !res.OK() {
		t.Fatalf("assembly failed")
	}
}
