// Package assembler implements the two-pass orchestration loop: it owns the
// shared program state (pc, radix, symbol table, conditional/repeat stacks,
// macro table, file registry) and drives the source buffer through pass 1
// (symbol/size discovery) and pass 2 (byte emission), wiring in the
// directive engine and the selected CPU back-end.
package assembler

import (
	"fmt"
	"strings"

	"github.com/nivasm/vasm/config"
	"github.com/nivasm/vasm/directive"
	"github.com/nivasm/vasm/errs"
	"github.com/nivasm/vasm/expr"
	"github.com/nivasm/vasm/lexer"
	"github.com/nivasm/vasm/listing"
	"github.com/nivasm/vasm/macro"
	"github.com/nivasm/vasm/objfile"
	"github.com/nivasm/vasm/source"
	"github.com/nivasm/vasm/symtab"
	"github.com/nivasm/vasm/target"
	"github.com/nivasm/vasm/value"

	_ "github.com/nivasm/vasm/target/mos6502" // registers the 6502-family back-ends
)

// Options configures one assembly run, gathered from CLI flags and the
// loaded Config.
type Options struct {
	MainFile    string
	IncludeDirs []string
	Defines     map[string]string // -D sym[=val]
	CPU         string            // -p, overrides Assembly.DefaultCPU
	OutputFile  string
	ListingFile string
	Cfg         *config.Config
}

// Result summarizes a completed (or failed) assembly run.
type Result struct {
	Errors       []*errs.Error
	Warnings     []errs.Warning
	BytesEmitted uint32
	Symbols      *symtab.Table
}

func (r *Result) OK() bool { return len(r.Errors) == 0 }

type repeatFrame struct {
	returnPos int
	count     int64
}

// Assembler holds all state shared across both passes of one assembly run.
type Assembler struct {
	cfg *config.Config

	src    *source.Buffer
	syms   *symtab.Table
	macros *macro.Table
	cpu    target.Target

	encoder *objfile.Encoder
	lst     *listing.Listing

	pc       uint32
	radix    int
	pass     int
	foundEnd bool

	condStack   []bool
	ifndefMemo  map[string]bool
	repeatStack []repeatFrame

	lineCounter     int
	lineStartOffset int
	errorsList      []*errs.Error
	warnings        []errs.Warning

	lastLabel *symtab.Symbol

	jumpTo       int
	hasJump      bool
	bodyStart    int
	includeStack []int
	lineBytes    []byte

	definingMacro bool
	macroName     string
	macroParams   []string
	macroBody     []string
	macroDefLine  errs.Position

	quiet bool
}

// New creates an Assembler using cfg's defaults.
func New(cfg *config.Config) *Assembler {
	a := &Assembler{
		cfg:        cfg,
		syms:       symtab.New(cfg.Assembly.CaseSensitive),
		macros:     macro.New(),
		radix:      cfg.Assembly.DefaultRadix,
		ifndefMemo: map[string]bool{},
		quiet:      cfg.Diagnostics.Quiet,
	}
	return a
}

// Run performs the full two-pass assembly described by opts.
func (a *Assembler) Run(opts Options) *Result {
	a.src = source.New(opts.IncludeDirs)
	if err := a.src.LoadMain(opts.MainFile); err != nil {
		return &Result{Errors: []*errs.Error{asErr(err)}}
	}

	cpuName := opts.CPU
	if cpuName == "" {
		cpuName = a.cfg.Assembly.DefaultCPU
	}
	if cpuName != "" {
		if t, ok := target.Lookup(cpuName); ok {
			if err := a.activateCPU(t); err != nil {
				return &Result{Errors: []*errs.Error{asErr(err)}}
			}
		} else {
			return &Result{Errors: []*errs.Error{errs.New(errs.Position{}, errs.UnknownCPU, cpuName)}}
		}
	}

	if err := a.definePredefined(opts.Defines); err != nil {
		return &Result{Errors: []*errs.Error{asErr(err)}}
	}

	if err := a.runPass(1); err != nil {
		return a.result()
	}
	if len(a.errorsList) > 0 {
		return a.result()
	}

	for _, sym := range a.syms.UndefinedSymbols() {
		a.errorsList = append(a.errorsList, errs.New(sym.Pos, errs.UndefinedValue, sym.Name))
	}
	if len(a.errorsList) > 0 {
		return a.result()
	}

	format, outName, err := objfile.SelectFormat(opts.OutputFile)
	if err != nil {
		return &Result{Errors: []*errs.Error{asErr(err)}}
	}
	enc, err := objfile.Open(outName, format, a.cfg.Assembly.Autofill, a.cfg.Assembly.AutofillByte)
	if err != nil {
		return &Result{Errors: []*errs.Error{asErr(err)}}
	}
	a.encoder = enc

	lst, err := listing.Open(opts.ListingFile, a.cfg.Listing.PageLength, a.cfg.Listing.PageWidth)
	if err != nil {
		return &Result{Errors: []*errs.Error{asErr(err)}}
	}
	a.lst = lst
	a.lst.SetSymbolMode(listing.ParseSymbolMode(a.cfg.Listing.SymbolMode))

	a.syms.ResetForPass2()
	runErr := a.runPass(2)

	keep := runErr == nil && len(a.errorsList) == 0
	_ = a.encoder.Finish(2)
	_ = a.encoder.Close(keep)
	if a.lst != nil {
		if keep {
			a.lst.DumpSymbols(a.syms)
		}
		_ = a.lst.Close()
	}

	return a.result()
}

func (a *Assembler) result() *Result {
	return &Result{
		Errors:       a.errorsList,
		Warnings:     a.warnings,
		BytesEmitted: a.bytesEmitted(),
		Symbols:      a.syms,
	}
}

func (a *Assembler) bytesEmitted() uint32 {
	if a.encoder == nil {
		return 0
	}
	return a.encoder.TotalBytes()
}

func asErr(err error) *errs.Error {
	if e, ok := err.(*errs.Error); ok {
		return e
	}
	return errs.New(errs.Position{}, errs.FileOpen, err.Error())
}

func (a *Assembler) activateCPU(t target.Target) error {
	a.cpu = t
	name := strings.ToUpper(t.Name())
	// Tolerant define: the same CPU may be selected by the config/-p default
	// and again by a CPU directive, giving _P<name> the same value each time.
	_, err := a.syms.Define("_P"+name, value.FromByte(1), errs.Position{}, symtab.KindVariable, false)
	return err
}

func (a *Assembler) definePredefined(defines map[string]string) error {
	if _, err := a.syms.Define("__VASM__", value.FromByte(1), errs.Position{}, symtab.KindVariable, true); err != nil {
		return err
	}
	if _, err := a.syms.Define("__VASM_VER__", value.FromWord(0x0100), errs.Position{}, symtab.KindVariable, true); err != nil {
		return err
	}
	for name, raw := range defines {
		v := value.FromByte(1)
		if raw != "" {
			c := lexer.NewCursor([]byte(raw), 0)
			p := expr.New(c, a, errs.Position{File: "-D", Line: 0}, true)
			ev, err := p.Eval()
			if err != nil {
				return err
			}
			v = ev
		}
		if _, err := a.syms.Define(name, v, errs.Position{File: "-D"}, symtab.KindVariable, true); err != nil {
			return err
		}
	}
	return nil
}

// --- expr.Env --------------------------------------------------------------

func (a *Assembler) PC() uint32               { return a.pc }
func (a *Assembler) Symbols() *symtab.Table   { return a.syms }
func (a *Assembler) Radix() int               { return a.radix }
func (a *Assembler) SetRadix(n int)           { a.radix = n }
func (a *Assembler) Pass() int                { return a.pass }
func (a *Assembler) CurrentLabel() *symtab.Symbol {
	// the symbol table tracks its own "current global" pointer; directives
	// that need it (EQU) look it up through the last label defined this line.
	return a.lastLabel
}

func (a *Assembler) SumBytes(start, end uint32) (uint32, error) {
	if a.encoder == nil {
		return 0, nil
	}
	return a.encoder.SumBytes(start, end)
}

// --- target.Assembler / directive.Context ------------------------------

// EmitByte advances pc by one and hands the byte to the output encoder;
// every other Emit* helper funnels through it. Outside pass 2,
// dispatchStatement also advances pc by a target instruction's size.
func (a *Assembler) EmitByte(b byte) error {
	a.pc++
	if a.pass == 2 {
		a.lineBytes = append(a.lineBytes, b)
	}
	if a.encoder != nil {
		return a.encoder.EmitByte(b, a.pass)
	}
	return nil
}

func (a *Assembler) EvalExpr(cur target.LineSource, pos errs.Position, pass1 bool) (value.Value, error) {
	c, ok := cur.(*lexer.Cursor)
	if !ok {
		return value.Value{}, fmt.Errorf("internal: EvalExpr called with non-cursor LineSource")
	}
	p := expr.New(c, a, pos, pass1)
	return p.Eval()
}

// --- directive.Context -------------------------------------------------

func (a *Assembler) Eval(cur *lexer.Cursor, pos errs.Position) (value.Value, error) {
	p := expr.New(cur, a, pos, a.pass == 1)
	return p.Eval()
}

func (a *Assembler) EmitWordLE(w uint16) error {
	if err := a.EmitByte(byte(w)); err != nil {
		return err
	}
	return a.EmitByte(byte(w >> 8))
}

func (a *Assembler) EmitDwordLE(d uint32) error {
	for i := 0; i < 4; i++ {
		if err := a.EmitByte(byte(d >> (8 * i))); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) EmitString(s string, length int) error {
	if length <= 0 {
		length = len(s)
	}
	for i := 0; i < length; i++ {
		var b byte
		if i < len(s) {
			b = s[i]
		}
		if err := a.EmitByte(b); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) SetOrigin(addr uint32) error {
	if a.encoder != nil {
		if err := a.encoder.SetAddress(addr, a.pass); err != nil {
			return err
		}
	}
	a.pc = addr
	return nil
}

func (a *Assembler) SetEnd(addr uint32, hasAddr bool) {
	a.foundEnd = true
	if hasAddr && a.encoder != nil {
		a.encoder.SetStart(addr, a.pass)
	}
}

func (a *Assembler) SetCPU(name string) error {
	t, ok := target.Lookup(name)
	if !ok {
		return errs.New(errs.Position{}, errs.UnknownCPU, name)
	}
	return a.activateCPU(t)
}

func (a *Assembler) DefineVar(name string, v value.Value, pos errs.Position) error {
	_, err := a.syms.Define(name, v, pos, symtab.KindVariable, a.pass == 1)
	return err
}

// Include appends the named file's content to the end of the source buffer
// and arranges for the scan loop to jump into it immediately, resuming at
// the line following this INCLUDE once the included file's EOF marker is
// reached (see includeStack in pass.go).
func (a *Assembler) Include(path string, pos errs.Position) error {
	startOffset := len(a.src.Bytes)
	if err := a.src.Include(path, pos); err != nil {
		return err
	}
	a.includeStack = append(a.includeStack, a.bodyStart)
	a.jumpTo = startOffset
	a.hasJump = true
	return nil
}

func (a *Assembler) PushConditional(active bool) error {
	if len(a.condStack) >= 16 {
		return errs.New(errs.Position{}, errs.IfNestingTooDeep, "")
	}
	a.condStack = append(a.condStack, active)
	return nil
}

func (a *Assembler) ElseConditional() error {
	n := len(a.condStack)
	if n == 0 {
		return errs.New(errs.Position{}, errs.ElseWithoutIf, "")
	}
	a.condStack[n-1] = !a.condStack[n-1]
	return nil
}

func (a *Assembler) PopConditional() error {
	n := len(a.condStack)
	if n == 0 {
		return errs.New(errs.Position{}, errs.EndifWithoutIf, "")
	}
	a.condStack = a.condStack[:n-1]
	return nil
}

func (a *Assembler) ConditionalActive() bool {
	for _, v := range a.condStack {
		if !v {
			return false
		}
	}
	return true
}

func (a *Assembler) IfndefMemo(pos errs.Position, computed bool) bool {
	key := pos.String()
	if a.pass == 1 {
		a.ifndefMemo[key] = computed
		return computed
	}
	if v, ok := a.ifndefMemo[key]; ok {
		return v
	}
	return computed
}

func (a *Assembler) PushRepeat(count int64, pos errs.Position) error {
	if len(a.repeatStack) >= 16 {
		return errs.New(pos, errs.TooManyRepeatLevels, "")
	}
	a.repeatStack = append(a.repeatStack, repeatFrame{returnPos: a.bodyStart, count: count})
	return nil
}

func (a *Assembler) RepeatIterate() (bool, error) {
	n := len(a.repeatStack)
	if n == 0 {
		return false, errs.New(errs.Position{}, errs.EndrepWithoutRepeat, "")
	}
	top := &a.repeatStack[n-1]
	top.count--
	if top.count > 0 {
		a.jumpTo = top.returnPos
		a.hasJump = true
		return true, nil
	}
	a.repeatStack = a.repeatStack[:n-1]
	return false, nil
}

func (a *Assembler) SetTitle(s string) {
	if a.lst != nil {
		a.lst.SetTitle(s)
	}
}
func (a *Assembler) SetSubtitle(s string) {
	if a.lst != nil {
		a.lst.SetSubtitle(s)
	}
}
func (a *Assembler) SetPage(rows, cols int) {
	if a.lst != nil {
		a.lst.SetPage(rows, cols)
	}
}
func (a *Assembler) SetWidth(n int) {
	if a.lst != nil {
		a.lst.SetWidth(n)
	}
}
func (a *Assembler) SetSymMode(mode string) {
	if a.lst != nil {
		a.lst.SetSymbolMode(listing.ParseSymbolMode(mode))
	}
}

func (a *Assembler) Echo(s string) {
	if a.pass == 1 {
		fmt.Println(s)
	}
}
func (a *Assembler) Warn(s string) {
	pos := a.src.PositionAt(a.lineStartOffset)
	a.warnings = append(a.warnings, errs.Warning{Pos: pos, Message: s})
	if !a.quiet {
		fmt.Println(pos.String() + ": warning: " + s)
	}
}

var _ target.Assembler = (*Assembler)(nil)
var _ expr.Env = (*Assembler)(nil)
var _ directive.Context = (*Assembler)(nil)
