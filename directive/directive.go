// Package directive implements the assembler's non-instruction statement
// handlers: data emission, origin/end control, conditionals, repeat blocks,
// include, listing controls, and symbol/CPU directives.
//
// Directives never see a *lexer.Cursor belonging to a specific package
// themselves owning pass state; instead they operate against a narrow
// Context the pass driver implements, the same way the target package keeps
// back-ends decoupled from the driver's concrete type.
package directive

import (
	"strings"

	"github.com/nivasm/vasm/errs"
	"github.com/nivasm/vasm/lexer"
	"github.com/nivasm/vasm/symtab"
	"github.com/nivasm/vasm/value"
)

// Context is the pass-driver surface a directive handler needs. The driver
// implements it once; every handler in this package is written against it.
type Context interface {
	Pass() int
	PC() uint32
	Radix() int
	SetRadix(n int)
	Symbols() *symtab.Table
	CurrentLabel() *symtab.Symbol

	// Eval evaluates the expression starting at cur's current position.
	Eval(cur *lexer.Cursor, pos errs.Position) (value.Value, error)

	EmitByte(b byte) error
	EmitWordLE(w uint16) error
	EmitDwordLE(d uint32) error
	EmitString(s string, length int) error

	SetOrigin(addr uint32) error
	SetEnd(addr uint32, hasAddr bool)

	SetCPU(name string) error
	DefineVar(name string, v value.Value, pos errs.Position) error

	Include(path string, pos errs.Position) error

	PushConditional(active bool) error
	ElseConditional() error
	PopConditional() error
	ConditionalActive() bool

	// IfndefMemo records (pass 1) or replays (pass 2) the boolean decision
	// an IFNDEF computed at a given source position, so the body creating
	// the symbol in pass 1 doesn't flip the branch in pass 2.
	IfndefMemo(pos errs.Position, computed bool) bool

	PushRepeat(count int64, pos errs.Position) error
	// RepeatIterate is called at ENDREP; it returns true if the repeat body
	// should run again (and repositions the source pointer itself).
	RepeatIterate() (bool, error)

	SetTitle(s string)
	SetSubtitle(s string)
	SetPage(rows, cols int)
	SetWidth(n int)
	SetSymMode(mode string)

	Echo(s string)
	Warn(s string)
}

// Handler executes one directive's argument text, which starts immediately
// after the directive name has been consumed from cur.
type Handler func(ctx Context, cur *lexer.Cursor, pos errs.Position) error

var table map[string]Handler

func init() {
	table = map[string]Handler{
		"BYTE": byteDirective, "DB": byteDirective, "DATA": byteDirective,
		"WORD": wordDirective, "DW": wordDirective,
		"DWORD": dwordDirective, "DL": dwordDirective,
		"ASCII": asciiDirective, "STR": asciiDirective, "STRING": asciiDirective,
		"ASCIZ": ascizDirective, "ASCIIZ": ascizDirective,
		"FILL": fillDirective, "DS": fillDirective,
		"BLOB": blobDirective, "BINARY": blobDirective,
		"ALIGN": alignDirective,

		"ORG":    orgDirective,
		"END":    endDirective,
		"NOFILL": nofillDirective,

		"IF": ifDirective, "IFN": ifnDirective,
		"IFDEF": ifdefDirective, "IFNDEF": ifndefDirective,
		"ELSE":  elseDirective,
		"ENDIF": endifDirective, "FI": endifDirective,

		"REPEAT": repeatDirective,
		"ENDREP": endrepDirective,

		"INCLUDE": includeDirective,

		"TITLE":  titleDirective,
		"SUBTTL": subttlDirective, "STITLE": subttlDirective,
		"PAGE":  pageDirective,
		"WIDTH": widthDirective,
		"SYMS":  symsDirective,
		"ECHO":  echoDirective,
		"WARN":  warnDirective,
		"ERROR": errorDirective,
		"ASSERT": assertDirective,

		"EQU":    equDirective,
		"DEFINE": defineDirective,
		"CPU":    cpuDirective,
		"RADIX":  radixDirective,
	}
}

// Lookup returns the handler for a directive name, matched case-insensitively.
func Lookup(name string) (Handler, bool) {
	h, ok := table[strings.ToUpper(name)]
	return h, ok
}

// IsDirective reports whether name is a recognized directive keyword.
func IsDirective(name string) bool {
	_, ok := table[strings.ToUpper(name)]
	return ok
}

func expectComma(cur *lexer.Cursor, pos errs.Position) error {
	cur.SkipWhite()
	if cur.Peek() != ',' {
		return errs.New(pos, errs.CommaExpected, "")
	}
	cur.Advance()
	cur.SkipWhite()
	return nil
}

// --- data emission -----------------------------------------------------

func byteDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	for {
		cur.SkipWhite()
		if s, quoted, err := cur.StringLiteral(false, pos); err == nil && quoted {
			for i := 0; i < len(s); i++ {
				if err := ctx.EmitByte(s[i]); err != nil {
					return err
				}
			}
		} else {
			v, err := ctx.Eval(cur, pos)
			if err != nil {
				return err
			}
			b, err := v.ToByte(true)
			if err != nil {
				return err
			}
			if err := ctx.EmitByte(b); err != nil {
				return err
			}
		}
		cur.SkipWhite()
		if cur.Peek() != ',' {
			break
		}
		cur.Advance()
	}
	return nil
}

func wordDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	for {
		v, err := ctx.Eval(cur, pos)
		if err != nil {
			return err
		}
		w, err := v.ToWord(true)
		if err != nil {
			return err
		}
		if err := ctx.EmitWordLE(w); err != nil {
			return err
		}
		cur.SkipWhite()
		if cur.Peek() != ',' {
			break
		}
		cur.Advance()
		cur.SkipWhite()
	}
	return nil
}

func dwordDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	for {
		v, err := ctx.Eval(cur, pos)
		if err != nil {
			return err
		}
		if err := ctx.EmitDwordLE(v.Content); err != nil {
			return err
		}
		cur.SkipWhite()
		if cur.Peek() != ',' {
			break
		}
		cur.Advance()
		cur.SkipWhite()
	}
	return nil
}

func asciiDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	s, quoted, err := cur.StringLiteral(true, pos)
	if err != nil {
		return err
	}
	if !quoted {
		return errs.New(pos, errs.StringExpected, "")
	}
	return ctx.EmitString(s, 0)
}

func ascizDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	s, quoted, err := cur.StringLiteral(true, pos)
	if err != nil {
		return err
	}
	if !quoted {
		return errs.New(pos, errs.StringExpected, "")
	}
	if err := ctx.EmitString(s, 0); err != nil {
		return err
	}
	return ctx.EmitByte(0)
}

func fillDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	count, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	var fill byte
	cur.SkipWhite()
	if cur.Peek() == ',' {
		cur.Advance()
		cur.SkipWhite()
		fv, err := ctx.Eval(cur, pos)
		if err != nil {
			return err
		}
		fill, err = fv.ToByte(true)
		if err != nil {
			return err
		}
	}
	if !count.Defined {
		return errs.New(pos, errs.UndefinedValue, "FILL count")
	}
	for i := uint32(0); i < count.Content; i++ {
		if err := ctx.EmitByte(fill); err != nil {
			return err
		}
	}
	return nil
}

func blobDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	name, quoted, err := cur.StringLiteral(true, pos)
	if err != nil {
		return err
	}
	if !quoted {
		return errs.New(pos, errs.StringExpected, "")
	}
	data, err := blobReader(name)
	if err != nil {
		return errs.New(pos, errs.FileOpen, name)
	}

	skip, count := 0, len(data)
	cur.SkipWhite()
	if cur.Peek() == ',' {
		cur.Advance()
		cur.SkipWhite()
		v, err := ctx.Eval(cur, pos)
		if err != nil {
			return err
		}
		skip = int(v.Content)
		cur.SkipWhite()
		if cur.Peek() == ',' {
			cur.Advance()
			cur.SkipWhite()
			v, err := ctx.Eval(cur, pos)
			if err != nil {
				return err
			}
			count = int(v.Content)
		} else {
			count = len(data) - skip
		}
	}
	if skip < 0 || skip > len(data) || skip+count > len(data) || count < 0 {
		return errs.New(pos, errs.RangeError, name)
	}
	for _, b := range data[skip : skip+count] {
		if err := ctx.EmitByte(b); err != nil {
			return err
		}
	}
	return nil
}

// blobReader is overridable so tests can exercise BLOB without touching the
// filesystem.
var blobReader = defaultBlobReader

func alignDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	n := v.Content
	switch n {
	case 1, 2, 4, 8:
	default:
		return errs.New(pos, errs.InvalidValue, "ALIGN must be 1, 2, 4, or 8")
	}
	pc := ctx.PC()
	for pc%n != 0 {
		if err := ctx.EmitByte(0); err != nil {
			return err
		}
		pc++
	}
	return nil
}

// --- control -------------------------------------------------------------

func orgDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	if !v.Defined {
		return errs.New(pos, errs.UndefinedValue, "ORG")
	}
	return ctx.SetOrigin(v.Content)
}

func endDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	cur.SkipWhite()
	if cur.AtEOL() {
		ctx.SetEnd(0, false)
		return nil
	}
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	ctx.SetEnd(v.Content, true)
	return nil
}

func nofillDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	return nil // autofill is a global config toggle; directive recorded for listing only
}

// --- conditionals ----------------------------------------------------------

func ifDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	return ctx.PushConditional(v.Defined && v.Content != 0)
}

func ifnDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	return ctx.PushConditional(!(v.Defined && v.Content != 0))
}

func ifdefDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	name, err := cur.Ident(false, pos)
	if err != nil {
		return err
	}
	_, defined := ctx.Symbols().Lookup(name)
	return ctx.PushConditional(defined)
}

func ifndefDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	name, err := cur.Ident(false, pos)
	if err != nil {
		return err
	}
	_, defined := ctx.Symbols().Lookup(name)
	computed := !defined
	decision := ctx.IfndefMemo(pos, computed)
	return ctx.PushConditional(decision)
}

func elseDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	return ctx.ElseConditional()
}

func endifDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	return ctx.PopConditional()
}

// --- repeat ----------------------------------------------------------------

func repeatDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	return ctx.PushRepeat(int64(v.Content), pos)
}

func endrepDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	_, err := ctx.RepeatIterate()
	return err
}

// --- include -----------------------------------------------------------

func includeDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	name, quoted, err := cur.StringLiteral(true, pos)
	if err != nil {
		return err
	}
	if !quoted {
		return errs.New(pos, errs.StringExpected, "")
	}
	return ctx.Include(name, pos)
}

// --- listing ---------------------------------------------------------------

func titleDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	ctx.SetTitle(cur.RestOfLine())
	return nil
}

func subttlDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	ctx.SetSubtitle(cur.RestOfLine())
	return nil
}

func pageDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	cur.SkipWhite()
	if cur.AtEOL() {
		ctx.SetPage(0, 0)
		return nil
	}
	rows, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	cols := int64(0)
	cur.SkipWhite()
	if cur.Peek() == ',' {
		cur.Advance()
		cur.SkipWhite()
		v, err := ctx.Eval(cur, pos)
		if err != nil {
			return err
		}
		cols = int64(v.Content)
	}
	ctx.SetPage(int(rows.Content), int(cols))
	return nil
}

func widthDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	ctx.SetWidth(int(v.Content))
	return nil
}

func symsDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	mode, err := cur.Upcase(false, pos)
	if err != nil {
		return err
	}
	switch mode {
	case "OFF", "ON", "FULL":
		ctx.SetSymMode(mode)
		return nil
	default:
		return errs.New(pos, errs.InvalidValue, mode)
	}
}

func echoDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	if ctx.Pass() == 1 {
		ctx.Echo(cur.RestOfLine())
	}
	return nil
}

func warnDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	if ctx.Pass() == 2 {
		ctx.Warn(cur.RestOfLine())
	}
	return nil
}

func errorDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	return errs.New(pos, errs.User, cur.RestOfLine())
}

func assertDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	if !v.Defined || v.Content == 0 {
		return errs.New(pos, errs.AssertFailed, "")
	}
	return nil
}

// --- symbol / CPU ------------------------------------------------------

func equDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	label := ctx.CurrentLabel()
	if label == nil {
		return errs.New(pos, errs.LabelRequired, "EQU")
	}
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	_, err = ctx.Symbols().Define(label.Name, v, pos, symtab.KindEqu, ctx.Pass() == 1)
	return err
}

func defineDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	name, err := cur.Ident(false, pos)
	if err != nil {
		return err
	}
	v := value.FromByte(1)
	cur.SkipWhite()
	if cur.Peek() == '=' {
		cur.Advance()
		cur.SkipWhite()
		v, err = ctx.Eval(cur, pos)
		if err != nil {
			return err
		}
	}
	return ctx.DefineVar(name, v, pos)
}

func cpuDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	name, quoted, err := cur.StringLiteral(false, pos)
	if err != nil {
		return err
	}
	if !quoted {
		name, err = cur.Upcase(false, pos)
		if err != nil {
			return err
		}
	}
	return ctx.SetCPU(name)
}

func radixDirective(ctx Context, cur *lexer.Cursor, pos errs.Position) error {
	v, err := ctx.Eval(cur, pos)
	if err != nil {
		return err
	}
	switch v.Content {
	case 2, 8, 10, 16:
		ctx.SetRadix(int(v.Content))
		return nil
	default:
		return errs.New(pos, errs.InvalidValue, "RADIX must be 2, 8, 10, or 16")
	}
}
