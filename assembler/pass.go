package assembler

import (
	"strings"

	"github.com/nivasm/vasm/directive"
	"github.com/nivasm/vasm/errs"
	"github.com/nivasm/vasm/lexer"
	"github.com/nivasm/vasm/listing"
	"github.com/nivasm/vasm/macro"
	"github.com/nivasm/vasm/source"
	"github.com/nivasm/vasm/symtab"
	"github.com/nivasm/vasm/value"
)

// runPass scans the whole source buffer once, dispatching each statement.
// Pass 1 discovers symbol values and instruction sizes, tolerating forward
// references; pass 2 requires every symbol resolved and, when an output
// encoder and listing are attached, emits bytes and listing lines.
func (a *Assembler) runPass(pass int) error {
	a.pass = pass
	a.pc = 0
	a.foundEnd = false
	a.condStack = nil
	a.repeatStack = nil
	a.includeStack = nil
	a.lastLabel = nil
	a.lineCounter = 0
	a.macros.Reset()
	if pass == 1 {
		a.errorsList = nil
	}

	buf := a.src.Bytes
	pos := 0
	skippingFile := false

	for pos < len(buf) {
		if buf[pos] == source.EOFByte {
			if len(a.includeStack) > 0 {
				n := len(a.includeStack)
				pos = a.includeStack[n-1]
				a.includeStack = a.includeStack[:n-1]
				skippingFile = false
				continue
			}
			break
		}
		if skippingFile {
			pos++
			continue
		}

		lineEnd := pos
		for lineEnd < len(buf) && !lexer.IsEOLByte(buf[lineEnd]) {
			lineEnd++
		}
		nextPos := lineEnd
		if nextPos < len(buf) && buf[nextPos] == '\n' {
			nextPos++
		}

		a.bodyStart = nextPos
		a.lineStartOffset = pos
		a.hasJump = false
		a.lineBytes = nil

		srcPos := a.src.PositionAt(pos)
		c := lexer.NewCursor(buf, pos)
		rawText := c.RestOfLine()
		wasActive := a.ConditionalActive()
		startPC := a.pc
		a.lineCounter++

		wasFoundEnd := a.foundEnd
		err := a.dispatchStatement(c, srcPos)
		if err != nil {
			a.errorsList = append(a.errorsList, toAssemblerErr(err, srcPos))
		}

		if a.pass == 2 && a.lst != nil {
			a.lst.Emit(listing.Line{
				LineNumber: a.lineCounter,
				PC:         startPC,
				Bytes:      a.lineBytes,
				SourceText: rawText,
				Active:     wasActive,
			})
		}

		if !wasFoundEnd && a.foundEnd {
			skippingFile = true
		}

		if a.hasJump {
			// INCLUDE may have appended to the source buffer.
			buf = a.src.Bytes
			pos = a.jumpTo
			a.hasJump = false
			skippingFile = false
			continue
		}
		pos = nextPos
	}

	return nil
}

func toAssemblerErr(err error, pos errs.Position) *errs.Error {
	if e, ok := err.(*errs.Error); ok {
		return e
	}
	return errs.New(pos, errs.IllegalStatement, err.Error())
}

func isIdentLeadChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '.' || b == '_'
}

// dispatchStatement parses and executes exactly one statement: an optional
// label, then a directive, macro invocation, or target mnemonic.
func (a *Assembler) dispatchStatement(c *lexer.Cursor, pos errs.Position) error {
	if a.definingMacro {
		raw := c.RestOfLine()
		if strings.EqualFold(strings.TrimSpace(raw), "ENDM") {
			a.macros.Define(a.macroName, a.macroParams, a.macroBody, a.macroDefLine)
			a.definingMacro = false
			return nil
		}
		a.macroBody = append(a.macroBody, raw)
		return nil
	}

	c.SkipWhite()
	if c.AtEOL() || c.Peek() == ';' {
		return nil
	}

	active := a.ConditionalActive()

	// "*=e" / ".=e" is shorthand for ORG e.
	if (c.Peek() == '*' || c.Peek() == '.') && c.PeekAt(1) == '=' {
		c.Advance()
		c.Advance()
		c.SkipWhite()
		if !active {
			return nil
		}
		v, err := a.Eval(c, pos)
		if err != nil {
			return err
		}
		if !v.Defined {
			return errs.New(pos, errs.UndefinedValue, "ORG")
		}
		return a.SetOrigin(v.Content)
	}

	if !isIdentLeadChar(c.Peek()) {
		return errs.New(pos, errs.StatementExpected, "")
	}

	tok, err := c.Ident(false, pos)
	if err != nil {
		return err
	}

	// "sym = e" is shorthand for "sym EQU e", regardless of what tok reads
	// like as a keyword.
	afterTok := c.Pos
	c.SkipWhite()
	if c.Peek() == '=' && c.PeekAt(1) != '=' {
		c.Advance()
		c.SkipWhite()
		if !active {
			return nil
		}
		v, err := a.Eval(c, pos)
		if err != nil {
			return err
		}
		sym, err := a.syms.Define(tok, v, pos, symtab.KindEqu, a.pass == 1)
		if err != nil {
			return err
		}
		a.lastLabel = sym
		return nil
	}
	c.Pos = afterTok

	// A dot-prefixed token directly followed by ':' is a local label.
	var name string
	isLabel := strings.HasPrefix(tok, ".") && c.Peek() == ':'
	if !isLabel {
		name, isLabel, err = a.classify(tok, pos)
		if err != nil {
			return err
		}
	}

	var label string
	hasLabel := false
	if isLabel {
		label = tok
		hasLabel = true
		if c.Peek() == ':' {
			c.Advance()
		}
		c.SkipWhite()
		if c.AtEOL() || c.Peek() == ';' {
			if active {
				if err := a.defineLabelHere(label, pos); err != nil {
					return err
				}
			}
			return nil
		}
		tok, err = c.Ident(false, pos)
		if err != nil {
			return err
		}
		name, _, err = a.classify(tok, pos)
		if err != nil {
			return err
		}
	}

	// A label immediately followed by EQU names a value, not an address, and
	// one followed by MACRO names the macro being defined, not a code
	// address — neither auto-defines against the current pc.
	if hasLabel && active {
		switch name {
		case "EQU", "MACRO":
			a.lastLabel = &symtab.Symbol{Name: label}
		default:
			if err := a.defineLabelHere(label, pos); err != nil {
				return err
			}
		}
	}

	if !active {
		switch name {
		case "IF", "IFN", "IFDEF", "IFNDEF":
			return a.PushConditional(false)
		case "ELSE":
			return a.ElseConditional()
		case "ENDIF", "FI":
			return a.PopConditional()
		default:
			return nil
		}
	}

	if name == "MACRO" {
		return a.beginMacroDef(label, c, pos)
	}
	if name == "ENDM" {
		return errs.New(pos, errs.EndmBeforeMacro, "")
	}

	if h, ok := directive.Lookup(name); ok {
		return h(a, c, pos)
	}

	if m, ok := a.macros.Lookup(name); ok {
		return a.invokeMacro(m, c, pos)
	}

	if a.cpu == nil {
		return errs.New(pos, errs.NoCPU, name)
	}
	size, err := a.cpu.Assemble(name, c, a, pos, a.pass)
	if err != nil {
		return err
	}
	if a.pass != 2 {
		a.pc += uint32(size)
	}
	return nil
}

// classify decides what a leading token on a statement means: a directive
// keyword (dot-prefixed or bare), MACRO/ENDM, a user macro invocation, a
// target mnemonic, or a label. It returns the canonical dispatch name
// (always bare, upper-cased) and whether tok should instead be treated as a
// label. A dot-prefixed token that matches none of those is a typo'd
// directive, so it raises UnknownDirective rather than falling back to
// label treatment; dispatchStatement treats a dot-prefixed token directly
// followed by ':' as a local label without calling classify.
func (a *Assembler) classify(tok string, pos errs.Position) (string, bool, error) {
	dotted := strings.HasPrefix(tok, ".")
	stripped := strings.ToUpper(strings.TrimPrefix(tok, "."))
	if _, ok := directive.Lookup(stripped); ok {
		return stripped, false, nil
	}
	if stripped == "MACRO" || stripped == "ENDM" || stripped == "EQU" {
		return stripped, false, nil
	}
	if _, ok := a.macros.Lookup(stripped); ok {
		return stripped, false, nil
	}
	upper := strings.ToUpper(tok)
	if a.cpu != nil && a.cpu.IsMnemonic(upper) {
		return upper, false, nil
	}
	if dotted {
		return "", false, errs.New(pos, errs.UnknownDirective, tok)
	}
	return stripped, true, nil
}

func (a *Assembler) defineLabelHere(label string, pos errs.Position) error {
	sym, err := a.syms.Define(label, value.Value{Content: a.pc, Width: value.Word, Defined: true}, pos, symtab.KindLabel, a.pass == 1)
	if err != nil {
		return err
	}
	a.lastLabel = sym
	return nil
}

func (a *Assembler) beginMacroDef(label string, c *lexer.Cursor, pos errs.Position) error {
	if label == "" {
		return errs.New(pos, errs.LabelRequired, "MACRO")
	}
	c.SkipWhite()
	a.definingMacro = true
	a.macroName = label
	a.macroParams = macro.ParseFormalParams(c.RestOfLine())
	a.macroBody = nil
	a.macroDefLine = pos
	return nil
}

// invokeMacro expands m with the actuals on this line and dispatches each
// expanded line as its own statement. A body line that names a macro is
// expanded in turn through a recursive call; no nesting depth limit is
// enforced.
func (a *Assembler) invokeMacro(m *macro.Macro, c *lexer.Cursor, pos errs.Position) error {
	actuals := macro.ParseActualParams(c.RestOfLine())
	expanded, err := m.Expand(actuals, pos)
	if err != nil {
		return err
	}
	body := strings.TrimSuffix(expanded, string(rune(macro.EndSentinel)))
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lc := lexer.NewCursor([]byte(line), 0)
		if err := a.dispatchStatement(lc, pos); err != nil {
			return err
		}
	}
	return nil
}
