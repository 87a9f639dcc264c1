// Package listing renders the assembler's paginated source listing: one
// line per statement with its resolved address and emitted bytes, page
// breaks with a running header, and a trailing symbol-table dump.
package listing

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/nivasm/vasm/symtab"
)

// SymbolMode controls the final symbol-table dump.
type SymbolMode int

const (
	SymOff SymbolMode = iota
	SymOn
	SymFull
)

// ParseSymbolMode maps the SYMS directive's argument to a SymbolMode.
func ParseSymbolMode(s string) SymbolMode {
	switch strings.ToUpper(s) {
	case "FULL":
		return SymFull
	case "OFF":
		return SymOff
	default:
		return SymOn
	}
}

const maxCodeBytesPerLine = 4

// Listing accumulates listing lines and writes them out paginated.
type Listing struct {
	file       *os.File
	writer     *bufio.Writer
	pageLength int
	pageWidth  int
	title      string
	subtitle   string
	sourceName string
	symMode    SymbolMode

	linesOnPage int
	pageNumber  int
	sourceLine  int
}

// Open creates the listing file, if name is non-empty.
func Open(name string, pageLength, pageWidth int) (*Listing, error) {
	l := &Listing{pageLength: pageLength, pageWidth: pageWidth, symMode: SymOn}
	if name == "" {
		return l, nil
	}
	f, err := os.Create(name) // #nosec G304 -- user-specified listing path
	if err != nil {
		return nil, fmt.Errorf("can not create listing file %s: %w", name, err)
	}
	l.file = f
	l.writer = bufio.NewWriter(f)
	return l, nil
}

func (l *Listing) enabled() bool { return l.writer != nil }

// SetSource names the file whose lines are currently being listed, for the
// page header.
func (l *Listing) SetSource(name string) { l.sourceName = name }

// SetTitle implements the TITLE directive's effect on the listing header.
func (l *Listing) SetTitle(s string) { l.title = s }

// SetSubtitle implements SUBTTL/STITLE.
func (l *Listing) SetSubtitle(s string) { l.subtitle = s }

// SetPage implements the PAGE directive: rows<=0 leaves page length
// unchanged, cols<=0 leaves width unchanged; rows>0 also forces a page break.
func (l *Listing) SetPage(rows, cols int) {
	if cols > 0 {
		l.pageWidth = cols
	}
	if rows > 0 {
		l.pageLength = rows
		l.breakPage()
	}
}

// SetWidth implements WIDTH.
func (l *Listing) SetWidth(n int) { l.pageWidth = n }

// SetSymbolMode implements SYMS.
func (l *Listing) SetSymbolMode(m SymbolMode) { l.symMode = m }

func (l *Listing) breakPage() {
	if !l.enabled() {
		return
	}
	if l.linesOnPage > 0 {
		_, _ = l.writer.WriteString("\f")
	}
	l.pageNumber++
	fmt.Fprintf(l.writer, "vasm  listing                                        page %d\n", l.pageNumber)
	header := l.sourceName
	if l.title != "" {
		header = fmt.Sprintf("%s  %s", header, l.title)
	}
	if l.subtitle != "" {
		header = fmt.Sprintf("%s  %s", header, l.subtitle)
	}
	fmt.Fprintf(l.writer, "%s\n", header)
	_, _ = l.writer.WriteString("\n")
	l.linesOnPage = 3
}

func (l *Listing) maybeBreak() {
	if l.pageLength > 0 && l.linesOnPage >= l.pageLength {
		l.breakPage()
	}
	if l.pageNumber == 0 {
		l.breakPage()
	}
}

// Line is one rendered statement, ready to be appended to the listing.
type Line struct {
	LineNumber int
	PC         uint32
	Bytes      []byte
	SourceText string
	Active     bool // false if skipped by an inactive conditional
	Annotation string
}

// Emit writes one listing line, wrapping code bytes onto continuation lines
// past the first maxCodeBytesPerLine.
func (l *Listing) Emit(ln Line) {
	if !l.enabled() {
		return
	}
	l.maybeBreak()

	state := ":"
	if !ln.Active {
		state = "-"
	}

	if ln.Annotation != "" {
		fmt.Fprintf(l.writer, "%05d %6s  %-20s %5d%s %s\n", ln.LineNumber, "", ln.Annotation, ln.LineNumber, state, ln.SourceText)
		l.linesOnPage++
		return
	}

	first := ln.Bytes
	cont := false
	if len(first) > maxCodeBytesPerLine {
		first = ln.Bytes[:maxCodeBytesPerLine]
	}
	fmt.Fprintf(l.writer, "%05d %06X %-11s %5d%s %s\n", ln.LineNumber, ln.PC, hexBytes(first), ln.LineNumber, state, ln.SourceText)
	l.linesOnPage++

	rest := ln.Bytes[len(first):]
	pc := ln.PC + uint32(len(first))
	for len(rest) > 0 {
		l.maybeBreak()
		chunk := rest
		if len(chunk) > maxCodeBytesPerLine {
			chunk = rest[:maxCodeBytesPerLine]
		}
		fmt.Fprintf(l.writer, "%05s %06X %-11s\n", "", pc, hexBytes(chunk))
		l.linesOnPage++
		rest = rest[len(chunk):]
		pc += uint32(len(chunk))
		_ = cont
	}
}

func hexBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// DumpSymbols appends the final symbol-table listing, in ON (globals only)
// or FULL (globals plus their local labels) mode.
func (l *Listing) DumpSymbols(tab *symtab.Table) {
	if !l.enabled() || l.symMode == SymOff {
		return
	}
	fmt.Fprintf(l.writer, "\nsymbol table\n")
	globals := tab.Globals()
	for name, sym := range globals {
		fmt.Fprintf(l.writer, "%-32s %06X\n", name, sym.Value.Content)
		if l.symMode == SymFull {
			for lname, lsym := range symtab.AllLocals(sym) {
				fmt.Fprintf(l.writer, "  %-30s %06X\n", lname, lsym.Value.Content)
			}
		}
	}
}

// Close flushes and closes the listing file.
func (l *Listing) Close() error {
	if !l.enabled() {
		return nil
	}
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}
