// Package objfile implements the assembler's streaming output encoder:
// format selection, origin-fill discipline, and the three supported object
// formats (raw binary, Intel HEX, Motorola S-record).
package objfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/nivasm/vasm/errs"
)

// Format identifies one of the three supported object-file encodings.
type Format int

const (
	Binary Format = iota
	IntelHex
	SRecord
)

const maxRecordBytes = 32

// SelectFormat resolves a filename into a Format, honoring an explicit
// "format:" prefix (ihex:, srec:) or falling back to extension sniffing.
// Returns the format and the filename with any prefix stripped.
func SelectFormat(filename string) (Format, string, error) {
	if idx := strings.Index(filename, ":"); idx > 0 {
		prefix, rest := filename[:idx], filename[idx+1:]
		switch strings.ToLower(prefix) {
		case "ihex", "hex":
			return IntelHex, rest, nil
		case "srec", "s19":
			return SRecord, rest, nil
		case "bin", "binary":
			return Binary, rest, nil
		default:
			return 0, "", errs.New(errs.Position{}, errs.NoFormat, prefix)
		}
	}

	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".hex"), strings.HasSuffix(lower, ".ihex"):
		return IntelHex, filename, nil
	case strings.HasSuffix(lower, ".srec"), strings.HasSuffix(lower, ".s19"):
		return SRecord, filename, nil
	default:
		return Binary, filename, nil
	}
}

// Encoder streams assembled bytes into one of the three object formats,
// tracking the current load address and an optional autofill policy for
// binary output gaps opened by .ORG.
type Encoder struct {
	format      Format
	file        *os.File
	writer      *bufio.Writer
	autofill    bool
	fillByte    byte
	orgDone     bool
	base        uint32 // current load-address cursor
	total       uint32 // total bytes emitted, tracked in both passes
	startAddr   uint32
	startSet    bool
	lineAddr    uint32
	lineBuf     []byte
	allBytes    []byte // pass-2 byte history, for the SUM builtin
	allBytesOff uint32 // program address of allBytes[0]
}

// Open creates the output file (if name is non-empty) and prepares the
// encoder for the given format.
func Open(name string, format Format, autofill bool, fillByte byte) (*Encoder, error) {
	e := &Encoder{format: format, autofill: autofill, fillByte: fillByte}
	if name == "" {
		return e, nil
	}
	f, err := os.Create(name) // #nosec G304 -- user-specified output path
	if err != nil {
		return nil, errs.New(errs.Position{}, errs.FileCreate, name)
	}
	e.file = f
	e.writer = bufio.NewWriter(f)
	return e, nil
}

// Close flushes and closes the output file. If keep is false, the file is
// removed instead (pass-2 failure discards partial output).
func (e *Encoder) Close(keep bool) error {
	if e.file == nil {
		return nil
	}
	if keep && e.format == IntelHex {
		e.writeLine(":00000001FF")
	}
	name := e.file.Name()
	if e.writer != nil {
		_ = e.writer.Flush()
	}
	err := e.file.Close()
	if !keep {
		_ = os.Remove(name)
	}
	return err
}

// SetAddress establishes the current load address, filling the gap with
// fillByte in binary mode when autofill is enabled and an origin was
// already established.
func (e *Encoder) SetAddress(addr uint32, pass int) error {
	if addr != e.base {
		// a pending HEX/SREC record must not run on past the new address
		e.flushLine()
	}
	if e.format == Binary && e.orgDone && e.autofill && pass == 2 {
		if addr < e.base {
			return fmt.Errorf("address 0x%X is before current output cursor 0x%X", addr, e.base)
		}
		for e.base < addr {
			if err := e.rawByte(e.fillByte); err != nil {
				return err
			}
		}
	}
	e.base = addr
	if len(e.allBytes) == 0 {
		e.allBytesOff = addr
	}
	e.orgDone = true
	return nil
}

// SetStart records the program's start address, used by END's start record
// (IHEX type 05 / SREC S9).
func (e *Encoder) SetStart(addr uint32, pass int) {
	if pass != 2 {
		return
	}
	e.startAddr = addr
	e.startSet = true
}

// EmitByte emits one byte. In pass 1 it only advances counters; in pass 2 it
// actually writes.
func (e *Encoder) EmitByte(b byte, pass int) error {
	e.total++
	if pass != 2 {
		e.base++
		return nil
	}
	return e.rawByte(b)
}

func (e *Encoder) rawByte(b byte) error {
	e.allBytes = append(e.allBytes, b)
	switch e.format {
	case Binary:
		if e.writer != nil {
			if err := e.writer.WriteByte(b); err != nil {
				return err
			}
		}
		e.base++
	default:
		if len(e.lineBuf) == 0 {
			e.lineAddr = e.base
		}
		e.lineBuf = append(e.lineBuf, b)
		e.base++
		if len(e.lineBuf) >= maxRecordBytes {
			e.flushLine()
		}
	}
	return nil
}

// EmitWordLE emits a 16-bit value little-endian.
func (e *Encoder) EmitWordLE(w uint16, pass int) error {
	if err := e.EmitByte(byte(w), pass); err != nil {
		return err
	}
	return e.EmitByte(byte(w>>8), pass)
}

// EmitWordBE emits a 16-bit value big-endian.
func (e *Encoder) EmitWordBE(w uint16, pass int) error {
	if err := e.EmitByte(byte(w>>8), pass); err != nil {
		return err
	}
	return e.EmitByte(byte(w), pass)
}

// EmitDwordLE emits a 32-bit value little-endian.
func (e *Encoder) EmitDwordLE(d uint32, pass int) error {
	for i := 0; i < 4; i++ {
		if err := e.EmitByte(byte(d>>(8*i)), pass); err != nil {
			return err
		}
	}
	return nil
}

// EmitDwordBE emits a 32-bit value big-endian.
func (e *Encoder) EmitDwordBE(d uint32, pass int) error {
	for i := 3; i >= 0; i-- {
		if err := e.EmitByte(byte(d>>(8*i)), pass); err != nil {
			return err
		}
	}
	return nil
}

// EmitString emits the bytes of s, truncated or NUL-padded to exactly
// length bytes when length > 0; length == 0 emits s as-is.
func (e *Encoder) EmitString(s string, length int, pass int) error {
	if length <= 0 {
		length = len(s)
	}
	for i := 0; i < length; i++ {
		var b byte
		if i < len(s) {
			b = s[i]
		}
		if err := e.EmitByte(b, pass); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) flushLine() {
	if len(e.lineBuf) == 0 {
		return
	}
	switch e.format {
	case IntelHex:
		e.writeLine(intelHexDataRecord(e.lineAddr, e.lineBuf))
	case SRecord:
		e.writeLine(sRecordDataRecord(e.lineAddr, e.lineBuf))
	}
	e.lineBuf = e.lineBuf[:0]
}

func (e *Encoder) writeLine(s string) {
	if e.writer == nil {
		return
	}
	_, _ = e.writer.WriteString(s)
	_, _ = e.writer.WriteString("\n")
}

// Finish flushes any partial line buffer and, if a start address was set,
// writes the format's start/termination record.
func (e *Encoder) Finish(pass int) error {
	if pass != 2 {
		return nil
	}
	e.flushLine()
	switch e.format {
	case IntelHex:
		if e.startSet {
			e.writeLine(intelHexStartRecord(e.startAddr))
		}
	case SRecord:
		if e.startSet {
			e.writeLine(sRecordStartRecord(e.startAddr))
		}
	}
	if e.writer != nil {
		return e.writer.Flush()
	}
	return nil
}

// TotalBytes returns the number of bytes emitted so far (both passes).
func (e *Encoder) TotalBytes() uint32 { return e.total }

// SumBytes implements the SUM() builtin: an additive checksum of already
// emitted bytes in the program-address range [start, end).
func (e *Encoder) SumBytes(start, end uint32) (uint32, error) {
	if end < start {
		return 0, fmt.Errorf("SUM: end 0x%X precedes start 0x%X", end, start)
	}
	var sum uint32
	for addr := start; addr < end; addr++ {
		if addr < e.allBytesOff || int(addr-e.allBytesOff) >= len(e.allBytes) {
			continue
		}
		sum += uint32(e.allBytes[addr-e.allBytesOff])
	}
	return sum & 0xFFFF, nil
}

func intelHexChecksum(count byte, addr uint16, rtype byte, data []byte) byte {
	sum := int(count) + int(addr>>8) + int(addr&0xFF) + int(rtype)
	for _, b := range data {
		sum += int(b)
	}
	return byte(-sum)
}

func intelHexDataRecord(addr uint32, data []byte) string {
	cs := intelHexChecksum(byte(len(data)), uint16(addr), 0x00, data)
	var sb strings.Builder
	fmt.Fprintf(&sb, ":%02X%04X00", len(data), uint16(addr))
	for _, b := range data {
		fmt.Fprintf(&sb, "%02X", b)
	}
	fmt.Fprintf(&sb, "%02X", cs)
	return sb.String()
}

func intelHexStartRecord(addr uint32) string {
	data := []byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}
	cs := intelHexChecksum(byte(len(data)), 0x0000, 0x05, data)
	return fmt.Sprintf(":04000005%08X%02X", addr, cs)
}

func sRecordChecksum(count byte, addr uint16, data []byte) byte {
	sum := int(count) + int(addr>>8) + int(addr&0xFF)
	for _, b := range data {
		sum += int(b)
	}
	return byte(0xFF - (sum & 0xFF))
}

func sRecordDataRecord(addr uint32, data []byte) string {
	count := byte(len(data) + 3) // address bytes + data + checksum
	cs := sRecordChecksum(count, uint16(addr), data)
	var sb strings.Builder
	fmt.Fprintf(&sb, "S1%02X%04X", count, uint16(addr))
	for _, b := range data {
		fmt.Fprintf(&sb, "%02X", b)
	}
	fmt.Fprintf(&sb, "%02X", cs)
	return sb.String()
}

func sRecordStartRecord(addr uint32) string {
	count := byte(3)
	cs := sRecordChecksum(count, uint16(addr), nil)
	return fmt.Sprintf("S9%02X%04X%02X", count, uint16(addr), cs)
}
