// Package source implements the assembler's source buffer: a single
// contiguous byte stream built by concatenating the main file and each
// INCLUDEd file, separated by an EOF marker byte, together with a registry
// mapping buffer offsets back to (file, line) for diagnostics.
package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nivasm/vasm/errs"
)

// EOFByte terminates each file's contribution to the buffer.
const EOFByte = 0x1A

const defaultMaxFiles = 257

// entry records where one file's bytes begin in the buffer and which line
// of which including file continues after it.
type entry struct {
	name       string
	start      int
	includedAt errs.Position
}

// Buffer is the assembler's whole-program source: one byte slice, walked
// left to right by the lexer, with file/line bookkeeping alongside it.
type Buffer struct {
	Bytes       []byte
	files       []entry
	maxFiles    int
	includeDirs []string
}

// New creates an empty Buffer. includeDirs are searched, in order, for an
// INCLUDE target not found relative to the including file.
func New(includeDirs []string) *Buffer {
	return &Buffer{maxFiles: defaultMaxFiles, includeDirs: includeDirs}
}

// LoadMain reads path as the top-level source file.
func (b *Buffer) LoadMain(path string) error {
	return b.include(path, errs.Position{})
}

// Include appends path's contents to the buffer, to be resumed into at the
// position the including file left off. from is the position of the
// INCLUDE directive itself, used for the MaxIncludes diagnostic.
func (b *Buffer) Include(path string, from errs.Position) error {
	return b.include(path, from)
}

func (b *Buffer) include(path string, from errs.Position) error {
	if len(b.files) >= b.maxFiles {
		return errs.New(from, errs.MaxIncludes, path)
	}

	resolved, data, err := b.readFile(path, from)
	if err != nil {
		return err
	}

	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))

	b.files = append(b.files, entry{
		name:       resolved,
		start:      len(b.Bytes),
		includedAt: from,
	})
	b.Bytes = append(b.Bytes, data...)
	b.Bytes = append(b.Bytes, EOFByte)

	return nil
}

func (b *Buffer) readFile(path string, from errs.Position) (string, []byte, error) {
	candidates := []string{path}
	if from.File != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(from.File), path))
	}
	for _, dir := range b.includeDirs {
		candidates = append(candidates, filepath.Join(dir, path))
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate) // #nosec G304 -- user-supplied assembly source path
		if err == nil {
			return candidate, data, nil
		}
	}
	return "", nil, errs.New(from, errs.FileOpen, path)
}

// PositionAt maps an offset in Bytes back to a file:line diagnostic
// position, counting newlines from the start of the containing file's
// region.
func (b *Buffer) PositionAt(offset int) errs.Position {
	var fe entry
	found := false
	for _, e := range b.files {
		if offset >= e.start {
			fe = e
			found = true
		}
	}
	if !found {
		return errs.Position{File: "<unknown>", Line: 0}
	}

	line := 1
	for i := fe.start; i < offset && i < len(b.Bytes); i++ {
		if b.Bytes[i] == '\n' {
			line++
		}
	}
	return errs.Position{File: fe.name, Line: line}
}

// FileCount returns the number of files registered so far.
func (b *Buffer) FileCount() int {
	return len(b.files)
}

func (b *Buffer) String() string {
	return fmt.Sprintf("source.Buffer{%d bytes, %d files}", len(b.Bytes), len(b.files))
}
