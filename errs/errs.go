// Package errs implements the assembler's error channel: a closed set of
// error kinds with fixed textual forms, each optionally carrying a short
// hint, reported against a source position.
package errs

import "fmt"

// Kind identifies one of the assembler's fixed error conditions. The set is
// closed: every diagnostic the assembler can raise maps to exactly one Kind.
type Kind int

const (
	User Kind = iota + 1
	DivByZero
	NoCPU
	UnknownCPU
	OutOfMemory
	AssertFailed
	FileCreate
	FileOpen
	NoFormat
	UnknownDirective
	UnknownInstruction
	CommaExpected
	ValueExpected
	InvalidValue
	InvalidFormat
	ExprError
	IncompleteOperator
	UnbalancedParens
	LabelRequired
	LabelNotValidHere
	IdentifierExpected
	IdentifierTooLong
	StatementExpected
	IllegalStatement
	EndOfLineExpected
	IllegalRedefinition
	NotEnoughActualParams
	NotEnoughFormalParams
	MacroBeforeEndm
	EndmBeforeMacro
	IfNestingTooDeep
	ElseWithoutIf
	EndifWithoutIf
	TooManyRepeatLevels
	EndrepWithoutRepeat
	RepeatWithoutEndrep
	SymbolAlreadyLabel
	MissingClosingBrace
	UndefinedValue
	IllegalType
	StringNotTerminated
	CharNotTerminated
	RangeError
	RangeByte
	RangeWord
	LocalRedefinition
	LocalWithoutGlobal
	MalformedChar
	StringTooLong
	StringExpected
	MaxIncludes
)

// messages holds the fixed text for each Kind. Never editorialized — a
// single short phrase, matching the original assembler's own message table.
var messages = map[Kind]string{
	User:                   "user-specified error",
	DivByZero:              "division by zero",
	NoCPU:                  "processor type not set",
	UnknownCPU:             "unknown processor type",
	OutOfMemory:            "out of memory",
	AssertFailed:           "assert failed",
	FileCreate:             "can not create file",
	FileOpen:               "can not open file",
	NoFormat:               "file format not enabled",
	UnknownDirective:       "unknown directive",
	UnknownInstruction:     "unknown instruction",
	CommaExpected:          "comma expected",
	ValueExpected:          "value expected",
	InvalidValue:           "invalid value",
	InvalidFormat:          "invalid format specifier",
	ExprError:              "error in expression",
	IncompleteOperator:     "incomplete operator",
	UnbalancedParens:       "unbalanced parentheses",
	LabelRequired:          "label required",
	LabelNotValidHere:      "label not valid here",
	IdentifierExpected:     "identifier expected",
	IdentifierTooLong:      "identifier length exceeded",
	StatementExpected:      "statement expected",
	IllegalStatement:       "illegal statement",
	EndOfLineExpected:      "end of line expected",
	IllegalRedefinition:    "illegal redefinition",
	NotEnoughActualParams:  "not enough actual params",
	NotEnoughFormalParams:  "not enough formal params",
	MacroBeforeEndm:        "MACRO before ENDM",
	EndmBeforeMacro:        "ENDM before MACRO",
	IfNestingTooDeep:       "IF nesting too deep",
	ElseWithoutIf:          "ELSE without IF",
	EndifWithoutIf:         "ENDIF without IF",
	TooManyRepeatLevels:    "too many REPEAT levels",
	EndrepWithoutRepeat:    "ENDREP without REPEAT",
	RepeatWithoutEndrep:    "REPEAT without ENDREP",
	SymbolAlreadyLabel:     "symbol already defined as label",
	MissingClosingBrace:    "missing closing brace",
	UndefinedValue:         "undefined value",
	IllegalType:            "illegal type",
	StringNotTerminated:    "string not terminated",
	CharNotTerminated:      "character constant not terminated",
	RangeError:             "value out of range",
	RangeByte:              "byte value out of range",
	RangeWord:              "word value out of range",
	LocalRedefinition:      "illegal redefinition of local label",
	LocalWithoutGlobal:     "local label definition outside global label",
	MalformedChar:          "malformed character constant",
	StringTooLong:          "string too long",
	StringExpected:         "string expected",
	MaxIncludes:            "maximum number of include files reached",
}

// String returns the fixed message text for k.
func (k Kind) String() string {
	if s, ok := messages[k]; ok {
		return s
	}
	return "unknown error"
}

// Position identifies a location in the assembled source, after include
// expansion has resolved it back to an original file and line.
type Position struct {
	File string
	Line int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

const maxHint = 127

// Error is the assembler's single error type. Every diagnostic the pipeline
// raises, from the lexer up through the pass driver, is an *Error.
type Error struct {
	Pos  Position
	Kind Kind
	Hint string
}

// New constructs an *Error, truncating hint to the maximum allowed length.
func New(pos Position, kind Kind, hint string) *Error {
	if len(hint) > maxHint {
		hint = hint[:maxHint]
	}
	return &Error{Pos: pos, Kind: kind, Hint: hint}
}

func (e *Error) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("%s: error: %s", e.Pos, e.Kind)
	}
	return fmt.Sprintf("%s: error: %s (%s)", e.Pos, e.Kind, e.Hint)
}

// Warning is a non-fatal diagnostic; it never aborts a pass.
type Warning struct {
	Pos     Position
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: warning: %s", w.Pos, w.Message)
}
