package errs

import "testing"

func TestErrorFormatting(t *testing.T) {
	pos := Position{File: "main.asm", Line: 12}

	e := New(pos, UnknownDirective, "")
	want := "main.asm:12: error: unknown directive"
	if e.Error() != want {
		t.Errorf("got %q, want %q", e.Error(), want)
	}

	e2 := New(pos, UndefinedValue, "FOO")
	want2 := "main.asm:12: error: undefined value (FOO)"
	if e2.Error() != want2 {
		t.Errorf("got %q, want %q", e2.Error(), want2)
	}
}

func TestHintTruncation(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	e := New(Position{File: "f", Line: 1}, User, string(long))
	if len(e.Hint) != maxHint {
		t.Errorf("expected hint truncated to %d, got %d", maxHint, len(e.Hint))
	}
}

func TestKindString(t *testing.T) {
	if DivByZero.String() != "division by zero" {
		t.Errorf("unexpected message: %s", DivByZero.String())
	}
}
