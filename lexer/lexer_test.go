package lexer

import (
	"testing"

	"github.com/nivasm/vasm/errs"
)

func TestIdent(t *testing.T) {
	c := NewCursor([]byte("label1 rest"), 0)
	name, err := c.Ident(false, errs.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if name != "label1" {
		t.Errorf("got %q", name)
	}
}

func TestIdentTooLong(t *testing.T) {
	long := "a"
	for i := 0; i < 40; i++ {
		long += "b"
	}
	c := NewCursor([]byte(long), 0)
	_, err := c.Ident(false, errs.Position{})
	if err == nil {
		t.Error("expected identifier-too-long error")
	}
}

func TestStringLiteral(t *testing.T) {
	c := NewCursor([]byte(`"hello world" rest`), 0)
	s, ok, err := c.StringLiteral(true, errs.Position{})
	if err != nil || !ok {
		t.Fatalf("err=%v ok=%v", err, ok)
	}
	if s != "hello world" {
		t.Errorf("got %q", s)
	}
}

func TestStringUnterminated(t *testing.T) {
	c := NewCursor([]byte(`"hello`), 0)
	_, _, err := c.StringLiteral(true, errs.Position{})
	if err == nil {
		t.Error("expected unterminated string error")
	}
}

func TestCharLiteral(t *testing.T) {
	c := NewCursor([]byte(`'A'`), 0)
	b, err := c.CharLiteral(errs.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if b != 'A' {
		t.Errorf("got %c", b)
	}
}

func TestSkipWhiteAndComment(t *testing.T) {
	c := NewCursor([]byte("   ; a comment\nNEXT"), 0)
	c.SkipWhiteAndComment()
	if !c.AtEOL() {
		t.Error("expected cursor at EOL after comment")
	}
}
