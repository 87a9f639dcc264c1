package macro

import (
	"testing"

	"github.com/nivasm/vasm/errs"
)

func TestDefineAndLookup(t *testing.T) {
	tab := New()
	tab.Define("put", []string{"a", "b"}, []string{"  .byte a", "  .byte b"}, errs.Position{})

	m, ok := tab.Lookup("PUT")
	if !ok {
		t.Fatal("expected case-insensitive lookup to find macro")
	}
	if len(m.Params) != 2 {
		t.Errorf("expected 2 params, got %d", len(m.Params))
	}
}

func TestExpandSubstitutesParams(t *testing.T) {
	tab := New()
	tab.Define("put", []string{"a", "b"}, []string{"  .byte a", "  .byte b"}, errs.Position{})
	m, _ := tab.Lookup("put")

	out, err := m.Expand([]string{"$11", "$22"}, errs.Position{})
	if err != nil {
		t.Fatal(err)
	}
	want := "  .byte $11\n  .byte $22\n" + string(rune(EndSentinel))
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestExpandParamCountMismatch(t *testing.T) {
	tab := New()
	tab.Define("put", []string{"a", "b"}, []string{".byte a,b"}, errs.Position{})
	m, _ := tab.Lookup("put")

	if _, err := m.Expand([]string{"$11"}, errs.Position{}); err == nil {
		t.Error("expected not-enough-actuals error")
	}
}

func TestSubstitutionDoesNotMatchSubstring(t *testing.T) {
	tab := New()
	tab.Define("m", []string{"a"}, []string{"  lda ax"}, errs.Position{})
	m, _ := tab.Lookup("m")

	out, err := m.Expand([]string{"$10"}, errs.Position{})
	if err != nil {
		t.Fatal(err)
	}
	if !contains(out, "ax") {
		t.Errorf("expected 'ax' untouched in %q", out)
	}
	if contains(out, "$10x") {
		t.Errorf("formal substitution bled into surrounding identifier: %q", out)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
