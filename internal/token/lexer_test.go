package token

import "testing"

func TestSaveRestoreIdempotent(t *testing.T) {
	l := New("t.jc", `class Foo { int x; }`)
	loc := l.Save()
	first, err := l.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Restore(loc)
	second, err := l.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Kind != second.Kind || first.Lexeme != second.Lexeme {
		t.Fatalf("save/restore not idempotent: %+v != %+v", first, second)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	l := New("t.jc", `int x`)
	p1, _ := l.Peek()
	p2, _ := l.Peek()
	if p1 != p2 {
		t.Fatalf("peek mutated state: %+v != %+v", p1, p2)
	}
	g, _ := l.Get()
	if g != p1 {
		t.Fatalf("get after peek mismatch: %+v != %+v", g, p1)
	}
}

func TestKeywordsAndOperators(t *testing.T) {
	l := New("t.jc", `class A : I hybrid B { method int f(){ return 1+2; } }`)
	var kinds []Kind
	for {
		tok, err := l.Get()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Kind == EOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	if kinds[0] != KwClass || kinds[1] != Ident {
		t.Fatalf("unexpected token sequence: %v", kinds)
	}
}

func TestStringEscapeNormalization(t *testing.T) {
	l := New("t.jc", `"a\nb\tc"`)
	tok, err := l.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Kind != StringLit || tok.Lexeme != "a\nb\tc" {
		t.Fatalf("got %+v", tok)
	}
}

func TestCharLiteralPacking(t *testing.T) {
	v, err := PackCharLiteral("ABCD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := int64('A')<<24 | int64('B')<<16 | int64('C')<<8 | int64('D')
	if v != want {
		t.Fatalf("got %x want %x", v, want)
	}
	if _, err := PackCharLiteral("TOOLONG"); err == nil {
		t.Fatalf("expected error for over-long char literal")
	}
}

func TestFloatAndHexLiterals(t *testing.T) {
	l := New("t.jc", `3.14 0x1F 42`)
	tok, _ := l.Get()
	if tok.Kind != FloatLit || tok.FVal != 3.14 {
		t.Fatalf("got %+v", tok)
	}
	tok, _ = l.Get()
	if tok.Kind != IntLit || tok.IVal != 0x1F {
		t.Fatalf("got %+v", tok)
	}
	tok, _ = l.Get()
	if tok.Kind != IntLit || tok.IVal != 42 {
		t.Fatalf("got %+v", tok)
	}
}
