package lexer

import (
	"testing"

	"sherbet/internal/token"
)

func TestComments(t *testing.T) {
	input := "\n" +
		"x = 1; // comment\n" +
		"// whole line\n" +
		"y = 2 / 4;\n"
	l := New(input)
	types := []token.Type{
		token.IDENT, token.ASSIGN, token.NUMBER, token.SEMICOLON,
		token.IDENT, token.ASSIGN, token.NUMBER, token.SLASH, token.NUMBER, token.SEMICOLON,
		token.EOF,
	}

	for i, tt := range types {
		tok := l.NextToken()
		if tok.Type != tt {
			t.Fatalf("i=%d expected=%q got=%q (%q)", i, tt, tok.Type, tok.Literal)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	l := New(`"a\"b\\c\n\td\q"`)
	tok := l.NextToken()
	if tok.Type != token.STRING {
		t.Fatalf("expected STRING, got %q", tok.Type)
	}
	if tok.Literal != "a\"b\\c\n\td\\q" {
		t.Fatalf("bad escapes: %q", tok.Literal)
	}
	if tok.Raw != `"a\"b\\c\n\td\q"` {
		t.Fatalf("raw lexeme not preserved: %q", tok.Raw)
	}
}

func TestUnterminatedString(t *testing.T) {
	tok := New("\"abc\nx").NextToken()
	if tok.Type != token.ILLEGAL || tok.Literal != "unterminated string" {
		t.Fatalf("expected unterminated string, got %q %q", tok.Type, tok.Literal)
	}
}
