package lexer

import (
	"testing"

	"sherbet/internal/token"
)

func TestLexer_TourProgram(t *testing.T) {
	input := `func add(a, b) {
  return a + b;
}

let x = add(2, 3.5);
print x;

if (x >= 3) {
  print "big";
} else {
  assert_ne x, 1;
}

while (x != 0 and !false) { x = x - 1; }`

	tests := []struct {
		typ token.Type
		lit string
	}{
		{token.FUNC, "func"},
		{token.IDENT, "add"},
		{token.LPAREN, "("},
		{token.IDENT, "a"},
		{token.COMMA, ","},
		{token.IDENT, "b"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},

		{token.RETURN, "return"},
		{token.IDENT, "a"},
		{token.PLUS, "+"},
		{token.IDENT, "b"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},

		{token.LET, "let"},
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.IDENT, "add"},
		{token.LPAREN, "("},
		{token.NUMBER, "2"},
		{token.COMMA, ","},
		{token.NUMBER, "3.5"},
		{token.RPAREN, ")"},
		{token.SEMICOLON, ";"},

		{token.PRINT, "print"},
		{token.IDENT, "x"},
		{token.SEMICOLON, ";"},

		{token.IF, "if"},
		{token.LPAREN, "("},
		{token.IDENT, "x"},
		{token.GE, ">="},
		{token.NUMBER, "3"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.PRINT, "print"},
		{token.STRING, "big"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.ELSE, "else"},
		{token.LBRACE, "{"},
		{token.ASSERT_NE, "assert_ne"},
		{token.IDENT, "x"},
		{token.COMMA, ","},
		{token.NUMBER, "1"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},

		{token.WHILE, "while"},
		{token.LPAREN, "("},
		{token.IDENT, "x"},
		{token.NE, "!="},
		{token.NUMBER, "0"},
		{token.AND, "and"},
		{token.BANG, "!"},
		{token.FALSE, "false"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.IDENT, "x"},
		{token.MINUS, "-"},
		{token.NUMBER, "1"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.typ {
			t.Fatalf("tests[%d] - wrong type. expected=%q got=%q (lit=%q line=%d col=%d)",
				i, tt.typ, tok.Type, tok.Literal, tok.Line, tok.Col)
		}

		if tok.Literal != tt.lit {
			t.Fatalf("tests[%d] - wrong literal. expected=%q got=%q (type=%q line=%d col=%d)",
				i, tt.lit, tok.Literal, tok.Type, tok.Line, tok.Col)
		}
	}
}

func TestLexer_NativeCallTokens(t *testing.T) {
	input := `#assert_stack(1, "a")`

	tests := []struct {
		typ token.Type
		lit string
	}{
		{token.HASH, "#"},
		{token.IDENT, "assert_stack"},
		{token.LPAREN, "("},
		{token.NUMBER, "1"},
		{token.COMMA, ","},
		{token.STRING, "a"},
		{token.RPAREN, ")"},
		{token.EOF, ""},
	}

	toks := New(input).Tokens()
	if len(toks) != len(tests) {
		t.Fatalf("expected %d tokens, got %d", len(tests), len(toks))
	}
	for i, tt := range tests {
		if toks[i].Type != tt.typ || toks[i].Literal != tt.lit {
			t.Fatalf("tests[%d] - expected %q %q, got %q %q", i, tt.typ, tt.lit, toks[i].Type, toks[i].Literal)
		}
	}
}

func TestLexer_Positions(t *testing.T) {
	l := New("let a = 1;\n  a = 2;")
	var last token.Token
	for i := 0; i < 6; i++ {
		last = l.NextToken()
	}
	if last.Type != token.IDENT || last.Line != 2 || last.Col != 3 {
		t.Fatalf("expected IDENT at 2:3, got %q at %d:%d", last.Type, last.Line, last.Col)
	}
}
