package token

import "sort"

type Type string

type Token struct {
	Type    Type
	Literal string
	// Raw preserves the original lexeme when Literal is normalized (e.g., strings).
	Raw  string
	Line int
	Col  int
}

const (
	// Special
	ILLEGAL Type = "ILLEGAL"
	EOF     Type = "EOF"

	SEMICOLON Type = ";"

	// Identifiers + literals
	IDENT  Type = "IDENT"
	NUMBER Type = "NUMBER"
	STRING Type = "STRING"

	// Keywords
	LET       Type = "LET"
	FUNC      Type = "FUNC"
	RETURN    Type = "RETURN"
	IF        Type = "IF"
	ELSE      Type = "ELSE"
	WHILE     Type = "WHILE"
	TRUE      Type = "TRUE"
	FALSE     Type = "FALSE"
	AND       Type = "AND"
	OR        Type = "OR"
	PRINT     Type = "PRINT"
	ASSERT_EQ Type = "ASSERT_EQ"
	ASSERT_NE Type = "ASSERT_NE"

	// Operators
	ASSIGN Type = "="
	PLUS   Type = "+"
	MINUS  Type = "-"
	STAR   Type = "*"
	SLASH  Type = "/"
	BANG   Type = "!"

	EQ Type = "=="
	NE Type = "!="
	LT Type = "<"
	LE Type = "<="
	GT Type = ">"
	GE Type = ">="

	// Delimiters
	HASH     Type = "#"
	COMMA    Type = ","
	LPAREN   Type = "("
	RPAREN   Type = ")"
	LBRACKET Type = "["
	RBRACKET Type = "]"
	LBRACE   Type = "{"
	RBRACE   Type = "}"
)

var keywords = map[string]Type{
	"let":       LET,
	"func":      FUNC,
	"return":    RETURN,
	"if":        IF,
	"else":      ELSE,
	"while":     WHILE,
	"true":      TRUE,
	"false":     FALSE,
	"and":       AND,
	"or":        OR,
	"print":     PRINT,
	"assert_eq": ASSERT_EQ,
	"assert_ne": ASSERT_NE,
}

func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword reports whether ident is reserved.
func IsKeyword(ident string) bool {
	_, ok := keywords[ident]
	return ok
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for kw := range keywords {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}
