package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"sherbet/internal/ast"
	"sherbet/internal/diag"
	"sherbet/internal/lexer"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(lexer.New(input))
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		for _, e := range p.Errors() {
			t.Error(e)
		}
		t.Fatalf("parser had %d errors", len(p.Errors()))
	}
	return prog
}

func TestParseTour_NoErrors(t *testing.T) {
	input := `func add(a, b) {
  return a + b;
}

let x = add(2, 3);
print x;

if (x > 3) {
  print "big";
} else {
  print "small";
}

let i = 0;
while (i < 3) {
  print i;
  i = i + 1;
}
assert_eq i, 3;
assert_ne i, 4;`

	prog := parse(t, input)
	if len(prog.Statements) != 8 {
		t.Fatalf("expected 8 statements, got %d", len(prog.Statements))
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"-a * b;", "((-a) * b);"},
		{"!true == false;", "((!true) == false);"},
		{"a + b * c - d / e;", "((a + (b * c)) - (d / e));"},
		{"1 < 2 == 3 >= 4;", "((1 < 2) == (3 >= 4));"},
		{"a or b and c;", "(a or (b and c));"},
		{"x = y = 1 + 2;", "x = y = (1 + 2);"},
		{"(1 + 2) * 3;", "((1 + 2) * 3);"},
		{"add(a, b * 2)(c);", "add(a, (b * 2))(c);"},
		{"[1, 2 + 3];", "[1, (2 + 3)];"},
	}

	for _, tt := range tests {
		prog := parse(t, tt.input)
		if got := prog.String(); got != tt.expected+"\n" {
			t.Fatalf("input %q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestLetAndReturn(t *testing.T) {
	prog := parse(t, `let x = 5; func f() { return; } func g() { return x; }`)

	let, ok := prog.Statements[0].(*ast.LetStatement)
	if !ok || let.Name.Value != "x" {
		t.Fatalf("expected let x, got %T %s", prog.Statements[0], prog.Statements[0])
	}
	if n, ok := let.Value.(*ast.NumberLiteral); !ok || n.Value != 5 {
		t.Fatalf("expected number 5, got %s", let.Value)
	}

	f := prog.Statements[1].(*ast.FuncStatement)
	ret := f.Body.Statements[0].(*ast.ReturnStatement)
	if ret.ReturnValue != nil {
		t.Fatalf("bare return should carry no value, got %s", ret.ReturnValue)
	}

	g := prog.Statements[2].(*ast.FuncStatement)
	if g.Body.Statements[0].(*ast.ReturnStatement).ReturnValue.String() != "x" {
		t.Fatal("return value not parsed")
	}
}

func TestNativeCallAndVoid(t *testing.T) {
	prog := parse(t, `#debug_stack(); let v = #void; #assert_stack(1, "a");`)

	call := prog.Statements[0].(*ast.ExpressionStatement).Expression.(*ast.NativeCallExpression)
	if call.Name.Value != "debug_stack" || len(call.Arguments) != 0 {
		t.Fatalf("unexpected native call %s", call)
	}

	if _, ok := prog.Statements[1].(*ast.LetStatement).Value.(*ast.VoidLiteral); !ok {
		t.Fatalf("expected #void literal, got %s", prog.Statements[1])
	}

	call = prog.Statements[2].(*ast.ExpressionStatement).Expression.(*ast.NativeCallExpression)
	if len(call.Arguments) != 2 {
		t.Fatalf("expected 2 native args, got %d", len(call.Arguments))
	}
}

func TestElseIfChain(t *testing.T) {
	prog := parse(t, `if (a) { print 1; } else if (b) { print 2; } else { print 3; }`)

	stmt := prog.Statements[0].(*ast.IfStatement)
	if stmt.Alternative == nil || len(stmt.Alternative.Statements) != 1 {
		t.Fatal("else-if should be wrapped in a block")
	}
	nested, ok := stmt.Alternative.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected nested if, got %T", stmt.Alternative.Statements[0])
	}
	if nested.Alternative == nil {
		t.Fatal("final else lost")
	}
}

func TestAssertStatement(t *testing.T) {
	prog := parse(t, `assert_eq x + y, 3; assert_ne a, b;`)

	eq := prog.Statements[0].(*ast.AssertStatement)
	if !eq.Equal || eq.Left.String() != "(x + y)" || eq.Right.String() != "3" {
		t.Fatalf("unexpected assert_eq: %s", eq)
	}
	if prog.Statements[1].(*ast.AssertStatement).Equal {
		t.Fatal("assert_ne parsed as assert_eq")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		msgs  []string
	}{
		{"let = 1;", []string{"expected next token to be IDENT, got = instead"}},
		{"let x = 1", []string{"expected next token to be ;, got EOF instead"}},
		{"1 = 2;", []string{"invalid assignment target"}},
		{`print "abc;`, []string{"unterminated string"}},
		{"let a = ; let b = ;", []string{"expected an expression, got ;", "expected an expression, got ;"}},
		{"{ let x = ; } print 1 2;", []string{"expected an expression, got ;", "expected next token to be ;, got NUMBER instead"}},
	}

	for _, tt := range tests {
		p := New(lexer.New(tt.input))
		p.ParseProgram()
		if diff := cmp.Diff(tt.msgs, p.Errors()); diff != "" {
			t.Fatalf("input %q: errors mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestParseErrorsReachSink(t *testing.T) {
	sink := diag.NewCollector()
	prog, diags := Parse("let x = ;\nlet y = 2;", sink)

	if len(prog.Statements) != 1 {
		t.Fatalf("parser should recover and keep the second statement, got %d", len(prog.Statements))
	}

	want := []diag.Diagnostic{{
		Code:     diag.CodeParse,
		Title:    "Parser",
		Message:  "expected an expression, got ;",
		Severity: diag.SeverityError,
		Range:    diag.Range{Line: 1, Col: 9, Length: 1},
	}}
	if diff := cmp.Diff(want, diags); diff != "" {
		t.Fatalf("parser diagnostics mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, sink.Diagnostics()); diff != "" {
		t.Fatalf("sink diagnostics mismatch (-want +got):\n%s", diff)
	}
}
