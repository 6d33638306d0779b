package vm

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"sherbet/internal/code"
	"sherbet/internal/compiler"
	"sherbet/internal/intern"
	"sherbet/internal/object"
)

func runVM(t *testing.T, input string, opts ...Option) (*VM, string, error) {
	t.Helper()
	return runVMWith(t, input, nil, opts...)
}

func runVMWith(t *testing.T, input string, copts []compiler.Option, opts ...Option) (*VM, string, error) {
	t.Helper()
	strs := intern.New()
	fn, err := compiler.CompileSource(input, strs, nil, copts...)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := New(strs, append([]Option{WithOutput(&out)}, opts...)...)
	err = m.Interpret(fn)
	return m, out.String(), err
}

func mustRun(t *testing.T, input string, opts ...Option) (*VM, string) {
	t.Helper()
	m, out, err := runVM(t, input, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m, out
}

func expectGlobal(t *testing.T, m *VM, name string, want object.Value) {
	t.Helper()
	got, ok := m.Global(name)
	if !ok {
		t.Fatalf("global %s not defined", name)
	}
	if !object.Equal(got, want) {
		t.Fatalf("global %s = %s, want %s", name, object.Inspect(got, m.strs), object.Inspect(want, m.strs))
	}
}

func TestScenarioGlobalsAndAssert(t *testing.T) {
	mustRun(t, `let x = 1; let y = 2; assert_eq x + y, 3;`)
}

func TestScenarioCaptureIsolation(t *testing.T) {
	m, _ := mustRun(t, `
func make(n) {
  func inc() { n = n + 1; return n; }
  return inc;
}
let a = make(0);
let b = make(10);
a();
a();
let ra = a();
let rb = b();`)

	expectGlobal(t, m, "ra", object.Number(3))
	expectGlobal(t, m, "rb", object.Number(11))
}

func TestScenarioWhileTerminates(t *testing.T) {
	mustRun(t, `let x = 0; while (x < 5) { x = x + 1; } assert_eq x, 5;`)
}

func TestClosuresShareLiveLocal(t *testing.T) {
	m, _ := mustRun(t, `
func pair() {
  let x = 0;
  func set(v) { x = v; }
  func get() { return x; }
  return [set, get];
}
let p = pair();
let s = #get(p, 0);
let g = #get(p, 1);
s(5);
let seen = g();

func live() {
  let x = 1;
  func bump() { x = x + 1; return x; }
  bump();
  bump();
  return x;
}
let after = live();`)

	expectGlobal(t, m, "seen", object.Number(5))
	expectGlobal(t, m, "after", object.Number(3))
}

func TestClosuresInLoopGetFreshCells(t *testing.T) {
	m, _ := mustRun(t, `
let fs = [];
let i = 0;
while (i < 3) {
  let j = i;
  func f() { j = j * 10; return j; }
  #push(fs, f);
  i = i + 1;
}
let f0 = #get(fs, 0);
let f2 = #get(fs, 2);
let r0 = f0();
let r2 = f2();
let r2again = f2();`)

	expectGlobal(t, m, "r0", object.Number(0))
	expectGlobal(t, m, "r2", object.Number(20))
	expectGlobal(t, m, "r2again", object.Number(200))
}

func TestCallsFromDifferentInvocationsDoNotShare(t *testing.T) {
	m, _ := mustRun(t, `
func counter() {
  let c = 0;
  func next() { c = c + 1; return c; }
  return next;
}
let a = counter();
let b = counter();
a(); a(); a();
let ra = a();
let rb = b();`)

	expectGlobal(t, m, "ra", object.Number(4))
	expectGlobal(t, m, "rb", object.Number(1))
}

func TestArityMismatchAtRuntime(t *testing.T) {
	noCheck := []compiler.Option{compiler.WithChecker(nil)}
	for _, args := range []string{"", "1", "1, 2, 3", "1, 2, 3, 4"} {
		src := fmt.Sprintf("func f(a, b) { return a; } f(%s);", args)
		_, _, err := runVMWith(t, src, noCheck)
		argc := 0
		if args != "" {
			argc = strings.Count(args, ",") + 1
		}
		want := fmt.Sprintf("f expects 2 arguments, got %d", argc)
		var rerr *RuntimeError
		if !errors.As(err, &rerr) || rerr.Message != want {
			t.Fatalf("f(%s): expected %q, got %v", args, want, err)
		}
	}
}

func TestCallRejectsEveryWrongCount(t *testing.T) {
	for arity := 0; arity < 4; arity++ {
		for argc := 0; argc < 6; argc++ {
			if argc == arity {
				continue
			}
			m := New(intern.New())
			cl := &object.Closure{Fn: &object.Function{Name: "g", Arity: arity}}
			m.push(cl)
			for i := 0; i < argc; i++ {
				m.push(object.Number(i))
			}
			err := m.Call(cl, argc)
			var rerr *RuntimeError
			if !errors.As(err, &rerr) || !strings.HasPrefix(rerr.Message, "g expects") {
				t.Fatalf("arity %d with %d arguments: got %v", arity, argc, err)
			}
		}
	}
}

func TestIfElseBranches(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`if (false) { print "A"; } else { print "B"; }`, "B\n"},
		{`if (true) { print "A"; } else { print "B"; }`, "A\n"},
		{`if (false) { print "A"; } print "C";`, "C\n"},
		{`let n = 2; if (n == 1) { print "one"; } else if (n == 2) { print "two"; } else { print "many"; }`, "two\n"},
	}
	for _, tt := range tests {
		_, out := mustRun(t, tt.input)
		if out != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.input, out, tt.want)
		}
	}
}

func TestWhileRunsBodyExactlyN(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		src := fmt.Sprintf(`let n = 0; let count = 0; while (n < %d) { n = n + 1; count = count + 1; print count; }`, n)
		m, out := mustRun(t, src)
		expectGlobal(t, m, "count", object.Number(n))
		if lines := strings.Count(out, "\n"); lines != n {
			t.Fatalf("body ran %d times, want %d", lines, n)
		}
	}
}

func TestNegateRoundTrip(t *testing.T) {
	for _, x := range []float64{0, 1.5, -3, 1e300, math.SmallestNonzeroFloat64, math.MaxFloat64} {
		fn := &object.Function{Name: "neg"}
		fn.Chunk.Constants = []object.Value{object.Number(x)}
		fn.Chunk.Code = append(fn.Chunk.Code, code.Make(code.OpConstant, 0)...)
		fn.Chunk.Code = append(fn.Chunk.Code, code.Make(code.OpNegate)...)
		fn.Chunk.Code = append(fn.Chunk.Code, code.Make(code.OpNegate)...)
		fn.Chunk.Code = append(fn.Chunk.Code, code.Make(code.OpReturn)...)

		m := New(intern.New())
		if err := m.Interpret(fn); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := m.Result(); got != object.Number(x) {
			t.Fatalf("negating %v twice gave %v", x, got)
		}
	}
}

func TestStringConcatenationInterns(t *testing.T) {
	m, _ := mustRun(t, `let s = "a" + "b"; assert_eq s, "ab"; let t = "ab";`)

	id, ok := m.strs.Find("ab")
	if !ok {
		t.Fatal("concatenation result not interned")
	}
	s, _ := m.Global("s")
	lit, _ := m.Global("t")
	if s != (object.String{ID: id}) || lit != (object.String{ID: id}) {
		t.Fatalf("expected both to use id %d, got %v and %v", id, s, lit)
	}
}

func TestPrintOutput(t *testing.T) {
	_, out := mustRun(t, `print 3; print 2.5; print "hi"; print true; print [1, "a"]; print 1 / 4;`)
	want := "3\n2.5\nhi\ntrue\n[1, a]\n0.25\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRecursion(t *testing.T) {
	m, _ := mustRun(t, `
func fib(n) {
  if (n < 2) { return n; }
  return fib(n - 1) + fib(n - 2);
}
let global = fib(10);

func outer() {
  func fact(n) {
    if (n < 2) { return 1; }
    return n * fact(n - 1);
  }
  return fact(5);
}
let local = outer();`)

	expectGlobal(t, m, "global", object.Number(55))
	expectGlobal(t, m, "local", object.Number(120))
}

func TestLogicalShortCircuit(t *testing.T) {
	_, out := mustRun(t, `
func loud(v) { print "called"; return v; }
let a = false and loud(true);
let b = true or loud(false);
let c = true and loud(false);
print a; print b; print c;`)
	want := "called\nfalse\ntrue\nfalse\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestReturnValueOfScript(t *testing.T) {
	m, _ := mustRun(t, `let x = 40; return x + 2;`)
	if m.Result() != object.Number(42) {
		t.Fatalf("expected 42, got %v", m.Result())
	}

	m, _ = mustRun(t, `let x = 1;`)
	if _, ok := m.Result().(object.Void); !ok {
		t.Fatalf("expected void result, got %v", m.Result())
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		input string
		msg   string
	}{
		{`print 1 + true;`, "unsupported operand types for '+': NUMBER and BOOLEAN"},
		{`print "a" < "b";`, "unsupported operand types for '<': STRING and STRING"},
		{`print -"a";`, "operand of '-' must be a number, got STRING"},
		{`print !1;`, "operand of '!' must be a boolean"},
		{`let x = 1; x();`, "can only call functions, got NUMBER"},
		{`print y; let y = 1;`, "undefined global 'y'"},
		{`y = 2; let y = 1;`, "undefined global 'y'"},
		{`assert_eq 1, 2;`, "assertion failed: 1 != 2"},
		{`assert_ne "a", "a";`, "assertion failed: a == a"},
		{`func f() {} assert_eq f, f;`, "assertion failed: <closure f> != <closure f>"},
		{`print #void;`, "cannot print VOID"},
		{`func f() {} print f();`, "cannot print VOID"},
		{`if (1) { }`, "condition must be a boolean, got NUMBER"},
		{`print 1 or true;`, "condition must be a boolean, got NUMBER"},
		{`func f() { return f(); } f();`, "stack overflow"},
		{`#get([1], 3);`, "#get: index 3 out of range for array of length 1"},
		{`#get([1], 0.5);`, "#get: index 0.5 out of range for array of length 1"},
		{`#len(1);`, "#len: expected an array or a string, got NUMBER"},
		{`#to_str(#void);`, "#to_str: cannot convert VOID to a string"},
		{`#assert_stack(1);`, "#assert_stack: stack mismatch: expected [1], got []"},
	}

	for _, tt := range tests {
		_, _, err := runVM(t, tt.input)
		var rerr *RuntimeError
		if !errors.As(err, &rerr) {
			t.Fatalf("%s: expected *RuntimeError, got %v", tt.input, err)
		}
		if rerr.Message != tt.msg {
			t.Fatalf("%s: got %q, want %q", tt.input, rerr.Message, tt.msg)
		}
	}
}

func TestRuntimeErrorLocation(t *testing.T) {
	_, _, err := runVM(t, "\n\nprint 1 + true;")
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RuntimeError, got %v", err)
	}
	if rerr.Line != 3 || rerr.Col != 9 {
		t.Fatalf("error at %d:%d, want 3:9", rerr.Line, rerr.Col)
	}
	if rerr.Error() != "3:9: unsupported operand types for '+': NUMBER and BOOLEAN" {
		t.Fatalf("unexpected message %q", rerr.Error())
	}
	want := "x.sb:3:9: error SR0001: unsupported operand types for '+': NUMBER and BOOLEAN"
	if got := rerr.Diagnostic().Format("x.sb"); got != want {
		t.Fatalf("Diagnostic().Format = %q, want %q", got, want)
	}
}

func TestRuntimeErrorTrace(t *testing.T) {
	_, _, err := runVM(t, "func f() { return 1 + true; }\nf();")
	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RuntimeError, got %v", err)
	}
	want := []string{"f (1:21)", "<script> (2:2)"}
	if strings.Join(rerr.Trace, "|") != strings.Join(want, "|") {
		t.Fatalf("trace = %v, want %v", rerr.Trace, want)
	}
	if !strings.Contains(rerr.StackTrace(), "  at f (1:21)\n") {
		t.Fatalf("unexpected stack trace:\n%s", rerr.StackTrace())
	}
}

func TestHaltedVMRefusesToRun(t *testing.T) {
	m, _, err := runVM(t, `assert_eq 1, 2;`)
	if err == nil {
		t.Fatal("expected assertion failure")
	}
	if err := m.Run(); !errors.Is(err, ErrHalted) {
		t.Fatalf("expected ErrHalted, got %v", err)
	}
}

func TestRunWithoutActiveFrame(t *testing.T) {
	if err := New(intern.New()).Run(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("fresh VM: expected ErrNoFrame, got %v", err)
	}

	m, _ := mustRun(t, `let a = 1;`)
	if err := m.Run(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("finished VM: expected ErrNoFrame, got %v", err)
	}
	expectGlobal(t, m, "a", object.Number(1))
}

func TestCallNeedsCalleeAndArgsOnStack(t *testing.T) {
	fn := &object.Function{Name: "f", Arity: 2}
	cl := &object.Closure{Fn: fn}

	m := New(intern.New())
	if err := m.Call(cl, 2); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("empty stack: expected ErrStackUnderflow, got %v", err)
	}

	m.push(cl)
	m.push(object.Number(1))
	if err := m.Call(cl, 2); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("one argument short: expected ErrStackUnderflow, got %v", err)
	}
	if err := m.Call(cl, -1); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("negative count: expected ErrStackUnderflow, got %v", err)
	}
	if m.frameCount != 0 {
		t.Fatalf("rejected calls pushed %d frames", m.frameCount)
	}

	m.push(object.Number(2))
	if err := m.Call(cl, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.frameCount != 1 || m.currentFrame().base != 0 {
		t.Fatalf("unexpected frame state: count=%d", m.frameCount)
	}
}

func TestOperandStackOverflow(t *testing.T) {
	_, _, err := runVM(t, `let a = [1, 2, 3, 4, 5, 6, 7, 8, 9, 10];`, WithStackSize(8))
	var rerr *RuntimeError
	if !errors.As(err, &rerr) || rerr.Message != "stack overflow" {
		t.Fatalf("expected stack overflow, got %v", err)
	}
}

func TestFrameLimit(t *testing.T) {
	src := `func a() { return b(); } func b() { return c(); } func c() { return 1; } let r = a();`

	_, _, err := runVM(t, src, WithMaxFrames(3))
	var rerr *RuntimeError
	if !errors.As(err, &rerr) || rerr.Message != "stack overflow" {
		t.Fatalf("expected stack overflow, got %v", err)
	}

	m, _ := mustRun(t, src, WithMaxFrames(4))
	expectGlobal(t, m, "r", object.Number(1))
}

func TestNatives(t *testing.T) {
	_, out := mustRun(t, `
{
  let a = 1;
  let b = "x";
  #debug_stack();
  #assert_stack(1, "x");
}
assert_eq #to_str(12.5), "12.5";
assert_eq #to_str("s"), "s";
assert_eq #len([1, 2, 3]), 3;
assert_eq #len("héllo"), 5;
let arr = [];
#push(arr, 4);
#push(#push(arr, 5), 6);
assert_eq #len(arr), 3;
assert_eq #get(arr, 0), 4;
assert_eq #get(arr, 2), 6;
assert_eq #clock() >= 0, true;`)

	if out != "Stack: [1, x]\n" {
		t.Fatalf("unexpected debug_stack output %q", out)
	}
}

func TestLookupNative(t *testing.T) {
	if idx, ok := LookupNative("to_str"); !ok || idx != 2 {
		t.Fatalf("LookupNative(to_str) = %d, %v", idx, ok)
	}
	if _, ok := LookupNative("missing"); ok {
		t.Fatal("unknown native resolved")
	}
}

func TestTraceDoesNotChangeResult(t *testing.T) {
	m, _ := mustRun(t, `let x = 2 * 21;`, WithTrace(true))
	expectGlobal(t, m, "x", object.Number(42))
}
