package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"sherbet/internal/ast"
	"sherbet/internal/compiler"
	"sherbet/internal/diag"
	"sherbet/internal/intern"
	"sherbet/internal/object"
	"sherbet/internal/parser"
	"sherbet/internal/vm"
)

const (
	prompt1 = "sherbet> "
	prompt2 = "....> "

	inputName = "<repl>"
)

type Options struct {
	MaxFrames  int
	StackSize  int
	ArityCheck bool
}

// Session keeps globals alive between inputs. Every input is compiled as
// its own script and run on the same VM.
type Session struct {
	out     io.Writer
	strs    *intern.Table
	machine *vm.VM
	globals map[string]bool
	opts    Options
}

func NewSession(out io.Writer, opts Options) *Session {
	strs := intern.New()
	return &Session{
		out:  out,
		strs: strs,
		machine: vm.New(strs,
			vm.WithOutput(out),
			vm.WithMaxFrames(opts.MaxFrames),
			vm.WithStackSize(opts.StackSize),
		),
		globals: map[string]bool{},
		opts:    opts,
	}
}

// Eval runs one complete input. A trailing expression statement becomes
// the input's result and is echoed.
func (s *Session) Eval(src string) error {
	program, diags := parser.Parse(src, diag.Discard)
	if len(diags) > 0 {
		s.report(diags)
		return &compiler.Error{Diagnostics: diags}
	}
	echo := returnLastExpression(program)

	copts := []compiler.Option{compiler.WithGlobals(s.globals), compiler.WithName(inputName)}
	if !s.opts.ArityCheck {
		copts = append(copts, compiler.WithChecker(nil))
	}
	fn, err := compiler.New(s.strs, nil, copts...).Compile(program)
	if err != nil {
		var cerr *compiler.Error
		if errors.As(err, &cerr) {
			s.report(cerr.Diagnostics)
		}
		return err
	}

	runErr := s.machine.Interpret(fn)
	// A failed input keeps only the globals it managed to define.
	for _, name := range declaredGlobals(program) {
		if _, ok := s.machine.Global(name); ok || runErr == nil {
			s.globals[name] = true
		}
	}
	if runErr != nil {
		var rerr *vm.RuntimeError
		if errors.As(runErr, &rerr) {
			s.report([]diag.Diagnostic{rerr.Diagnostic()})
		} else {
			fmt.Fprintln(s.out, runErr)
		}
		s.machine.Reset()
		return runErr
	}
	if res := s.machine.Result(); echo && object.Printable(res) {
		fmt.Fprintln(s.out, object.Inspect(res, s.strs))
	}
	return nil
}

func (s *Session) report(ds []diag.Diagnostic) {
	for _, d := range ds {
		fmt.Fprintln(s.out, d.Format(inputName))
	}
}

func declaredGlobals(program *ast.Program) []string {
	var names []string
	for _, st := range program.Statements {
		switch n := st.(type) {
		case *ast.LetStatement:
			names = append(names, n.Name.Value)
		case *ast.FuncStatement:
			names = append(names, n.Name.Value)
		}
	}
	return names
}

// returnLastExpression turns a trailing `expr;` into `return expr;`.
func returnLastExpression(program *ast.Program) bool {
	n := len(program.Statements)
	if n == 0 {
		return false
	}
	es, ok := program.Statements[n-1].(*ast.ExpressionStatement)
	if !ok || es.Expression == nil {
		return false
	}
	if _, assign := es.Expression.(*ast.AssignExpression); assign {
		return false
	}
	program.Statements[n-1] = &ast.ReturnStatement{Token: es.Token, ReturnValue: es.Expression}
	return true
}

// Start reads inputs from in until EOF or `exit`. Inputs spanning
// several lines are gathered until braces and parentheses balance.
func Start(in io.Reader, out io.Writer, opts Options) {
	scanner := bufio.NewScanner(in)
	session := NewSession(out, opts)

	fmt.Fprint(out, "sherbet REPL (Ctrl+D to exit)\n")

	var buf strings.Builder
	braces, parens := 0, 0
	for {
		if buf.Len() == 0 {
			fmt.Fprint(out, prompt1)
		} else {
			fmt.Fprint(out, prompt2)
		}
		if !scanner.Scan() {
			fmt.Fprint(out, "\n")
			return
		}

		line := scanner.Text()
		trim := strings.TrimSpace(line)
		if buf.Len() == 0 && (trim == "exit" || trim == "quit") {
			return
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		braces, parens = updateBalance(line, braces, parens)
		if braces > 0 || parens > 0 {
			continue
		}

		src := buf.String()
		buf.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}
		_ = session.Eval(src)
	}
}

func updateBalance(line string, braces, parens int) (int, int) {
	inString := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if inString {
			switch ch {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		if ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			break
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			braces++
		case '}':
			if braces > 0 {
				braces--
			}
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		}
	}
	return braces, parens
}
