package compiler

import (
	"fmt"

	"sherbet/internal/ast"
)

// Checker is consulted for statically detectable call mistakes. Before
// compiling, the compiler walks the whole program and reports every
// function declaration and every other binding of a name; CheckCall is
// then asked about each call whose callee is a plain identifier.
type Checker interface {
	DeclareFunc(name string, arity int)
	Rebind(name string)
	CheckCall(name string, argc int) error
}

// ArityChecker knows a name's arity only while every binding of that name
// in the program is a function declaration with the same parameter count.
type ArityChecker struct {
	arity map[string]int
	dirty map[string]bool
}

func NewArityChecker() *ArityChecker {
	return &ArityChecker{arity: map[string]int{}, dirty: map[string]bool{}}
}

func (a *ArityChecker) DeclareFunc(name string, arity int) {
	if prev, ok := a.arity[name]; ok && prev != arity {
		a.dirty[name] = true
		return
	}
	a.arity[name] = arity
}

func (a *ArityChecker) Rebind(name string) {
	a.dirty[name] = true
}

func (a *ArityChecker) CheckCall(name string, argc int) error {
	if a.dirty[name] {
		return nil
	}
	want, ok := a.arity[name]
	if !ok || want == argc {
		return nil
	}
	return fmt.Errorf("function '%s' expects %d %s, got %d", name, want, plural(want, "argument"), argc)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// declareBindings feeds every binding site in the program to ch.
func declareBindings(ch Checker, node ast.Node) {
	switch n := node.(type) {
	case *ast.Program:
		for _, s := range n.Statements {
			declareBindings(ch, s)
		}
	case *ast.BlockStatement:
		for _, s := range n.Statements {
			declareBindings(ch, s)
		}
	case *ast.FuncStatement:
		ch.DeclareFunc(n.Name.Value, len(n.Parameters))
		for _, p := range n.Parameters {
			ch.Rebind(p.Value)
		}
		declareBindings(ch, n.Body)
	case *ast.LetStatement:
		ch.Rebind(n.Name.Value)
		declareBindings(ch, n.Value)
	case *ast.IfStatement:
		declareBindings(ch, n.Condition)
		declareBindings(ch, n.Consequence)
		if n.Alternative != nil {
			declareBindings(ch, n.Alternative)
		}
	case *ast.WhileStatement:
		declareBindings(ch, n.Condition)
		declareBindings(ch, n.Body)
	case *ast.ReturnStatement:
		if n.ReturnValue != nil {
			declareBindings(ch, n.ReturnValue)
		}
	case *ast.ExpressionStatement:
		declareBindings(ch, n.Expression)
	case *ast.PrintStatement:
		declareBindings(ch, n.Value)
	case *ast.AssertStatement:
		declareBindings(ch, n.Left)
		declareBindings(ch, n.Right)
	case *ast.AssignExpression:
		ch.Rebind(n.Name.Value)
		declareBindings(ch, n.Value)
	case *ast.InfixExpression:
		declareBindings(ch, n.Left)
		declareBindings(ch, n.Right)
	case *ast.PrefixExpression:
		declareBindings(ch, n.Right)
	case *ast.CallExpression:
		declareBindings(ch, n.Function)
		for _, a := range n.Arguments {
			declareBindings(ch, a)
		}
	case *ast.NativeCallExpression:
		for _, a := range n.Arguments {
			declareBindings(ch, a)
		}
	case *ast.ArrayLiteral:
		for _, e := range n.Elements {
			declareBindings(ch, e)
		}
	}
}
