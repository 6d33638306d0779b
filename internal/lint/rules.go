package lint

import (
	"fmt"
	"sort"

	"sherbet/internal/ast"
	"sherbet/internal/diag"
	"sherbet/internal/token"
)

type symKind int

const (
	kindVar symKind = iota
	kindParam
	kindFunc
)

type sym struct {
	name string
	tok  token.Token
	used bool
	kind symKind
}

type scope struct {
	parent *scope
	syms   map[string]*sym
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, syms: map[string]*sym{}}
}

func (s *scope) lookup(name string) *sym {
	if sc := s.owner(name); sc != nil {
		return sc.syms[name]
	}
	return nil
}

// owner returns the innermost scope declaring name.
func (s *scope) owner(name string) *scope {
	for sc := s; sc != nil; sc = sc.parent {
		if _, ok := sc.syms[name]; ok {
			return sc
		}
	}
	return nil
}

// global reports whether s is the script's top-level scope.
func (s *scope) global() bool { return s.parent == nil }

type runner struct {
	diags []diag.Diagnostic
	sc    *scope
	opts  Options
}

func (r *runner) warn(tok token.Token, code string, msg string) {
	r.diags = append(r.diags, diag.Diagnostic{
		Code:     code,
		Message:  msg,
		Severity: diag.SeverityWarning,
		Range: diag.Range{
			Line:   tok.Line,
			Col:    tok.Col,
			Length: tokLength(tok),
		},
	})
}

func tokLength(tok token.Token) int {
	if tok.Literal == "" {
		return 1
	}
	return len(tok.Literal)
}

func (r *runner) push() { r.sc = newScope(r.sc) }

// pop reports unused locals in declaration order. Globals are never
// reported since later input may still read them.
func (r *runner) pop() {
	syms := make([]*sym, 0, len(r.sc.syms))
	for _, sm := range r.sc.syms {
		syms = append(syms, sm)
	}
	sort.Slice(syms, func(i, j int) bool {
		a, b := syms[i].tok, syms[j].tok
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	for _, sm := range syms {
		if sm.used || sm.name == "_" {
			continue
		}
		switch sm.kind {
		case kindVar:
			r.warn(sm.tok, CodeUnusedVariable, fmt.Sprintf("unused variable: %s", sm.name))
		case kindParam:
			r.warn(sm.tok, CodeUnusedParameter, fmt.Sprintf("unused parameter: %s", sm.name))
		}
	}
	r.sc = r.sc.parent
}

func (r *runner) declare(id *ast.Identifier, k symKind) {
	if id == nil || id.Value == "" {
		return
	}
	if r.opts.CheckShadowing && !r.sc.global() {
		if outer := r.sc.parent.owner(id.Value); outer != nil && !outer.global() {
			r.warn(id.Token, CodeShadow, fmt.Sprintf("variable '%s' shadows outer variable", id.Value))
		}
	}
	r.sc.syms[id.Value] = &sym{name: id.Value, tok: id.Token, kind: k}
}

func (r *runner) use(name string) {
	if sm := r.sc.lookup(name); sm != nil {
		sm.used = true
	}
}

func (r *runner) walkProgram(p *ast.Program) {
	// Globals resolve late, so a function body may read one declared
	// further down.
	for _, st := range p.Statements {
		switch n := st.(type) {
		case *ast.LetStatement:
			r.declare(n.Name, kindVar)
		case *ast.FuncStatement:
			r.declare(n.Name, kindFunc)
		}
	}
	r.walkStatements(p.Statements)
}

func (r *runner) walkBlock(b *ast.BlockStatement) {
	r.push()
	r.walkBlockWithScope(b)
	r.pop()
}

func (r *runner) walkBlockWithScope(b *ast.BlockStatement) {
	if b == nil {
		return
	}
	r.walkStatements(b.Statements)
}

func (r *runner) walkStatements(stmts []ast.Statement) {
	terminated := false
	for _, st := range stmts {
		if terminated {
			r.warn(firstTokenOfStmt(st), CodeUnreachable, "unreachable code")
			terminated = false
		}
		r.walkStmt(st)
		if isTerminator(st) {
			terminated = true
		}
	}
}

func isTerminator(st ast.Statement) bool {
	switch n := st.(type) {
	case *ast.ReturnStatement:
		return true
	case *ast.IfStatement:
		return n.Alternative != nil && blockTerminates(n.Consequence) && blockTerminates(n.Alternative)
	case *ast.BlockStatement:
		return blockTerminates(n)
	}
	return false
}

func blockTerminates(b *ast.BlockStatement) bool {
	if b == nil {
		return false
	}
	for _, st := range b.Statements {
		if isTerminator(st) {
			return true
		}
	}
	return false
}

func firstTokenOfStmt(st ast.Statement) token.Token {
	switch n := st.(type) {
	case *ast.ExpressionStatement:
		return n.Token
	case *ast.LetStatement:
		return n.Token
	case *ast.ReturnStatement:
		return n.Token
	case *ast.PrintStatement:
		return n.Token
	case *ast.AssertStatement:
		return n.Token
	case *ast.BlockStatement:
		return n.Token
	case *ast.IfStatement:
		return n.Token
	case *ast.WhileStatement:
		return n.Token
	case *ast.FuncStatement:
		return n.Token
	default:
		return token.Token{Line: 1, Col: 1, Literal: ""}
	}
}

func (r *runner) walkStmt(st ast.Statement) {
	if st == nil {
		return
	}
	switch n := st.(type) {
	case *ast.BlockStatement:
		r.walkBlock(n)

	case *ast.LetStatement:
		r.walkExpr(n.Value)
		if !r.sc.global() {
			r.declare(n.Name, kindVar)
		}

	case *ast.FuncStatement:
		if !r.sc.global() {
			// Declared before the body so the function can call itself.
			r.declare(n.Name, kindFunc)
		}
		r.push()
		for _, p := range n.Parameters {
			r.declare(p, kindParam)
		}
		r.walkBlockWithScope(n.Body)
		r.pop()

	case *ast.ReturnStatement:
		r.walkExpr(n.ReturnValue)

	case *ast.PrintStatement:
		r.walkExpr(n.Value)

	case *ast.AssertStatement:
		r.walkExpr(n.Left)
		r.walkExpr(n.Right)

	case *ast.ExpressionStatement:
		r.walkExpr(n.Expression)

	case *ast.IfStatement:
		r.walkExpr(n.Condition)
		if n.Consequence != nil {
			r.walkBlock(n.Consequence)
		}
		if n.Alternative != nil {
			r.walkBlock(n.Alternative)
		}

	case *ast.WhileStatement:
		r.walkExpr(n.Condition)
		r.walkBlock(n.Body)
	}
}

func (r *runner) walkExpr(e ast.Expression) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Identifier:
		r.use(n.Value)

	case *ast.AssignExpression:
		// Writing a variable does not count as using it.
		r.walkExpr(n.Value)

	case *ast.InfixExpression:
		r.walkExpr(n.Left)
		r.walkExpr(n.Right)

	case *ast.PrefixExpression:
		r.walkExpr(n.Right)

	case *ast.CallExpression:
		r.walkExpr(n.Function)
		for _, a := range n.Arguments {
			r.walkExpr(a)
		}

	case *ast.NativeCallExpression:
		for _, a := range n.Arguments {
			r.walkExpr(a)
		}

	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			r.walkExpr(el)
		}
	}
}
