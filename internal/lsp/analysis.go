package lsp

import (
	"errors"
	"sort"

	"sherbet/internal/ast"
	"sherbet/internal/compiler"
	"sherbet/internal/diag"
	"sherbet/internal/intern"
	"sherbet/internal/lint"
	"sherbet/internal/native"
	"sherbet/internal/parser"
)

type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymParam
	SymFunc
	SymNative
)

func (k SymbolKind) String() string {
	switch k {
	case SymParam:
		return "parameter"
	case SymFunc:
		return "function"
	case SymNative:
		return "native"
	default:
		return "variable"
	}
}

// Binding is one declared name. Natives have no Decl.
type Binding struct {
	Name   string
	Kind   SymbolKind
	Decl   *ast.Identifier
	Params []string
	Global bool
	Arity  int
}

// Reference is one identifier occurrence, declarations included.
// Binding is nil when the name does not resolve.
type Reference struct {
	Ident   *ast.Identifier
	Binding *Binding
}

// Analysis is a parsed and compiled snapshot of one document.
type Analysis struct {
	Text        string
	Program     *ast.Program
	Diagnostics []diag.Diagnostic
	Defs        []*Binding
	Refs        []*Reference
}

// Analyze parses, compiles and lints text, collecting every diagnostic,
// then resolves identifiers to their declarations.
func Analyze(text string) *Analysis {
	prog, parseDiags := parser.Parse(text, diag.Discard)
	an := &Analysis{Text: text, Program: prog}

	if len(parseDiags) > 0 {
		an.Diagnostics = parseDiags
	} else {
		_, err := compiler.New(intern.New(), diag.Discard).Compile(prog)
		var cerr *compiler.Error
		if errors.As(err, &cerr) {
			an.Diagnostics = cerr.Diagnostics
		}
		an.Diagnostics = append(an.Diagnostics, lint.Run(prog)...)
	}

	r := &resolver{an: an, natives: map[string]*Binding{}}
	r.program(prog)
	return an
}

type scope struct {
	parent   *scope
	bindings map[string]*Binding
}

func (s *scope) lookup(name string) *Binding {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.bindings[name]; ok {
			return b
		}
	}
	return nil
}

type resolver struct {
	an      *Analysis
	natives map[string]*Binding
}

func (r *resolver) declare(sc *scope, id *ast.Identifier, kind SymbolKind) *Binding {
	if id == nil || id.Value == "" {
		return nil
	}
	b := &Binding{Name: id.Value, Kind: kind, Decl: id, Global: sc.parent == nil}
	sc.bindings[id.Value] = b
	r.an.Defs = append(r.an.Defs, b)
	return b
}

func (r *resolver) ref(id *ast.Identifier, b *Binding) {
	if id != nil {
		r.an.Refs = append(r.an.Refs, &Reference{Ident: id, Binding: b})
	}
}

func (r *resolver) program(prog *ast.Program) {
	if prog == nil {
		return
	}
	root := &scope{bindings: map[string]*Binding{}}

	// Globals are visible before their declaration.
	for _, st := range prog.Statements {
		switch n := st.(type) {
		case *ast.LetStatement:
			r.declare(root, n.Name, SymVar)
		case *ast.FuncStatement:
			if b := r.declare(root, n.Name, SymFunc); b != nil {
				b.Params = paramNames(n.Parameters)
			}
		}
	}
	for _, st := range prog.Statements {
		r.statement(root, st)
	}
}

func (r *resolver) statement(sc *scope, st ast.Statement) {
	switch n := st.(type) {
	case *ast.LetStatement:
		r.expression(sc, n.Value)
		b := sc.bindings[nameOf(n.Name)]
		if sc.parent != nil || b == nil {
			b = r.declare(sc, n.Name, SymVar)
		}
		r.ref(n.Name, b)

	case *ast.FuncStatement:
		b := sc.bindings[nameOf(n.Name)]
		if sc.parent != nil || b == nil {
			b = r.declare(sc, n.Name, SymFunc)
			if b != nil {
				b.Params = paramNames(n.Parameters)
			}
		}
		r.ref(n.Name, b)

		inner := &scope{parent: sc, bindings: map[string]*Binding{}}
		for _, p := range n.Parameters {
			r.ref(p, r.declare(inner, p, SymParam))
		}
		if n.Body != nil {
			for _, s := range n.Body.Statements {
				r.statement(inner, s)
			}
		}

	case *ast.BlockStatement:
		r.block(sc, n)

	case *ast.IfStatement:
		r.expression(sc, n.Condition)
		r.block(sc, n.Consequence)
		r.block(sc, n.Alternative)

	case *ast.WhileStatement:
		r.expression(sc, n.Condition)
		r.block(sc, n.Body)

	case *ast.ReturnStatement:
		r.expression(sc, n.ReturnValue)

	case *ast.PrintStatement:
		r.expression(sc, n.Value)

	case *ast.AssertStatement:
		r.expression(sc, n.Left)
		r.expression(sc, n.Right)

	case *ast.ExpressionStatement:
		r.expression(sc, n.Expression)
	}
}

func (r *resolver) block(sc *scope, b *ast.BlockStatement) {
	if b == nil {
		return
	}
	inner := &scope{parent: sc, bindings: map[string]*Binding{}}
	for _, s := range b.Statements {
		r.statement(inner, s)
	}
}

func (r *resolver) expression(sc *scope, e ast.Expression) {
	switch n := e.(type) {
	case *ast.Identifier:
		r.ref(n, sc.lookup(n.Value))

	case *ast.AssignExpression:
		r.expression(sc, n.Value)
		r.ref(n.Name, sc.lookup(nameOf(n.Name)))

	case *ast.PrefixExpression:
		r.expression(sc, n.Right)

	case *ast.InfixExpression:
		r.expression(sc, n.Left)
		r.expression(sc, n.Right)

	case *ast.CallExpression:
		r.expression(sc, n.Function)
		for _, a := range n.Arguments {
			r.expression(sc, a)
		}

	case *ast.NativeCallExpression:
		r.ref(n.Name, r.native(nameOf(n.Name)))
		for _, a := range n.Arguments {
			r.expression(sc, a)
		}

	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			r.expression(sc, el)
		}
	}
}

func (r *resolver) native(name string) *Binding {
	if b, ok := r.natives[name]; ok {
		return b
	}
	_, spec, ok := native.Lookup(name)
	if !ok {
		return nil
	}
	b := &Binding{Name: name, Kind: SymNative, Arity: spec.Arity, Global: true}
	r.natives[name] = b
	return b
}

// OccurrenceAt returns the identifier occurrence under pos.
func (a *Analysis) OccurrenceAt(pos Pos) *Reference {
	for _, ref := range a.Refs {
		tok := ref.Ident.Token
		width := len(ref.Ident.Value)
		if width == 0 {
			width = 1
		}
		if tok.Line == pos.Line && pos.Col >= tok.Col && pos.Col < tok.Col+width {
			return ref
		}
	}
	return nil
}

// ReferencesTo lists every occurrence bound to b, in source order.
func (a *Analysis) ReferencesTo(b *Binding) []*Reference {
	var out []*Reference
	for _, ref := range a.Refs {
		if ref.Binding == b {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Ident.Token, out[j].Ident.Token
		if ti.Line != tj.Line {
			return ti.Line < tj.Line
		}
		return ti.Col < tj.Col
	})
	return out
}

func paramNames(ids []*ast.Identifier) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, nameOf(id))
	}
	return out
}

func nameOf(id *ast.Identifier) string {
	if id == nil {
		return ""
	}
	return id.Value
}
