package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"sherbet/internal/ast"
	"sherbet/internal/code"
	"sherbet/internal/diag"
	"sherbet/internal/intern"
	"sherbet/internal/lexer"
	"sherbet/internal/native"
	"sherbet/internal/object"
	"sherbet/internal/parser"
	"sherbet/internal/token"
)

var log = commonlog.GetLogger("sherbet.compiler")

// jumpPlaceholder marks a jump whose target is not known yet.
const jumpPlaceholder = 0xFFFF

type Compiler struct {
	strs    *intern.Table
	sink    diag.Sink
	checker Checker
	name    string

	// globals holds every name declared at the top level of the script.
	globals map[string]bool

	fs    *funcState
	diags []diag.Diagnostic

	curLine int
	curCol  int
}

type Option func(*Compiler)

// WithChecker replaces the default ArityChecker. A nil checker turns
// static call checking off.
func WithChecker(ch Checker) Option {
	return func(c *Compiler) { c.checker = ch }
}

// WithName sets the name of the top-level function.
func WithName(name string) Option {
	return func(c *Compiler) { c.name = name }
}

// WithGlobals declares names defined by earlier scripts run on the same VM.
func WithGlobals(names map[string]bool) Option {
	return func(c *Compiler) {
		for name := range names {
			c.globals[name] = true
		}
	}
}

func New(strs *intern.Table, sink diag.Sink, opts ...Option) *Compiler {
	if sink == nil {
		sink = diag.Discard
	}
	c := &Compiler{
		strs:    strs,
		sink:    sink,
		checker: NewArityChecker(),
		name:    "<script>",
		globals: map[string]bool{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileSource parses and compiles src. Parse errors stop before
// compilation; both kinds are reported to sink and returned as *Error.
func CompileSource(src string, strs *intern.Table, sink diag.Sink, opts ...Option) (*object.Function, error) {
	p := parser.New(lexer.New(src), parser.WithSink(sink))
	program := p.ParseProgram()
	if diags := p.Diagnostics(); len(diags) > 0 {
		return nil, &Error{Diagnostics: diags}
	}
	return New(strs, sink, opts...).Compile(program)
}

func (c *Compiler) Diagnostics() []diag.Diagnostic { return c.diags }

// Compile turns program into the top-level function. Compilation carries on
// past errors so that every problem is reported at once.
func (c *Compiler) Compile(program *ast.Program) (*object.Function, error) {
	c.fs = newFuncState(nil, c.name, 0)

	for _, s := range program.Statements {
		switch n := s.(type) {
		case *ast.LetStatement:
			c.globals[n.Name.Value] = true
		case *ast.FuncStatement:
			c.globals[n.Name.Value] = true
		}
	}
	if c.checker != nil {
		declareBindings(c.checker, program)
	}

	for _, s := range program.Statements {
		c.compileStatement(s)
	}
	c.emit(code.OpVoid)
	c.emit(code.OpReturn)

	fn := c.fs.fn
	c.fs = nil

	if len(c.diags) > 0 {
		log.Debugf("compile of %s failed with %d errors", fn.Name, len(c.diags))
		return nil, &Error{Diagnostics: c.diags}
	}
	log.Debugf("compiled %s: %d bytes, %d constants", fn.Name, len(fn.Chunk.Code), len(fn.Chunk.Constants))
	return fn, nil
}

/* -------------------- statements -------------------- */

func (c *Compiler) compileStatement(node ast.Statement) {
	switch n := node.(type) {
	case *ast.ExpressionStatement:
		c.setPosFromToken(n.Token)
		if assign, ok := n.Expression.(*ast.AssignExpression); ok {
			if idx, found, uninit := resolveLocal(c.fs, assign.Name.Value); found {
				if uninit {
					c.errorAt(assign.Name.Token, fmt.Sprintf("cannot read local variable '%s' in its own initializer", assign.Name.Value))
				}
				c.compileExpression(assign.Value)
				c.setPosFromToken(assign.Token)
				c.emit(code.OpSetLocalConsumes, idx)
				return
			}
		}
		c.compileExpression(n.Expression)
		c.emit(code.OpPop)

	case *ast.LetStatement:
		c.setPosFromToken(n.Token)
		if c.fs.scopeDepth == 0 {
			c.compileExpression(n.Value)
			c.setPosFromToken(n.Token)
			c.emit(code.OpDefineGlobal, c.nameConstant(n.Name.Value, n.Name.Token))
			return
		}
		c.addLocal(n.Name.Value, n.Name.Token)
		c.compileExpression(n.Value)
		c.markInitialized()

	case *ast.FuncStatement:
		c.setPosFromToken(n.Token)
		if c.fs.scopeDepth == 0 {
			c.compileFunction(n)
			c.setPosFromToken(n.Token)
			c.emit(code.OpDefineGlobal, c.nameConstant(n.Name.Value, n.Name.Token))
			return
		}
		// Initialized before the body so the function can call itself.
		c.addLocal(n.Name.Value, n.Name.Token)
		c.markInitialized()
		c.compileFunction(n)

	case *ast.ReturnStatement:
		c.setPosFromToken(n.Token)
		if n.ReturnValue == nil {
			c.emit(code.OpVoid)
		} else {
			c.compileExpression(n.ReturnValue)
		}
		c.setPosFromToken(n.Token)
		c.emit(code.OpReturn)

	case *ast.PrintStatement:
		c.compileExpression(n.Value)
		c.setPosFromToken(n.Token)
		c.emit(code.OpPrint)

	case *ast.AssertStatement:
		c.compileExpression(n.Left)
		c.compileExpression(n.Right)
		c.setPosFromToken(n.Token)
		if n.Equal {
			c.emit(code.OpAssertEq)
		} else {
			c.emit(code.OpAssertNe)
		}

	case *ast.BlockStatement:
		c.beginScope()
		for _, s := range n.Statements {
			c.compileStatement(s)
		}
		c.endScope()

	case *ast.IfStatement:
		c.compileExpression(n.Condition)
		c.setPosFromToken(n.Token)
		thenJump := c.emitJump(code.OpPopJumpToIfFalse)

		c.compileStatement(n.Consequence)

		if n.Alternative == nil {
			c.patchJump(thenJump, n.Token)
			return
		}
		elseJump := c.emitJump(code.OpJumpTo)
		c.patchJump(thenJump, n.Token)
		c.compileStatement(n.Alternative)
		c.patchJump(elseJump, n.Token)

	case *ast.WhileStatement:
		loopStart := len(c.fs.fn.Chunk.Code)
		c.compileExpression(n.Condition)
		c.setPosFromToken(n.Token)
		exitJump := c.emitJump(code.OpPopJumpToIfFalse)

		c.compileStatement(n.Body)

		c.setPosFromToken(n.Token)
		c.emit(code.OpJumpTo, loopStart)
		c.patchJump(exitJump, n.Token)

	default:
		panic(fmt.Sprintf("compiler: unhandled statement %T", node))
	}
}

// compileFunction emits the closure for a declaration into the current
// function, leaving it on the stack.
func (c *Compiler) compileFunction(n *ast.FuncStatement) {
	if len(n.Parameters) > 255 {
		c.errorAt(n.Token, "too many parameters")
	}

	c.fs = newFuncState(c.fs, n.Name.Value, len(n.Parameters))
	c.beginScope()
	for _, p := range n.Parameters {
		c.addLocal(p.Value, p.Token)
		c.markInitialized()
	}
	for _, s := range n.Body.Statements {
		c.compileStatement(s)
	}
	c.emit(code.OpVoid)
	c.emit(code.OpReturn)

	child := c.fs
	c.fs = child.enclosing

	c.setPosFromToken(n.Token)
	k := c.addConstant(child.fn, n.Token)
	c.emit(code.OpClosure, k)
	chunk := &c.fs.fn.Chunk
	for _, uv := range child.upvalues {
		chunk.Code = append(chunk.Code, code.MakeUpvalue(uv.IsLocal, uv.Index)...)
	}
}

/* -------------------- expressions -------------------- */

func (c *Compiler) compileExpression(node ast.Expression) {
	switch n := node.(type) {
	case *ast.NumberLiteral:
		c.setPosFromToken(n.Token)
		c.emit(code.OpConstant, c.addConstant(object.Number(n.Value), n.Token))

	case *ast.StringLiteral:
		c.setPosFromToken(n.Token)
		id := c.strs.Intern(n.Value)
		c.emit(code.OpConstant, c.addConstant(object.String{ID: id}, n.Token))

	case *ast.BooleanLiteral:
		if n.Value {
			c.emit(code.OpTrue)
		} else {
			c.emit(code.OpFalse)
		}

	case *ast.VoidLiteral:
		c.emit(code.OpVoid)

	case *ast.Identifier:
		c.setPosFromToken(n.Token)
		c.compileGet(n)

	case *ast.AssignExpression:
		c.compileExpression(n.Value)
		c.setPosFromToken(n.Token)
		c.compileSet(n.Name)

	case *ast.PrefixExpression:
		c.compileExpression(n.Right)
		c.setPosFromToken(n.Token)
		switch n.Operator {
		case "-":
			c.emit(code.OpNegate)
		case "!":
			c.emit(code.OpNot)
		default:
			c.errorAt(n.Token, fmt.Sprintf("unknown operator %s", n.Operator))
		}

	case *ast.InfixExpression:
		switch n.Operator {
		case "and":
			c.compileExpression(n.Left)
			c.setPosFromToken(n.Token)
			end := c.emitJump(code.OpJumpToIfFalse)
			c.emit(code.OpPop)
			c.compileExpression(n.Right)
			c.patchJump(end, n.Token)
			return
		case "or":
			c.compileExpression(n.Left)
			c.setPosFromToken(n.Token)
			elseJump := c.emitJump(code.OpJumpToIfFalse)
			endJump := c.emitJump(code.OpJumpTo)
			c.patchJump(elseJump, n.Token)
			c.emit(code.OpPop)
			c.compileExpression(n.Right)
			c.patchJump(endJump, n.Token)
			return
		}

		op, ok := infixOps[n.Operator]
		if !ok {
			c.errorAt(n.Token, fmt.Sprintf("unknown operator %s", n.Operator))
			return
		}
		c.compileExpression(n.Left)
		c.compileExpression(n.Right)
		c.setPosFromToken(n.Token)
		c.emit(op)

	case *ast.ArrayLiteral:
		for _, el := range n.Elements {
			c.compileExpression(el)
		}
		c.setPosFromToken(n.Token)
		if len(n.Elements) > 0xFFFF {
			c.errorAt(n.Token, "too many elements in array literal")
		}
		c.emit(code.OpArray, len(n.Elements))

	case *ast.CallExpression:
		c.compileExpression(n.Function)
		for _, a := range n.Arguments {
			c.compileExpression(a)
		}
		if len(n.Arguments) > 255 {
			c.errorAt(n.Token, "too many arguments")
		}
		if id, ok := n.Function.(*ast.Identifier); ok && c.checker != nil {
			if err := c.checker.CheckCall(id.Value, len(n.Arguments)); err != nil {
				c.errorAt(id.Token, err.Error())
			}
		}
		c.setPosFromToken(n.Token)
		c.emit(code.OpCall, len(n.Arguments))

	case *ast.NativeCallExpression:
		c.compileNativeCall(n)

	default:
		panic(fmt.Sprintf("compiler: unhandled expression %T", node))
	}
}

var infixOps = map[string]code.Opcode{
	"+":  code.OpAdd,
	"-":  code.OpSub,
	"*":  code.OpMul,
	"/":  code.OpDiv,
	"<":  code.OpLess,
	"<=": code.OpLessEq,
	">":  code.OpGreater,
	">=": code.OpGreaterEq,
	"==": code.OpEqual,
	"!=": code.OpNotEqual,
}

func (c *Compiler) compileNativeCall(n *ast.NativeCallExpression) {
	idx, spec, ok := native.Lookup(n.Name.Value)
	if !ok {
		c.errorAt(n.Name.Token, fmt.Sprintf("unknown native function '#%s'", n.Name.Value))
		return
	}
	argc := len(n.Arguments)
	if spec.Arity != native.Variadic && spec.Arity != argc {
		c.errorAt(n.Name.Token, fmt.Sprintf("native '#%s' expects %d %s, got %d", spec.Name, spec.Arity, plural(spec.Arity, "argument"), argc))
	}
	if argc > 255 {
		c.errorAt(n.Token, "too many arguments")
	}

	for _, a := range n.Arguments {
		c.compileExpression(a)
	}
	c.setPosFromToken(n.Token)
	if argc == 0 {
		c.emit(code.OpCallNative, idx)
	} else {
		c.emit(code.OpCallFnArgPtr, idx, argc)
	}
	if !spec.Returns {
		c.emit(code.OpVoid)
	}
}

// compileGet resolves a name as a local, then an upvalue, then a global.
func (c *Compiler) compileGet(id *ast.Identifier) {
	if idx, ok, uninit := resolveLocal(c.fs, id.Value); ok {
		if uninit {
			c.errorAt(id.Token, fmt.Sprintf("cannot read local variable '%s' in its own initializer", id.Value))
		}
		c.emit(code.OpGetLocal, idx)
		return
	}
	if idx, ok := c.resolveUpvalue(c.fs, id.Value, id.Token); ok {
		c.emit(code.OpGetUpValue, idx)
		return
	}
	if c.globals[id.Value] {
		c.emit(code.OpGetGlobal, c.nameConstant(id.Value, id.Token))
		return
	}
	c.errorAt(id.Token, fmt.Sprintf("undefined identifier '%s'", id.Value))
}

func (c *Compiler) compileSet(id *ast.Identifier) {
	if idx, ok, uninit := resolveLocal(c.fs, id.Value); ok {
		if uninit {
			c.errorAt(id.Token, fmt.Sprintf("cannot read local variable '%s' in its own initializer", id.Value))
		}
		c.emit(code.OpSetLocal, idx)
		return
	}
	if idx, ok := c.resolveUpvalue(c.fs, id.Value, id.Token); ok {
		c.emit(code.OpSetUpValue, idx)
		return
	}
	if c.globals[id.Value] {
		c.emit(code.OpSetGlobal, c.nameConstant(id.Value, id.Token))
		return
	}
	c.errorAt(id.Token, fmt.Sprintf("undefined identifier '%s'", id.Value))
}

/* -------------------- emission -------------------- */

func (c *Compiler) emit(op code.Opcode, operands ...int) int {
	chunk := &c.fs.fn.Chunk
	ins := code.Make(op, operands...)
	pos := len(chunk.Code)
	chunk.Code = append(chunk.Code, ins...)
	if c.curLine != 0 {
		chunk.Pos = append(chunk.Pos, code.SourcePos{
			Offset: pos,
			Line:   c.curLine,
			Col:    c.curCol,
		})
	}
	return pos
}

func (c *Compiler) emitJump(op code.Opcode) int {
	return c.emit(op, jumpPlaceholder)
}

// patchJump points the jump at pos to the next instruction to be emitted.
// Patching a jump twice is a compiler bug.
func (c *Compiler) patchJump(pos int, at token.Token) {
	ins := c.fs.fn.Chunk.Code
	if code.ReadUint16(ins[pos+1:]) != jumpPlaceholder {
		panic(fmt.Sprintf("compiler: jump at %d patched twice", pos))
	}
	target := len(ins)
	if target >= jumpPlaceholder {
		c.errorAt(at, "too much code to jump over")
		target = 0
	}
	patched := code.Make(code.Opcode(ins[pos]), target)
	copy(ins[pos:], patched)
}

func (c *Compiler) addConstant(v object.Value, at token.Token) int {
	chunk := &c.fs.fn.Chunk
	if len(chunk.Constants) == 0xFFFF {
		c.errorAt(at, "too many constants in one function")
	}
	return chunk.AddConstant(v)
}

// nameConstant returns the pool index of the interned global name, adding it
// once per function.
func (c *Compiler) nameConstant(name string, at token.Token) int {
	if k, ok := c.fs.names[name]; ok {
		return k
	}
	k := c.addConstant(object.String{ID: c.strs.Intern(name)}, at)
	c.fs.names[name] = k
	return k
}

func (c *Compiler) setPosFromToken(tok token.Token) {
	c.curLine = tok.Line
	c.curCol = tok.Col
}

func (c *Compiler) errorAt(tok token.Token, msg string) {
	length := 1
	if tok.Literal != "" {
		length = len([]rune(tok.Literal))
	}
	rng := diag.Range{Line: tok.Line, Col: tok.Col, Length: length}
	c.diags = append(c.diags, diag.Diagnostic{
		Code:     diag.CodeCompile,
		Title:    "Compiler",
		Message:  msg,
		Severity: diag.SeverityError,
		Range:    rng,
	})
	c.sink.Report(&rng, "Compiler", msg)
}
