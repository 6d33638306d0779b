package vm

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"sherbet/internal/code"
	"sherbet/internal/intern"
	"sherbet/internal/native"
	"sherbet/internal/object"
)

const (
	DefaultStackSize = 4096
	DefaultMaxFrames = 256
)

var log = commonlog.GetLogger("sherbet.vm")

type VM struct {
	strs *intern.Table
	out  io.Writer

	// stack never grows: open upvalues point into it.
	stack []object.Value
	sp    int

	frames     []Frame
	frameCount int

	globals map[intern.ID]object.Value

	// openUpvalues holds the cells still pointing at live stack slots.
	openUpvalues []*object.Upvalue

	natives [native.Count]NativeFn
	result  object.Value
	trace   bool
	started time.Time
	halted  bool
}

type Option func(*VM)

func WithMaxFrames(n int) Option {
	return func(m *VM) {
		if n > 0 {
			m.frames = make([]Frame, n)
		}
	}
}

func WithStackSize(n int) Option {
	return func(m *VM) {
		if n > 0 {
			m.stack = make([]object.Value, n)
		}
	}
}

func WithOutput(w io.Writer) Option {
	return func(m *VM) {
		if w != nil {
			m.out = w
		}
	}
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(on bool) Option {
	return func(m *VM) { m.trace = on }
}

func New(strs *intern.Table, opts ...Option) *VM {
	m := &VM{
		strs:    strs,
		out:     os.Stdout,
		stack:   make([]object.Value, DefaultStackSize),
		frames:  make([]Frame, DefaultMaxFrames),
		globals: map[intern.ID]object.Value{},
		natives: natives,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interpret runs fn as the outermost call.
func (m *VM) Interpret(fn *object.Function) error {
	cl := &object.Closure{Fn: fn}
	m.push(cl)
	if err := m.Call(cl, 0); err != nil {
		return err
	}
	return m.Run()
}

// Call pushes a frame for cl. The closure and its arguments must already
// be on the stack.
func (m *VM) Call(cl *object.Closure, argCount int) error {
	if argCount < 0 || m.sp < argCount+1 {
		return fmt.Errorf("%w: call of %s with %d arguments, %d on the stack", ErrStackUnderflow, cl.Fn.Name, argCount, m.sp)
	}
	if argCount != cl.Fn.Arity {
		return m.runtimeError("%s expects %d arguments, got %d", cl.Fn.Name, cl.Fn.Arity, argCount)
	}
	if m.frameCount == len(m.frames) {
		return m.runtimeError("stack overflow")
	}
	m.frames[m.frameCount] = NewFrame(cl, m.sp-argCount-1)
	m.frameCount++
	return nil
}

// Reset clears a halted VM so it can run again. Globals survive; open
// upvalues are closed first so no closure keeps pointing into the stack.
func (m *VM) Reset() {
	m.closeUpvalues(0)
	m.truncate(0)
	m.frameCount = 0
	m.result = nil
	m.halted = false
}

// Result is the value returned by the outermost frame.
func (m *VM) Result() object.Value {
	return m.result
}

// Global reads a global by name.
func (m *VM) Global(name string) (object.Value, bool) {
	id, ok := m.strs.Find(name)
	if !ok {
		return nil, false
	}
	v, ok := m.globals[id]
	return v, ok
}

// Strings exposes the interner shared with the compiler.
func (m *VM) Strings() *intern.Table { return m.strs }

func (m *VM) Output() io.Writer { return m.out }

func (m *VM) currentFrame() *Frame {
	return &m.frames[m.frameCount-1]
}

// push relies on Run checking for one free slot before each instruction;
// no instruction grows the stack by more than one.
func (m *VM) push(v object.Value) {
	m.stack[m.sp] = v
	m.sp++
}

func (m *VM) pop() object.Value {
	m.sp--
	v := m.stack[m.sp]
	m.stack[m.sp] = nil
	return v
}

func (m *VM) peek(distance int) object.Value {
	return m.stack[m.sp-1-distance]
}

// truncate drops every slot at or above n.
func (m *VM) truncate(n int) {
	for i := n; i < m.sp; i++ {
		m.stack[i] = nil
	}
	m.sp = n
}

func (m *VM) captureUpvalue(slot int) *object.Upvalue {
	for _, uv := range m.openUpvalues {
		if uv.Index == slot {
			return uv
		}
	}
	uv := &object.Upvalue{Location: &m.stack[slot], Index: slot}
	m.openUpvalues = append(m.openUpvalues, uv)
	return uv
}

// closeUpvalues closes every open upvalue at or above slot from.
func (m *VM) closeUpvalues(from int) {
	kept := m.openUpvalues[:0]
	for _, uv := range m.openUpvalues {
		if uv.Index >= from {
			uv.Close()
			continue
		}
		kept = append(kept, uv)
	}
	for i := len(kept); i < len(m.openUpvalues); i++ {
		m.openUpvalues[i] = nil
	}
	m.openUpvalues = kept
}

// Run executes until the outermost frame returns or an error stops it.
func (m *VM) Run() error {
	if m.halted {
		return ErrHalted
	}
	if m.frameCount == 0 {
		return ErrNoFrame
	}
	for {
		if m.sp >= len(m.stack) {
			return m.runtimeError("stack overflow")
		}

		frame := m.currentFrame()
		ins := frame.Instructions()
		frame.ip++
		if frame.ip >= len(ins) {
			return m.runtimeError("%s: instruction pointer ran past the end of the code", frame.cl.Fn.Name)
		}
		op := code.Opcode(ins[frame.ip])

		if m.trace {
			m.traceInstruction(frame, ins)
		}

		switch op {
		case code.OpConstant:
			k := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			m.push(frame.constant(k))

		case code.OpTrue:
			m.push(object.Boolean(true))

		case code.OpFalse:
			m.push(object.Boolean(false))

		case code.OpVoid:
			m.push(object.Void{})

		case code.OpPop:
			m.pop()

		case code.OpGetLocal:
			slot := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			m.push(m.stack[frame.base+1+slot])

		case code.OpSetLocal:
			slot := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			m.stack[frame.base+1+slot] = m.peek(0)

		case code.OpSetLocalConsumes:
			slot := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			m.stack[frame.base+1+slot] = m.pop()

		case code.OpGetUpValue:
			idx := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			m.push(frame.cl.Upvalues[idx].Get())

		case code.OpSetUpValue:
			idx := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			frame.cl.Upvalues[idx].Set(m.peek(0))

		case code.OpCloseUpValue:
			m.closeUpvalues(m.sp - 1)
			m.pop()

		case code.OpDefineGlobal:
			k := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			m.globals[frame.constant(k).(object.String).ID] = m.pop()

		case code.OpGetGlobal:
			k := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			id := frame.constant(k).(object.String).ID
			v, ok := m.globals[id]
			if !ok {
				return m.runtimeError("undefined global '%s'", m.strs.Lookup(id))
			}
			m.push(v)

		case code.OpSetGlobal:
			k := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			id := frame.constant(k).(object.String).ID
			if _, ok := m.globals[id]; !ok {
				return m.runtimeError("undefined global '%s'", m.strs.Lookup(id))
			}
			m.globals[id] = m.peek(0)

		case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv,
			code.OpLess, code.OpLessEq, code.OpGreater, code.OpGreaterEq:
			if err := m.executeBinaryOperation(op); err != nil {
				return err
			}

		case code.OpEqual:
			b := m.pop()
			a := m.pop()
			m.push(object.Boolean(object.Equal(a, b)))

		case code.OpNotEqual:
			b := m.pop()
			a := m.pop()
			m.push(object.Boolean(!object.Equal(a, b)))

		case code.OpNot:
			v, ok := m.pop().(object.Boolean)
			if !ok {
				return m.runtimeError("operand of '!' must be a boolean")
			}
			m.push(!v)

		case code.OpNegate:
			operand := m.pop()
			v, ok := operand.(object.Number)
			if !ok {
				return m.runtimeError("operand of '-' must be a number, got %s", object.TypeName(operand))
			}
			m.push(-v)

		case code.OpJumpTo:
			target := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip = target - 1

		case code.OpJumpToIfFalse, code.OpPopJumpToIfFalse:
			target := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			var cond object.Value
			if op == code.OpPopJumpToIfFalse {
				cond = m.pop()
			} else {
				cond = m.peek(0)
			}
			b, ok := cond.(object.Boolean)
			if !ok {
				return m.runtimeError("condition must be a boolean, got %s", object.TypeName(cond))
			}
			if !b {
				frame.ip = target - 1
			}

		case code.OpCall:
			argc := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			callee := m.stack[m.sp-1-argc]
			cl, ok := callee.(*object.Closure)
			if !ok {
				return m.runtimeError("can only call functions, got %s", object.TypeName(callee))
			}
			if err := m.Call(cl, argc); err != nil {
				return err
			}

		case code.OpReturn:
			result := m.pop()
			m.closeUpvalues(frame.base)
			m.frameCount--
			m.truncate(frame.base)
			if m.frameCount == 0 {
				m.result = result
				return nil
			}
			m.push(result)

		case code.OpClosure:
			k := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			fn := frame.constant(k).(*object.Function)
			cl := &object.Closure{Fn: fn, Upvalues: make([]*object.Upvalue, fn.UpvalueCount)}
			for i := range cl.Upvalues {
				isLocal := code.ReadUint8(ins[frame.ip+1:]) == 1
				idx := int(code.ReadUint8(ins[frame.ip+2:]))
				frame.ip += 2
				if isLocal {
					cl.Upvalues[i] = m.captureUpvalue(frame.base + 1 + idx)
				} else {
					cl.Upvalues[i] = frame.cl.Upvalues[idx]
				}
			}
			m.push(cl)

		case code.OpCallNative:
			idx := int(code.ReadUint8(ins[frame.ip+1:]))
			frame.ip++
			if err := m.callNative(idx, nil); err != nil {
				return err
			}

		case code.OpCallFnArgPtr:
			idx := int(code.ReadUint8(ins[frame.ip+1:]))
			argc := int(code.ReadUint8(ins[frame.ip+2:]))
			frame.ip += 2
			args := make([]object.Value, argc)
			copy(args, m.stack[m.sp-argc:m.sp])
			m.truncate(m.sp - argc)
			if err := m.callNative(idx, args); err != nil {
				return err
			}

		case code.OpArray:
			n := int(code.ReadUint16(ins[frame.ip+1:]))
			frame.ip += 2
			elements := make([]object.Value, n)
			copy(elements, m.stack[m.sp-n:m.sp])
			m.truncate(m.sp - n)
			m.push(&object.Array{Elements: elements})

		case code.OpPrint:
			v := m.pop()
			if !object.Printable(v) {
				return m.runtimeError("cannot print %s", object.TypeName(v))
			}
			if _, err := io.WriteString(m.out, object.Inspect(v, m.strs)+"\n"); err != nil {
				return m.runtimeError("print: %v", err)
			}

		case code.OpAssertEq, code.OpAssertNe:
			b := m.pop()
			a := m.pop()
			equal := object.Equal(a, b)
			if op == code.OpAssertEq && !equal {
				return m.runtimeError("assertion failed: %s != %s", object.Inspect(a, m.strs), object.Inspect(b, m.strs))
			}
			if op == code.OpAssertNe && equal {
				return m.runtimeError("assertion failed: %s == %s", object.Inspect(a, m.strs), object.Inspect(b, m.strs))
			}

		default:
			return m.runtimeError("unknown opcode %d", op)
		}
	}
}

func (m *VM) executeBinaryOperation(op code.Opcode) error {
	right := m.pop()
	left := m.pop()

	if op == code.OpAdd {
		if l, ok := left.(object.String); ok {
			if r, ok := right.(object.String); ok {
				joined := m.strs.Lookup(l.ID) + m.strs.Lookup(r.ID)
				m.push(object.String{ID: m.strs.Intern(joined)})
				return nil
			}
		}
	}

	l, lok := left.(object.Number)
	r, rok := right.(object.Number)
	if !lok || !rok {
		return m.runtimeError("unsupported operand types for %s: %s and %s",
			binaryOperatorNames[op], object.TypeName(left), object.TypeName(right))
	}

	switch op {
	case code.OpAdd:
		m.push(l + r)
	case code.OpSub:
		m.push(l - r)
	case code.OpMul:
		m.push(l * r)
	case code.OpDiv:
		m.push(l / r)
	case code.OpLess:
		m.push(object.Boolean(l < r))
	case code.OpLessEq:
		m.push(object.Boolean(l <= r))
	case code.OpGreater:
		m.push(object.Boolean(l > r))
	case code.OpGreaterEq:
		m.push(object.Boolean(l >= r))
	}
	return nil
}

var binaryOperatorNames = map[code.Opcode]string{
	code.OpAdd:       "'+'",
	code.OpSub:       "'-'",
	code.OpMul:       "'*'",
	code.OpDiv:       "'/'",
	code.OpLess:      "'<'",
	code.OpLessEq:    "'<='",
	code.OpGreater:   "'>'",
	code.OpGreaterEq: "'>='",
}

func (m *VM) traceInstruction(frame *Frame, ins []byte) {
	op := code.Opcode(ins[frame.ip])
	def, ok := code.Lookup(op)
	if !ok {
		log.Debugf("%s %04d UNKNOWN %d", frame.cl.Fn.Name, frame.ip, op)
		return
	}
	operands, _ := code.ReadOperands(def, ins[frame.ip+1:])
	log.Debugf("%s %04d %s %v sp=%d", frame.cl.Fn.Name, frame.ip, def.Name, operands, m.sp)
}
