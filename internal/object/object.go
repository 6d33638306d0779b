package object

import (
	"bytes"
	"fmt"
	"strconv"

	"sherbet/internal/code"
	"sherbet/internal/intern"
)

type Type string

const (
	NUMBER_OBJ   Type = "NUMBER"
	BOOLEAN_OBJ  Type = "BOOLEAN"
	STRING_OBJ   Type = "STRING"
	FUNCTION_OBJ Type = "FUNCTION"
	CLOSURE_OBJ  Type = "CLOSURE"
	ARRAY_OBJ    Type = "ARRAY"
	VOID_OBJ     Type = "VOID"
	NONE_OBJ     Type = "NONE"
)

// Value is anything that can sit in a stack slot, a constant pool or a
// global. A nil Value reads as None.
type Value interface {
	Type() Type
}

type Number float64

func (Number) Type() Type { return NUMBER_OBJ }

type Boolean bool

func (Boolean) Type() Type { return BOOLEAN_OBJ }

// String carries only the interned id; the content lives in the table.
type String struct{ ID intern.ID }

func (String) Type() Type { return STRING_OBJ }

// Void is the result of statements and of functions without a return value.
type Void struct{}

func (Void) Type() Type { return VOID_OBJ }

// None is the uninitialized sentinel.
type None struct{}

func (None) Type() Type { return NONE_OBJ }

// Chunk is the instruction stream and constant pool of one function body.
type Chunk struct {
	Code      code.Instructions
	Constants []Value
	Pos       []code.SourcePos
}

// AddConstant appends v and returns its pool index.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// PosAt returns the source position recorded for the instruction at or
// nearest before offset.
func (c *Chunk) PosAt(offset int) (code.SourcePos, bool) {
	var best code.SourcePos
	found := false
	for _, p := range c.Pos {
		if p.Offset > offset {
			break
		}
		best = p
		found = true
	}
	return best, found
}

// Function is a compiled body. It is shared by every closure wrapping it
// and is not modified once its declaration has finished compiling.
type Function struct {
	Chunk        Chunk
	Arity        int
	Name         string
	UpvalueCount int
}

func (*Function) Type() Type { return FUNCTION_OBJ }

// Upvalue is a captured variable. While open, Location points at the live
// stack slot; Close moves the value into the cell itself.
type Upvalue struct {
	Location *Value
	Closed   Value
	Index    int
}

func (u *Upvalue) Get() Value {
	return *u.Location
}

func (u *Upvalue) Set(v Value) {
	*u.Location = v
}

func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

func (u *Upvalue) IsOpen() bool {
	return u.Location != &u.Closed
}

type Closure struct {
	Fn       *Function
	Upvalues []*Upvalue
}

func (*Closure) Type() Type { return CLOSURE_OBJ }

type Array struct {
	Elements []Value
}

func (*Array) Type() Type { return ARRAY_OBJ }

// TypeName returns the type of v, treating nil as None.
func TypeName(v Value) Type {
	if v == nil {
		return NONE_OBJ
	}
	return v.Type()
}

// Equal is defined for numbers, booleans, strings, void and none. Every
// other pair compares unequal, including a function with itself.
func Equal(a, b Value) bool {
	if a == nil {
		a = None{}
	}
	if b == nil {
		b = None{}
	}
	switch x := a.(type) {
	case Number:
		y, ok := b.(Number)
		return ok && x == y
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x.ID == y.ID
	case Void:
		_, ok := b.(Void)
		return ok
	case None:
		_, ok := b.(None)
		return ok
	default:
		return false
	}
}

// Printable reports whether v may be shown to the user.
func Printable(v Value) bool {
	switch v.(type) {
	case nil, Void, None:
		return false
	}
	return true
}

// Inspect renders v for display. Void and None are rendered for debugging
// output only; the print statement refuses them.
func Inspect(v Value, strs *intern.Table) string {
	switch x := v.(type) {
	case nil, None:
		return "none"
	case Void:
		return "void"
	case Number:
		return strconv.FormatFloat(float64(x), 'f', -1, 64)
	case Boolean:
		if x {
			return "true"
		}
		return "false"
	case String:
		return strs.Lookup(x.ID)
	case *Function:
		return fmt.Sprintf("<func %s>", x.Name)
	case *Closure:
		return fmt.Sprintf("<closure %s>", x.Fn.Name)
	case *Array:
		var out bytes.Buffer
		out.WriteString("[")
		for i, el := range x.Elements {
			if i > 0 {
				out.WriteString(", ")
			}
			out.WriteString(Inspect(el, strs))
		}
		out.WriteString("]")
		return out.String()
	default:
		return fmt.Sprintf("<%T>", v)
	}
}
