package code

import (
	"encoding/binary"
	"fmt"
)

type Opcode byte

const (
	OpConstant Opcode = iota // push constants[operand]
	OpTrue
	OpFalse
	OpVoid
	OpPop

	OpGetLocal         // operand: slot relative to base+1
	OpSetLocal         // operand: slot; leaves the value on the stack
	OpSetLocalConsumes // operand: slot; moves the value into the slot
	OpGetUpValue       // operand: upvalue index in the current closure
	OpSetUpValue       // operand: upvalue index; leaves the value on the stack
	OpCloseUpValue     // closes the upvalue over the top slot, then pops it

	OpDefineGlobal // operand: name constant; pops the value
	OpGetGlobal    // operand: name constant
	OpSetGlobal    // operand: name constant; leaves the value on the stack

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpEqual
	OpNotEqual

	OpNot
	OpNegate

	OpJumpTo           // operand: absolute jump address
	OpJumpToIfFalse    // operand: absolute jump address; keeps the condition
	OpPopJumpToIfFalse // operand: absolute jump address; pops the condition

	OpCall    // operand: argument count
	OpReturn  // pops the result and the frame
	OpClosure // operand: function constant, followed by (isLocal, index) byte pairs

	OpCallNative   // operand: native index
	OpCallFnArgPtr // operands: native index, argument count

	OpArray // operand: element count

	OpPrint
	OpAssertEq
	OpAssertNe
)

type Instructions []byte

type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	OpConstant:         {"OpConstant", []int{2}},
	OpTrue:             {"OpTrue", nil},
	OpFalse:            {"OpFalse", nil},
	OpVoid:             {"OpVoid", nil},
	OpPop:              {"OpPop", nil},
	OpGetLocal:         {"OpGetLocal", []int{1}},
	OpSetLocal:         {"OpSetLocal", []int{1}},
	OpSetLocalConsumes: {"OpSetLocalConsumes", []int{1}},
	OpGetUpValue:       {"OpGetUpValue", []int{1}},
	OpSetUpValue:       {"OpSetUpValue", []int{1}},
	OpCloseUpValue:     {"OpCloseUpValue", nil},
	OpDefineGlobal:     {"OpDefineGlobal", []int{2}},
	OpGetGlobal:        {"OpGetGlobal", []int{2}},
	OpSetGlobal:        {"OpSetGlobal", []int{2}},
	OpAdd:              {"OpAdd", nil},
	OpSub:              {"OpSub", nil},
	OpMul:              {"OpMul", nil},
	OpDiv:              {"OpDiv", nil},
	OpLess:             {"OpLess", nil},
	OpLessEq:           {"OpLessEq", nil},
	OpGreater:          {"OpGreater", nil},
	OpGreaterEq:        {"OpGreaterEq", nil},
	OpEqual:            {"OpEqual", nil},
	OpNotEqual:         {"OpNotEqual", nil},
	OpNot:              {"OpNot", nil},
	OpNegate:           {"OpNegate", nil},
	OpJumpTo:           {"OpJumpTo", []int{2}},
	OpJumpToIfFalse:    {"OpJumpToIfFalse", []int{2}},
	OpPopJumpToIfFalse: {"OpPopJumpToIfFalse", []int{2}},
	OpCall:             {"OpCall", []int{1}},
	OpReturn:           {"OpReturn", nil},
	OpClosure:          {"OpClosure", []int{2}},
	OpCallNative:       {"OpCallNative", []int{1}},
	OpCallFnArgPtr:     {"OpCallFnArgPtr", []int{1, 1}},
	OpArray:            {"OpArray", []int{2}},
	OpPrint:            {"OpPrint", nil},
	OpAssertEq:         {"OpAssertEq", nil},
	OpAssertNe:         {"OpAssertNe", nil},
}

func Lookup(op Opcode) (*Definition, bool) {
	def, ok := definitions[op]
	return def, ok
}

func (op Opcode) String() string {
	if def, ok := definitions[op]; ok {
		return def.Name
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}

// Width is the encoded size of op including its operands, not counting the
// variable-length upvalue pairs that trail OpClosure.
func Width(op Opcode) int {
	def, ok := definitions[op]
	if !ok {
		return 1
	}
	w := 1
	for _, ow := range def.OperandWidths {
		w += ow
	}
	return w
}

func Make(op Opcode, operands ...int) Instructions {
	def, ok := definitions[op]
	if !ok {
		return Instructions{}
	}
	insLen := 1
	for _, w := range def.OperandWidths {
		insLen += w
	}

	ins := make([]byte, insLen)
	ins[0] = byte(op)

	offset := 1
	for i, o := range operands {
		w := def.OperandWidths[i]
		switch w {
		case 1:
			ins[offset] = byte(o)
		case 2:
			binary.BigEndian.PutUint16(ins[offset:], uint16(o))
		}
		offset += w
	}
	return ins
}

// MakeUpvalue encodes one (isLocal, index) pair trailing OpClosure.
func MakeUpvalue(isLocal bool, index int) Instructions {
	flag := byte(0)
	if isLocal {
		flag = 1
	}
	return Instructions{flag, byte(index)}
}

func ReadUint16(ins Instructions) uint16 {
	return binary.BigEndian.Uint16(ins)
}

func ReadUint8(ins Instructions) uint8 { return ins[0] }

// SourcePos maps an instruction offset to the source location it came from.
type SourcePos struct {
	Offset int
	Line   int
	Col    int
}
