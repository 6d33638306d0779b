package code

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0

	for i, w := range def.OperandWidths {
		switch w {
		case 1:
			operands[i] = int(ins[offset])
		case 2:
			operands[i] = int(binary.BigEndian.Uint16(ins[offset:]))
		default:
			panic("unsupported operand width")
		}
		offset += w
	}
	return operands, offset
}

// UpvalueCounter reports how many (isLocal, index) pairs follow the
// OpClosure whose constant operand is k.
type UpvalueCounter func(k int) int

func (ins Instructions) String() string {
	return ins.Format(nil)
}

// Format disassembles ins. Without a counter, OpClosure is assumed to carry
// no upvalue pairs.
func (ins Instructions) Format(upvalues UpvalueCounter) string {
	var out bytes.Buffer

	i := 0
	for i < len(ins) {
		op := Opcode(ins[i])
		def, ok := Lookup(op)
		if !ok {
			fmt.Fprintf(&out, "%04d UNKNOWN_OPCODE %d\n", i, op)
			i++
			continue
		}

		operands, _ := ReadOperands(def, Instructions(ins[i+1:]))

		fmt.Fprintf(&out, "%04d %s", i, def.Name)
		for _, o := range operands {
			fmt.Fprintf(&out, " %d", o)
		}
		i += Width(op)

		if op == OpClosure && upvalues != nil {
			n := upvalues(operands[0])
			for j := 0; j < n && i+1 < len(ins); j++ {
				kind := "upvalue"
				if ins[i] != 0 {
					kind = "local"
				}
				fmt.Fprintf(&out, " [%s %d]", kind, ins[i+1])
				i += 2
			}
		}
		fmt.Fprintf(&out, "\n")
	}

	return out.String()
}
