package compiler

import (
	"fmt"
	"strings"

	"sherbet/internal/intern"
	"sherbet/internal/object"
)

func FormatConstants(constants []object.Value, strs *intern.Table) string {
	var b strings.Builder
	b.WriteString("== constants ==\n")
	for i, c := range constants {
		switch v := c.(type) {
		case object.Number:
			fmt.Fprintf(&b, "%04d NUMBER %s\n", i, object.Inspect(v, strs))
		case object.String:
			fmt.Fprintf(&b, "%04d STRING #%d %q\n", i, v.ID, strs.Lookup(v.ID))
		case *object.Function:
			fmt.Fprintf(&b, "%04d FUNCTION %s (arity=%d upvalues=%d ins=%dB)\n",
				i, v.Name, v.Arity, v.UpvalueCount, len(v.Chunk.Code))
		default:
			fmt.Fprintf(&b, "%04d %s %s\n", i, object.TypeName(c), object.Inspect(c, strs))
		}
	}
	return b.String()
}

// Disassemble renders fn followed by every function nested in its
// constant pool.
func Disassemble(fn *object.Function, strs *intern.Table) string {
	var b strings.Builder
	disassemble(&b, fn, strs)
	return b.String()
}

func disassemble(b *strings.Builder, fn *object.Function, strs *intern.Table) {
	fmt.Fprintf(b, "== %s ==\n", fn.Name)
	b.WriteString(fn.Chunk.Code.Format(func(k int) int {
		if k < len(fn.Chunk.Constants) {
			if nested, ok := fn.Chunk.Constants[k].(*object.Function); ok {
				return nested.UpvalueCount
			}
		}
		return 0
	}))
	if len(fn.Chunk.Constants) > 0 {
		b.WriteString(FormatConstants(fn.Chunk.Constants, strs))
	}
	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.(*object.Function); ok {
			b.WriteString("\n")
			disassemble(b, nested, strs)
		}
	}
}
