package vm

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"sherbet/internal/native"
	"sherbet/internal/object"
)

// NativeFn is a host function. It receives its arguments in call order and
// pushes its result, if any, onto the VM stack.
type NativeFn func(m *VM, args []object.Value) error

var natives = [native.Count]NativeFn{
	native.DebugStack:  nativeDebugStack,
	native.AssertStack: nativeAssertStack,
	native.ToStr:       nativeToStr,
	native.Len:         nativeLen,
	native.Push:        nativePush,
	native.Get:         nativeGet,
	native.Clock:       nativeClock,
}

// LookupNative resolves #name to its table index.
func LookupNative(name string) (int, bool) {
	idx, _, ok := native.Lookup(name)
	return idx, ok
}

func (m *VM) callNative(idx int, args []object.Value) error {
	if idx < 0 || idx >= native.Count {
		return m.runtimeError("unknown native function %d", idx)
	}
	if err := m.natives[idx](m, args); err != nil {
		if rerr, ok := err.(*RuntimeError); ok {
			return rerr
		}
		return m.runtimeError("#%s: %v", native.Name(idx), err)
	}
	return nil
}

// frameSlots returns the locals of the innermost frame.
func (m *VM) frameSlots() []object.Value {
	return m.stack[m.currentFrame().base+1 : m.sp]
}

func (m *VM) inspectAll(vals []object.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = object.Inspect(v, m.strs)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func nativeDebugStack(m *VM, _ []object.Value) error {
	_, err := fmt.Fprintf(m.out, "Stack: %s\n", m.inspectAll(m.frameSlots()))
	return err
}

func nativeAssertStack(m *VM, args []object.Value) error {
	slots := m.frameSlots()
	if len(slots) == len(args) {
		same := true
		for i := range slots {
			if !object.Equal(slots[i], args[i]) {
				same = false
				break
			}
		}
		if same {
			return nil
		}
	}
	return fmt.Errorf("stack mismatch: expected %s, got %s", m.inspectAll(args), m.inspectAll(slots))
}

func nativeToStr(m *VM, args []object.Value) error {
	v := args[0]
	if s, ok := v.(object.String); ok {
		m.push(s)
		return nil
	}
	if !object.Printable(v) {
		return fmt.Errorf("cannot convert %s to a string", object.TypeName(v))
	}
	m.push(object.String{ID: m.strs.Intern(object.Inspect(v, m.strs))})
	return nil
}

func nativeLen(m *VM, args []object.Value) error {
	switch v := args[0].(type) {
	case *object.Array:
		m.push(object.Number(len(v.Elements)))
	case object.String:
		m.push(object.Number(utf8.RuneCountInString(m.strs.Lookup(v.ID))))
	default:
		return fmt.Errorf("expected an array or a string, got %s", object.TypeName(args[0]))
	}
	return nil
}

func nativePush(m *VM, args []object.Value) error {
	arr, ok := args[0].(*object.Array)
	if !ok {
		return fmt.Errorf("expected an array, got %s", object.TypeName(args[0]))
	}
	arr.Elements = append(arr.Elements, args[1])
	m.push(arr)
	return nil
}

func nativeGet(m *VM, args []object.Value) error {
	arr, ok := args[0].(*object.Array)
	if !ok {
		return fmt.Errorf("expected an array, got %s", object.TypeName(args[0]))
	}
	n, ok := args[1].(object.Number)
	if !ok {
		return fmt.Errorf("index must be a number, got %s", object.TypeName(args[1]))
	}
	f := float64(n)
	if f != math.Trunc(f) || f < 0 || int(f) >= len(arr.Elements) {
		return fmt.Errorf("index %s out of range for array of length %d", object.Inspect(n, m.strs), len(arr.Elements))
	}
	m.push(arr.Elements[int(f)])
	return nil
}

func nativeClock(m *VM, _ []object.Value) error {
	m.push(object.Number(time.Since(m.started).Seconds()))
	return nil
}
