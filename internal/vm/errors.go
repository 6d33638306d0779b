package vm

import (
	"errors"
	"fmt"
	"strings"

	"sherbet/internal/diag"
)

// ErrHalted is returned when Run is called on a VM whose program already
// failed; its stack is no longer trustworthy.
var ErrHalted = errors.New("vm: execution already stopped by an earlier error")

// ErrNoFrame is returned by Run when nothing has been called, or the
// outermost frame has already returned.
var ErrNoFrame = errors.New("vm: no active frame")

// ErrStackUnderflow is returned by Call when the closure and its arguments
// are not on the stack.
var ErrStackUnderflow = errors.New("vm: stack underflow")

// RuntimeError stops execution. Line and Col locate the failing
// instruction; Trace lists the active calls, innermost first.
type RuntimeError struct {
	Message string
	Line    int
	Col     int
	Trace   []string
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
	}
	return e.Message
}

// Diagnostic reports the error in the same shape as parse and compile
// errors.
func (e *RuntimeError) Diagnostic() diag.Diagnostic {
	return diag.Diagnostic{
		Code:     diag.CodeRuntime,
		Message:  e.Message,
		Severity: diag.SeverityError,
		Range:    diag.Range{Line: e.Line, Col: e.Col, Length: 1},
	}
}

// StackTrace renders the error the way the CLI prints it.
func (e *RuntimeError) StackTrace() string {
	var b strings.Builder
	b.WriteString("error: " + e.Message + "\nstack trace:\n")
	for _, t := range e.Trace {
		b.WriteString("  at " + t + "\n")
	}
	return b.String()
}

func (m *VM) runtimeError(format string, args ...any) error {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := m.frameCount - 1; i >= 0; i-- {
		f := &m.frames[i]
		fn := f.cl.Fn
		pos, ok := fn.Chunk.PosAt(f.ip)
		if i == m.frameCount-1 && ok {
			err.Line, err.Col = pos.Line, pos.Col
		}
		err.Trace = append(err.Trace, fmt.Sprintf("%s (%d:%d)", fn.Name, pos.Line, pos.Col))
	}
	m.halted = true
	return err
}
