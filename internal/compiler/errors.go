package compiler

import (
	"fmt"
	"strings"

	"sherbet/internal/diag"
)

// Error is returned when a program fails to parse or compile. It carries
// every diagnostic found, in source order of discovery.
type Error struct {
	Diagnostics []diag.Diagnostic
}

func (e *Error) Error() string {
	switch len(e.Diagnostics) {
	case 0:
		return "compile failed"
	case 1:
		return e.Diagnostics[0].Message
	}
	msgs := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		msgs = append(msgs, fmt.Sprintf("%d:%d: %s", d.Range.Line, d.Range.Col, d.Message))
	}
	return fmt.Sprintf("%d errors: %s", len(e.Diagnostics), strings.Join(msgs, "; "))
}
