package lint

import (
	"sherbet/internal/ast"
	"sherbet/internal/diag"
)

const (
	CodeUnusedVariable  = "SL0001"
	CodeUnusedParameter = "SL0002"
	CodeUnreachable     = "SL0003"
	CodeShadow          = "SL0004"
)

type Options struct {
	CheckShadowing bool
}

func DefaultOptions() Options {
	return Options{CheckShadowing: true}
}

type Linter struct {
	opts Options
}

func New() *Linter {
	return &Linter{opts: DefaultOptions()}
}

func NewWithOptions(opts Options) *Linter {
	return &Linter{opts: opts}
}

// Run returns warnings for program. It assumes program parsed cleanly.
func Run(program *ast.Program) []diag.Diagnostic {
	return New().Run(program)
}

func (l *Linter) Run(program *ast.Program) []diag.Diagnostic {
	if program == nil {
		return nil
	}
	r := &runner{sc: newScope(nil), opts: l.opts}
	r.walkProgram(program)
	return r.diags
}
