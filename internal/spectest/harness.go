package spectest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"sherbet/internal/compiler"
	"sherbet/internal/diag"
	"sherbet/internal/intern"
	"sherbet/internal/vm"
)

type Options struct {
	Name      string
	MaxFrames int
	StackSize int
	// NoArityCheck leaves arity mismatches to the VM.
	NoArityCheck bool
}

// Result is what one script run produced. ErrCode is the diagnostic code
// of the first failure; ErrMsg joins every failure message.
type Result struct {
	Stdout  string
	ErrCode string
	ErrMsg  string
}

func (r Result) Failed() bool { return r.ErrCode != "" || r.ErrMsg != "" }

// Run compiles and executes source, capturing what it prints.
func Run(source string, opts Options) Result {
	var res Result
	strs := intern.New()

	var copts []compiler.Option
	if opts.Name != "" {
		copts = append(copts, compiler.WithName(opts.Name))
	}
	if opts.NoArityCheck {
		copts = append(copts, compiler.WithChecker(nil))
	}
	fn, err := compiler.CompileSource(source, strs, nil, copts...)
	if err != nil {
		var cerr *compiler.Error
		if errors.As(err, &cerr) && len(cerr.Diagnostics) > 0 {
			msgs := make([]string, len(cerr.Diagnostics))
			for i, d := range cerr.Diagnostics {
				msgs[i] = d.Message
			}
			res.ErrCode = cerr.Diagnostics[0].Code
			res.ErrMsg = strings.Join(msgs, "\n")
		} else {
			res.ErrMsg = err.Error()
		}
		return res
	}

	var out bytes.Buffer
	m := vm.New(strs,
		vm.WithOutput(&out),
		vm.WithMaxFrames(opts.MaxFrames),
		vm.WithStackSize(opts.StackSize),
	)
	if err := m.Interpret(fn); err != nil {
		res.ErrCode = diag.CodeRuntime
		var rerr *vm.RuntimeError
		if errors.As(err, &rerr) {
			res.ErrMsg = rerr.Message
		} else {
			res.ErrMsg = err.Error()
		}
	}
	res.Stdout = out.String()
	return res
}

// RunFile runs the script at path and checks it against its directives.
func RunFile(path string, opts Options) (Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	exp, err := ParseExpectation(bytes.NewReader(src), path)
	if err != nil {
		return Result{}, err
	}
	if opts.Name == "" {
		opts.Name = filepath.Base(path)
	}
	res := Run(string(src), opts)
	return res, Check(res, exp, filepath.Dir(path))
}
