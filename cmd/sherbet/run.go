package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"sherbet/internal/compiler"
	"sherbet/internal/config"
	"sherbet/internal/diag"
	"sherbet/internal/intern"
	"sherbet/internal/parser"
	"sherbet/internal/vm"
)

func loadConfig(opts *options, scriptPath string) (*config.Manifest, error) {
	if opts.configPath != "" {
		return config.LoadManifest(opts.configPath)
	}
	dir := "."
	if scriptPath != "" {
		dir = filepath.Dir(scriptPath)
	}
	return config.FindAndLoad(dir)
}

func runScript(cmd *cobra.Command, opts *options, path string, stdout, stderr io.Writer) error {
	man, err := loadConfig(opts, path)
	if err != nil {
		return err
	}
	if path == "" {
		path = man.EntryPath()
	}
	if path == "" {
		return errors.New("no script given and no run.entry in " + config.FileName)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	trace := man.VM.Trace
	if cmd.Flags().Changed("trace") {
		trace = opts.trace
	}
	if trace != opts.trace {
		configureLogging(opts.verbose, trace)
	}
	maxFrames := man.VM.MaxFrames
	if cmd.Flags().Changed("max-frames") {
		maxFrames = opts.maxFrames
	}

	program, parseDiags := parser.Parse(string(src), diag.Discard)
	if opts.dumpAST {
		fmt.Fprint(stdout, program.String())
	}
	if len(parseDiags) > 0 {
		printDiagnostics(stderr, path, parseDiags, opts.color)
		return &exitError{code: exitCompile, err: fmt.Errorf("%s: parse failed", path)}
	}

	strs := intern.New()
	var copts []compiler.Option
	if !man.ArityCheck() {
		copts = append(copts, compiler.WithChecker(nil))
	}
	start := time.Now()
	fn, err := compiler.New(strs, nil, copts...).Compile(program)
	if err != nil {
		var cerr *compiler.Error
		if errors.As(err, &cerr) {
			printDiagnostics(stderr, path, cerr.Diagnostics, opts.color)
		} else {
			fmt.Fprintln(stderr, err)
		}
		return &exitError{code: exitCompile, err: err}
	}
	log.Infof("compiled %s in %s", path, time.Since(start))

	if opts.dumpBytecode {
		fmt.Fprint(stdout, compiler.Disassemble(fn, strs))
	}

	m := vm.New(strs,
		vm.WithOutput(stdout),
		vm.WithMaxFrames(maxFrames),
		vm.WithStackSize(man.VM.StackSize),
		vm.WithTrace(trace),
	)
	if err := m.Interpret(fn); err != nil {
		printRuntimeError(stderr, path, err, opts.color)
		return &exitError{code: exitRuntime, err: err}
	}
	return nil
}

func printDiagnostics(w io.Writer, path string, ds []diag.Diagnostic, color bool) {
	for _, d := range ds {
		fmt.Fprintln(w, formatDiagnostic(d, path, color))
	}
}

func printRuntimeError(w io.Writer, path string, err error, color bool) {
	var rerr *vm.RuntimeError
	if !errors.As(err, &rerr) {
		fmt.Fprintln(w, "error:", err)
		return
	}
	d := rerr.Diagnostic()
	fmt.Fprintln(w, formatDiagnostic(d, path, color))
	fmt.Fprintln(w, "stack trace:")
	for _, t := range rerr.Trace {
		fmt.Fprintln(w, "  at "+t)
	}
}

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

func formatDiagnostic(d diag.Diagnostic, path string, color bool) string {
	line := d.Format(path)
	if !color {
		return line
	}
	sev := d.Severity.String()
	paint := ansiRed
	if d.Severity != diag.SeverityError {
		paint = ansiYellow
	}
	return strings.Replace(line, ": "+sev, ": "+paint+sev+ansiReset, 1)
}

// colorEnabled reports whether w is a terminal that should get ANSI colours.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
