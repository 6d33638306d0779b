package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"sherbet/internal/repl"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1"

const (
	exitCompile = 1
	exitRuntime = 2
)

var log = commonlog.GetLogger("sherbet")

// exitError carries the process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(stderr, "error:", err)
	return 1
}

type options struct {
	dumpBytecode bool
	dumpAST      bool
	configPath   string
	trace        bool
	maxFrames    int
	verbose      int
	color        bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{color: colorEnabled(stderr)}

	root := &cobra.Command{
		Use:           "sherbet [flags] [path]",
		Short:         "Compile and run sherbet scripts",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(opts.verbose, opts.trace)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runScript(cmd, opts, path, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.Flags()
	flags.BoolVar(&opts.dumpBytecode, "dump-bytecode", false, "print the disassembled bytecode before running")
	flags.BoolVar(&opts.dumpAST, "dump-ast", false, "print the parsed program before running")
	flags.BoolVar(&opts.trace, "trace", false, "log every executed instruction")
	flags.IntVar(&opts.maxFrames, "max-frames", 0, "call depth limit (default from sherbet.toml)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to sherbet.toml")
	root.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "raise log verbosity (repeatable)")

	root.AddCommand(newTestCmd(opts, stdout))
	root.AddCommand(newReplCmd(opts, stdout))
	root.AddCommand(newLintCmd(opts, stderr))
	return root
}

// configureLogging sets the log verbosity. Tracing logs at debug level, so
// it needs at least -vv.
func configureLogging(verbosity int, trace bool) {
	if trace && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
}

func newReplCmd(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			man, err := loadConfig(opts, "")
			if err != nil {
				return err
			}
			repl.Start(cmd.InOrStdin(), stdout, repl.Options{
				MaxFrames:  man.VM.MaxFrames,
				StackSize:  man.VM.StackSize,
				ArityCheck: man.ArityCheck(),
			})
			return nil
		},
	}
}
