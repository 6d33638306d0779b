package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"sherbet/internal/compiler"
	"sherbet/internal/diag"
	"sherbet/internal/intern"
	"sherbet/internal/lint"
	"sherbet/internal/parser"
	"sherbet/internal/spectest"
)

func newLintCmd(opts *options, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [path|dir]...",
		Short: "Report errors and warnings without running scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := args
			if len(targets) == 0 {
				targets = []string{"."}
			}
			files, err := spectest.CollectFiles(targets)
			if err != nil {
				return err
			}
			sort.Strings(files)

			errs := 0
			for _, path := range files {
				ds, err := lintFile(path)
				if err != nil {
					return err
				}
				printDiagnostics(stderr, path, ds, opts.color)
				for _, d := range ds {
					if d.Severity == diag.SeverityError {
						errs++
					}
				}
			}
			if errs > 0 {
				return &exitError{code: exitCompile, err: fmt.Errorf("%d errors", errs)}
			}
			return nil
		},
	}
}

// lintFile compiles path without running it and adds lint warnings when
// it parses.
func lintFile(path string) ([]diag.Diagnostic, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, diags := parser.Parse(string(b), diag.Discard)
	if len(diags) > 0 {
		return diags, nil
	}
	if _, err := compiler.New(intern.New(), nil).Compile(prog); err != nil {
		var cerr *compiler.Error
		if !errors.As(err, &cerr) {
			return nil, err
		}
		diags = append(diags, cerr.Diagnostics...)
	}
	return append(diags, lint.Run(prog)...), nil
}
