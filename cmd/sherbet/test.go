package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"sherbet/internal/spectest"
)

func newTestCmd(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "test [path|dir]...",
		Short: "Run scripts and check their // expect: directives",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := args
			if len(targets) == 0 {
				targets = []string{"."}
			}
			return runTests(opts, targets, stdout)
		},
	}
}

func runTests(opts *options, targets []string, stdout io.Writer) error {
	files, err := spectest.CollectFiles(targets)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(stdout, "no tests found")
		return nil
	}
	sort.Strings(files)

	man, err := loadConfig(opts, "")
	if err != nil {
		return err
	}
	runOpts := spectest.Options{
		MaxFrames:    man.VM.MaxFrames,
		StackSize:    man.VM.StackSize,
		NoArityCheck: !man.ArityCheck(),
	}

	passed, failed := 0, 0
	for _, path := range files {
		if _, err := spectest.RunFile(path, runOpts); err != nil {
			failed++
			fmt.Fprintf(stdout, "FAIL %s: %s\n", path, err)
			continue
		}
		log.Debugf("ok %s", path)
		passed++
	}
	fmt.Fprintf(stdout, "passed %d, failed %d\n", passed, failed)
	if failed > 0 {
		return &exitError{code: 1, err: fmt.Errorf("%d tests failed", failed)}
	}
	return nil
}
