package spectest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeError
	OutcomeErrorContains
)

type StdoutMode int

const (
	StdoutNone StdoutMode = iota
	StdoutExact
	StdoutContains
	StdoutFile
)

type StdoutExpectation struct {
	Mode  StdoutMode
	Value string
}

// Expectation is what a script's leading `// expect:` directives ask for.
type Expectation struct {
	Outcome   Outcome
	Substring string
	Stdout    StdoutExpectation

	hasOutcome bool
	hasStdout  bool
}

func ParseExpectationFile(path string) (*Expectation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseExpectation(f, path)
}

// ParseExpectation reads directives from the comment block at the top of
// a script. The first non-comment line ends the block.
func ParseExpectation(r io.Reader, name string) (*Expectation, error) {
	exp := &Expectation{}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
		comment := strings.TrimSpace(strings.TrimPrefix(line, "//"))
		if !strings.HasPrefix(strings.ToLower(comment), "expect:") {
			continue
		}
		if err := exp.directive(strings.TrimSpace(comment[len("expect:"):])); err != nil {
			return nil, fmt.Errorf("%s:%d: %v", name, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return exp, nil
}

func (exp *Expectation) directive(body string) error {
	lower := strings.ToLower(body)

	setOutcome := func(o Outcome) error {
		if exp.hasOutcome {
			return fmt.Errorf("multiple outcome expect directives")
		}
		exp.hasOutcome = true
		exp.Outcome = o
		return nil
	}
	setStdout := func(mode StdoutMode, rest string) error {
		if exp.hasStdout {
			return fmt.Errorf("multiple stdout expect directives")
		}
		val, err := parseQuoted(rest)
		if err != nil {
			return err
		}
		exp.hasStdout = true
		exp.Stdout = StdoutExpectation{Mode: mode, Value: val}
		return nil
	}

	switch {
	case lower == "ok":
		return setOutcome(OutcomeOK)
	case lower == "error":
		return setOutcome(OutcomeError)
	case strings.HasPrefix(lower, "error contains"):
		if err := setOutcome(OutcomeErrorContains); err != nil {
			return err
		}
		sub, err := parseQuoted(body[len("error contains"):])
		if err != nil {
			return err
		}
		exp.Substring = sub
		return nil
	case strings.HasPrefix(lower, "stdout file"):
		return setStdout(StdoutFile, body[len("stdout file"):])
	case strings.HasPrefix(lower, "stdout contains"):
		return setStdout(StdoutContains, body[len("stdout contains"):])
	case strings.HasPrefix(lower, "stdout"):
		return setStdout(StdoutExact, body[len("stdout"):])
	}
	return fmt.Errorf("invalid expect directive %q", body)
}

func parseQuoted(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '"' {
		return "", fmt.Errorf("expected quoted string")
	}
	return strconv.Unquote(raw)
}

func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// MatchStdout checks got against exp. StdoutFile paths are relative to
// baseDir.
func MatchStdout(got string, exp StdoutExpectation, baseDir string) error {
	got = NormalizeNewlines(got)
	switch exp.Mode {
	case StdoutNone:
		return nil
	case StdoutExact:
		if want := NormalizeNewlines(exp.Value); got != want {
			return fmt.Errorf("stdout mismatch: expected %q, got %q", want, got)
		}
		return nil
	case StdoutContains:
		if want := NormalizeNewlines(exp.Value); !strings.Contains(got, want) {
			return fmt.Errorf("stdout mismatch: expected to contain %q, got %q", want, got)
		}
		return nil
	case StdoutFile:
		path := exp.Value
		if path == "" {
			return fmt.Errorf("stdout file path is empty")
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if want := NormalizeNewlines(string(b)); got != want {
			return fmt.Errorf("stdout mismatch: expected file %q to match, got %q", exp.Value, got)
		}
		return nil
	}
	return fmt.Errorf("unknown stdout expectation")
}

// Check compares a script result with its expectation.
func Check(res Result, exp *Expectation, baseDir string) error {
	switch exp.Outcome {
	case OutcomeOK:
		if res.Failed() {
			return fmt.Errorf("expected ok, got error: %s", res.ErrMsg)
		}
	case OutcomeError:
		if !res.Failed() {
			return fmt.Errorf("expected error, got ok")
		}
	case OutcomeErrorContains:
		if !res.Failed() {
			return fmt.Errorf("expected error, got ok")
		}
		if !strings.Contains(res.ErrMsg, exp.Substring) {
			return fmt.Errorf("error mismatch: expected to contain %q, got %q", exp.Substring, res.ErrMsg)
		}
	}
	return MatchStdout(res.Stdout, exp.Stdout, baseDir)
}

// IsScript reports whether path names a sherbet source file.
func IsScript(path string) bool {
	return strings.HasSuffix(path, ".sb")
}

// CollectFiles expands files and directories into the scripts they hold,
// as absolute paths without duplicates.
func CollectFiles(targets []string) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
		return nil
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if IsScript(target) {
				if err := add(target); err != nil {
					return nil, err
				}
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if base := d.Name(); base == ".git" || base == "fixtures" {
					return filepath.SkipDir
				}
				return nil
			}
			if IsScript(path) {
				return add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
