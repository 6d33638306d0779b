package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tliron/commonlog"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunScript(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ok.sb", "let x = 1; let y = 2; assert_eq x + y, 3; print x + y;")

	code, stdout, stderr := runCLI(path)
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr)
	}
	if stdout != "3\n" {
		t.Fatalf("unexpected stdout %q", stdout)
	}
}

func TestCompileErrorDoesNotExecute(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.sb", "print \"hi\"; print y;")

	code, stdout, stderr := runCLI(path)
	if code != exitCompile {
		t.Fatalf("expected exit %d, got %d", exitCompile, code)
	}
	if stdout != "" {
		t.Fatalf("script ran despite the compile error: %q", stdout)
	}
	want := path + ":1:19: error SC0001: undefined identifier 'y'\n"
	if stderr != want {
		t.Fatalf("stderr = %q, want %q", stderr, want)
	}
}

func TestParseErrorExitCode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.sb", "let = 1;")

	code, _, stderr := runCLI(path)
	if code != exitCompile || !strings.Contains(stderr, "error SP0001:") {
		t.Fatalf("exit %d, stderr %q", code, stderr)
	}
}

func TestRuntimeErrorExitCode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fail.sb", "print \"before\";\nfunc check() { assert_eq 1, 2; }\ncheck();")

	code, stdout, stderr := runCLI(path)
	if code != exitRuntime {
		t.Fatalf("expected exit %d, got %d", exitRuntime, code)
	}
	if stdout != "before\n" {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	for _, want := range []string{
		path + ":2:16: error SR0001: assertion failed: 1 != 2",
		"stack trace:\n  at check (2:16)\n  at <script> (3:6)\n",
	} {
		if !strings.Contains(stderr, want) {
			t.Fatalf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestDumpFlags(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dump.sb", "print 1 + 2;")

	code, stdout, _ := runCLI("--dump-ast", "--dump-bytecode", path)
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	for _, want := range []string{"print (1 + 2);\n", "== <script> ==", "OpAdd", "OpPrint", "3\n"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigEntryAndLimits(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.sb", "func d(n) { if (n == 0) { return 0; } return d(n - 1); }\nprint d(10);")
	cfg := writeFile(t, dir, "sherbet.toml", "[run]\nentry = \"main.sb\"\n\n[vm]\nmax_frames = 4\n")

	code, _, stderr := runCLI("--config", cfg)
	if code != exitRuntime || !strings.Contains(stderr, "stack overflow") {
		t.Fatalf("expected a stack overflow, got exit %d:\n%s", code, stderr)
	}

	code, stdout, stderr := runCLI("--config", cfg, "--max-frames", "64")
	if code != 0 || stdout != "0\n" {
		t.Fatalf("flag did not override the config: exit %d, stdout %q, stderr %q", code, stdout, stderr)
	}
}

func TestConfigDisablesArityCheck(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "arity.sb", "func f(a) { return a; }\nf();")
	writeFile(t, dir, "sherbet.toml", "[compiler]\narity_check = false\n")

	code, _, stderr := runCLI(script)
	if code != exitRuntime || !strings.Contains(stderr, "f expects 1 arguments, got 0") {
		t.Fatalf("expected a runtime arity error, got exit %d:\n%s", code, stderr)
	}
}

func TestMissingEntry(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "sherbet.toml", "[vm]\ntrace = false\n")

	code, _, stderr := runCLI("--config", cfg)
	if code != 1 || !strings.Contains(stderr, "no script given") {
		t.Fatalf("exit %d, stderr %q", code, stderr)
	}
}

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pass.sb", "// expect: stdout \"1\\n\"\nprint 1;\n")
	writeFile(t, dir, "fail.sb", "// expect: error contains \"boom\"\nprint 1;\n")

	code, stdout, _ := runCLI("test", dir)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stdout, "FAIL "+filepath.Join(dir, "fail.sb")) || !strings.Contains(stdout, "passed 1, failed 1\n") {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
}

func TestFormatDiagnosticColor(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.sb", "print y;")
	code, _, stderr := runCLI(path)
	if code != exitCompile || strings.Contains(stderr, ansiRed) {
		t.Fatalf("non-terminal output must not be coloured: %q", stderr)
	}
}

func TestReplCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetIn(strings.NewReader("let x = 2;\nx * 21;\n"))
	root.SetArgs([]string{"repl"})
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout.String(), "42\n") {
		t.Fatalf("unexpected output:\n%s", stdout.String())
	}
}

func TestLintCommand(t *testing.T) {
	dir := t.TempDir()
	warn := writeFile(t, dir, "warn.sb", "func f(a) { return 1; }\nprint f(0);\n")

	code, stdout, stderr := runCLI("lint", warn)
	if code != 0 || stdout != "" {
		t.Fatalf("warnings must not fail: exit %d, stdout %q", code, stdout)
	}
	if want := warn + ":1:8: warning SL0002: unused parameter: a\n"; stderr != want {
		t.Fatalf("stderr = %q, want %q", stderr, want)
	}

	bad := writeFile(t, dir, "bad.sb", "print nope;\n")
	code, _, stderr = runCLI("lint", bad)
	if code != exitCompile || !strings.Contains(stderr, "error SC0001: undefined identifier 'nope'") {
		t.Fatalf("exit %d, stderr %q", code, stderr)
	}
}

func TestConfigTraceEnablesDebugLogging(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "t.sb", "print 1;")
	writeFile(t, dir, "sherbet.toml", "[vm]\ntrace = true\n")
	vmLog := commonlog.GetLogger("sherbet.vm")

	code, stdout, stderr := runCLI(script)
	if code != 0 || stdout != "1\n" {
		t.Fatalf("exit %d, stdout %q, stderr %q", code, stdout, stderr)
	}
	if !vmLog.AllowLevel(commonlog.Debug) {
		t.Fatal("trace from sherbet.toml did not enable debug logging")
	}

	if code, _, _ := runCLI("--trace=false", script); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if vmLog.AllowLevel(commonlog.Debug) {
		t.Fatal("--trace=false did not override the config")
	}
}
