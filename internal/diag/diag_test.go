package diag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCollectorKeepsOrderAndCodes(t *testing.T) {
	c := NewCollector()
	c.Report(&Range{Line: 2, Col: 5, Length: 1}, "Parser", "expected ';'")
	c.Report(nil, "Compiler", "undefined identifier: y")

	want := []Diagnostic{
		{Code: CodeParse, Title: "Parser", Message: "expected ';'", Range: Range{Line: 2, Col: 5, Length: 1}},
		{Code: CodeCompile, Title: "Compiler", Message: "undefined identifier: y"},
	}
	if diff := cmp.Diff(want, c.Diagnostics()); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestDiagnosticFormat(t *testing.T) {
	d := Diagnostic{Code: CodeCompile, Message: "boom", Range: Range{Line: 3, Col: 7}}
	got := d.Format("main.sb")
	if got != "main.sb:3:7: error SC0001: boom" {
		t.Fatalf("unexpected format: %q", got)
	}
}
