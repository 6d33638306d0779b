package lsp

import (
	"sherbet/internal/diag"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const source = "sherbet"

// ToLspDiagnostics converts byte-column diagnostics for text into LSP
// diagnostics with UTF-16 positions.
func ToLspDiagnostics(text string, ds []diag.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(ds))
	for _, d := range ds {
		width := d.Range.Length
		if width <= 0 {
			width = 1
		}
		rng := rangeAt(text, d.Range.Line, d.Range.Col, width)

		severity := protocol.DiagnosticSeverityError
		switch d.Severity {
		case diag.SeverityWarning:
			severity = protocol.DiagnosticSeverityWarning
		case diag.SeverityInfo:
			severity = protocol.DiagnosticSeverityInformation
		}

		pd := protocol.Diagnostic{
			Range:    rng,
			Severity: &severity,
			Source:   ptrString(source),
			Message:  d.Message,
		}
		if d.Code != "" {
			code := protocol.IntegerOrString{Value: d.Code}
			pd.Code = &code
		}
		out = append(out, pd)
	}
	return out
}

func ptrString(s string) *string { return &s }
