package diag

import (
	"fmt"
	"sync"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

type Range struct {
	Line   int // 1-based
	Col    int // 1-based
	Length int // best-effort; can be 1 if unknown
}

type Diagnostic struct {
	Code     string
	Title    string
	Message  string
	Severity Severity
	Range    Range
}

const (
	CodeParse   = "SP0001"
	CodeCompile = "SC0001"
	CodeRuntime = "SR0001"
)

func (d Diagnostic) Format(path string) string {
	if d.Code != "" {
		return fmt.Sprintf("%s:%d:%d: %s %s: %s", path, d.Range.Line, d.Range.Col, d.Severity.String(), d.Code, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", path, d.Range.Line, d.Range.Col, d.Severity.String(), d.Message)
}

// Sink receives diagnostics from the parser and compiler. pos is nil when
// the problem has no source location.
type Sink interface {
	Report(pos *Range, title, message string)
}

// Collector is a Sink that keeps every report in order.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Report(pos *Range, title, message string) {
	d := Diagnostic{
		Code:     codeForTitle(title),
		Title:    title,
		Message:  message,
		Severity: SeverityError,
	}
	if pos != nil {
		d.Range = *pos
	}
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()
}

func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.diags...)
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diags)
}

func codeForTitle(title string) string {
	switch title {
	case "Parser":
		return CodeParse
	case "Compiler":
		return CodeCompile
	}
	return ""
}

// Discard drops every report.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(*Range, string, string) {}
