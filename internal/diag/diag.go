// Package diag implements the §6 diagnostic sink: the boundary through
// which textual-assembly parsing and the passes report the §7 error
// taxonomy to a caller, without using panics or Go errors as the primary
// channel for anything user-facing.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Severity ranks a Diagnostic.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "?"
	}
}

// SourceRange is a half-open span in one named source buffer (§6).
type SourceRange struct {
	File       string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

func (r SourceRange) String() string {
	if r.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", r.File, r.StartLine, r.StartCol)
}

// Highlight attaches a secondary label to a span inside a Diagnostic,
// e.g. pointing at an earlier definition in an ErrorNameCollision report.
type Highlight struct {
	Range SourceRange
	Label string
}

// Diagnostic is one (source-range, severity, message, optional
// highlights) record per §6.
type Diagnostic struct {
	Range      SourceRange
	Severity   Severity
	Message    string
	Highlights []Highlight
}

// Sink accumulates Diagnostics: passes and parsers push records as they
// go instead of aborting on the first one, so a single invocation can
// report many errors (§7's parser-recovery policy, extended here to every
// producer).
type Sink struct {
	diags []Diagnostic
}

// NewSink creates an empty Sink.
func NewSink() *Sink { return &Sink{} }

// Push records a Diagnostic.
func (s *Sink) Push(d Diagnostic) { s.diags = append(s.diags, d) }

// Errorf is a convenience wrapper around Push for SeverityError records
// with no range or highlights.
func (s *Sink) Errorf(format string, args ...interface{}) {
	s.Push(Diagnostic{Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

// Warnf is Errorf's SeverityWarning counterpart.
func (s *Sink) Warnf(format string, args ...interface{}) {
	s.Push(Diagnostic{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

// Diagnostics returns every record pushed so far, in push order.
func (s *Sink) Diagnostics() []Diagnostic { return append([]Diagnostic(nil), s.diags...) }

// HasErrors reports whether any pushed Diagnostic is SeverityError.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Reset empties the sink so it can be reused across invocations.
func (s *Sink) Reset() { s.diags = nil }

// ansiFor returns the color escape for a severity, or "" when colorizing
// is disabled.
func ansiFor(sev Severity) string {
	switch sev {
	case SeverityError:
		return "\x1b[31;1m"
	case SeverityWarning:
		return "\x1b[33;1m"
	default:
		return "\x1b[36;1m"
	}
}

const ansiReset = "\x1b[0m"

// Render writes every Diagnostic to w, one per line, `%s: %s\n  at
// %s\n` per record ("Type: message" followed by an indented location
// line). Output is colorized by severity only when w is a terminal,
// detected with github.com/mattn/go-isatty.
func (s *Sink) Render(w io.Writer) error {
	colorize := false
	if f, ok := w.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, d := range s.diags {
		var sb strings.Builder
		if colorize {
			sb.WriteString(ansiFor(d.Severity))
		}
		sb.WriteString(d.Severity.String())
		if colorize {
			sb.WriteString(ansiReset)
		}
		sb.WriteString(": ")
		sb.WriteString(d.Message)
		sb.WriteByte('\n')
		if d.Range.File != "" {
			fmt.Fprintf(&sb, "  at %s\n", d.Range.String())
		}
		for _, h := range d.Highlights {
			fmt.Fprintf(&sb, "  note: %s", h.Label)
			if h.Range.File != "" {
				fmt.Fprintf(&sb, " (%s)", h.Range.String())
			}
			sb.WriteByte('\n')
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
