package diag

import (
	"bytes"
	"strings"
	"testing"
)

func TestSinkAccumulatesAndRenders(t *testing.T) {
	s := NewSink()
	s.Push(Diagnostic{
		Range:    SourceRange{File: "foo.lhd", StartLine: 3, StartCol: 5},
		Severity: SeverityError,
		Message:  "two definitions share the same global name",
		Highlights: []Highlight{
			{Range: SourceRange{File: "foo.lhd", StartLine: 1, StartCol: 1}, Label: "first defined here"},
		},
	})
	s.Warnf("multiple simultaneous drives on %%q, last write wins")

	if !s.HasErrors() {
		t.Fatalf("expected HasErrors true")
	}
	if len(s.Diagnostics()) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(s.Diagnostics()))
	}

	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "error: two definitions") {
		t.Fatalf("rendered output missing error line: %q", out)
	}
	if !strings.Contains(out, "foo.lhd:3:5") {
		t.Fatalf("rendered output missing source range: %q", out)
	}
	if !strings.Contains(out, "first defined here") {
		t.Fatalf("rendered output missing highlight: %q", out)
	}
	if !strings.Contains(out, "warning: multiple simultaneous") {
		t.Fatalf("rendered output missing warning line: %q", out)
	}
}

func TestSinkResetClears(t *testing.T) {
	s := NewSink()
	s.Errorf("boom")
	s.Reset()
	if s.HasErrors() {
		t.Fatalf("expected no errors after Reset")
	}
	if len(s.Diagnostics()) != 0 {
		t.Fatalf("expected empty diagnostics after Reset")
	}
}
