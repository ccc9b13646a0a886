package reporter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

func TestPrintTextPlainSingleFinding(t *testing.T) {
	finding := Finding{
		UnitID:     "u1",
		FilePath:   "main.go",
		Language:   "go",
		FinalLevel: contextlevel.Function,
		Reason:     "rule-scored, high confidence",
		HunkRange:  reviewmodel.HunkRange{NewStart: 2, NewLines: 2},
		Snippets:   reviewmodel.Snippets{After: "func f() {\n\treturn\n}"},
	}

	var buf bytes.Buffer
	if err := PrintTextPlain(&buf, []Finding{finding}, ReportMetadata{}); err != nil {
		t.Fatalf("PrintTextPlain failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "function") {
		t.Errorf("Missing level label, got:\n%s", output)
	}
	if !strings.Contains(output, "u1") {
		t.Errorf("Missing unit id, got:\n%s", output)
	}
	if !strings.Contains(output, "rule-scored, high confidence") {
		t.Errorf("Missing reason, got:\n%s", output)
	}
	if !strings.Contains(output, "main.go:2") {
		t.Errorf("Missing file:line header, got:\n%s", output)
	}
	if !strings.Contains(output, "--------------------") {
		t.Errorf("Missing separator, got:\n%s", output)
	}
}

func TestPrintTextPlainSkippedFindingHasNoSnippet(t *testing.T) {
	finding := Finding{
		UnitID:     "u1",
		FilePath:   "main.go",
		FinalLevel: contextlevel.DiffOnly,
		SkipReview: true,
		Reason:     "below confidence threshold",
		Snippets:   reviewmodel.Snippets{After: "func f() {}"},
	}

	var buf bytes.Buffer
	if err := PrintTextPlain(&buf, []Finding{finding}, ReportMetadata{}); err != nil {
		t.Fatalf("PrintTextPlain failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "--------------------") {
		t.Errorf("Skipped finding should not print a snippet, got:\n%s", output)
	}
	if !strings.Contains(output, "below confidence threshold") {
		t.Errorf("Missing reason, got:\n%s", output)
	}
}

func TestPrintTextPlainSorted(t *testing.T) {
	findings := []Finding{
		{UnitID: "b2", FilePath: "b.go", HunkRange: hunkAt(2)},
		{UnitID: "a4", FilePath: "a.go", HunkRange: hunkAt(4)},
		{UnitID: "a1", FilePath: "a.go", HunkRange: hunkAt(1)},
	}

	var buf bytes.Buffer
	if err := PrintTextPlain(&buf, findings, ReportMetadata{}); err != nil {
		t.Fatalf("PrintTextPlain failed: %v", err)
	}

	output := buf.String()
	posA1 := strings.Index(output, "a1")
	posA4 := strings.Index(output, "a4")
	posB2 := strings.Index(output, "b2")
	if !(posA1 < posA4 && posA4 < posB2) {
		t.Errorf("Expected a1 < a4 < b2 in output order, got:\n%s", output)
	}
}

func TestPrintTextPlainSummaryLine(t *testing.T) {
	findings := []Finding{
		{UnitID: "u1", FilePath: "a.go"},
		{UnitID: "u2", FilePath: "a.go", SkipReview: true},
	}

	var buf bytes.Buffer
	if err := PrintTextPlain(&buf, findings, ReportMetadata{FilesReviewed: 1}); err != nil {
		t.Fatalf("PrintTextPlain failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "1 unit(s) reviewed, 1 skipped") {
		t.Errorf("Missing summary line, got:\n%s", output)
	}
}

func TestPrintTextPlainNotesPlannerUnavailable(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintTextPlain(&buf, nil, ReportMetadata{PlannerUsed: false}); err != nil {
		t.Fatalf("PrintTextPlain failed: %v", err)
	}

	if !strings.Contains(buf.String(), "rule-only, planner unavailable") {
		t.Errorf("Expected degraded-planner note, got:\n%s", buf.String())
	}
}
