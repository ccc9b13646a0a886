package reporter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/wharflab/deltareview/internal/contextlevel"
)

func TestJSONReporter(t *testing.T) {
	findings := []Finding{
		{
			UnitID:     "u1",
			FilePath:   "main.go",
			FinalLevel: contextlevel.Function,
			Reason:     "rule-scored",
		},
		{
			UnitID:     "u2",
			FilePath:   "main.go",
			FinalLevel: contextlevel.DiffOnly,
			SkipReview: true,
			Reason:     "below confidence threshold",
		},
	}

	var buf bytes.Buffer
	reporter := NewJSONReporter(&buf)

	err := reporter.Report(findings, ReportMetadata{FilesReviewed: 1, PlannerUsed: true})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	var output JSONOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	if len(output.Findings) != 2 {
		t.Errorf("Expected 2 findings, got %d", len(output.Findings))
	}
	if output.Summary.Total != 2 {
		t.Errorf("Expected total 2, got %d", output.Summary.Total)
	}
	if output.Summary.Reviewed != 1 {
		t.Errorf("Expected 1 reviewed, got %d", output.Summary.Reviewed)
	}
	if output.Summary.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", output.Summary.Skipped)
	}
	if !output.PlannerUsed {
		t.Error("Expected PlannerUsed true")
	}
}

func TestJSONReporterOrdersByFileThenLine(t *testing.T) {
	findings := []Finding{
		{UnitID: "u2", FilePath: "b.go", HunkRange: hunkAt(5)},
		{UnitID: "u1", FilePath: "a.go", HunkRange: hunkAt(10)},
		{UnitID: "u3", FilePath: "a.go", HunkRange: hunkAt(1)},
	}

	var buf bytes.Buffer
	reporter := NewJSONReporter(&buf)
	if err := reporter.Report(findings, ReportMetadata{}); err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	var output JSONOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	want := []string{"u3", "u1", "u2"}
	if len(output.Findings) != len(want) {
		t.Fatalf("Expected %d findings, got %d", len(want), len(output.Findings))
	}
	for i, id := range want {
		if output.Findings[i].UnitID != id {
			t.Errorf("Findings[%d].UnitID = %q, want %q", i, output.Findings[i].UnitID, id)
		}
	}
}

func TestJSONReporterEmpty(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewJSONReporter(&buf)

	if err := reporter.Report(nil, ReportMetadata{}); err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	var output JSONOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	if output.Summary.Total != 0 {
		t.Errorf("Expected total 0, got %d", output.Summary.Total)
	}
}
