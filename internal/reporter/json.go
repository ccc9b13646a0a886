package reporter

import (
	"encoding/json"
	"io"
	"path/filepath"
)

// JSONOutput is the top-level structure for JSON output.
type JSONOutput struct {
	Findings      []Finding `json:"findings"`
	Summary       Summary   `json:"summary"`
	FilesReviewed int       `json:"files_reviewed"`
	RulesEnabled  int       `json:"rules_enabled"`
	PlannerUsed   bool      `json:"planner_used"`
}

// Summary contains aggregate statistics about a plan's findings.
type Summary struct {
	Total     int `json:"total"`
	Reviewed  int `json:"reviewed"`
	Skipped   int `json:"skipped"`
	FullFile  int `json:"full_file"`
	FileLevel int `json:"file_context"`
	Function  int `json:"function"`
	DiffOnly  int `json:"diff_only"`
}

// JSONReporter formats findings as JSON output.
type JSONReporter struct {
	writer io.Writer
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

// Report implements Reporter.
func (r *JSONReporter) Report(findings []Finding, metadata ReportMetadata) error {
	sorted := SortFindings(findings)
	for i := range sorted {
		sorted[i].FilePath = filepath.ToSlash(sorted[i].FilePath)
	}

	output := JSONOutput{
		Findings:      sorted,
		Summary:       calculateSummary(sorted),
		FilesReviewed: metadata.FilesReviewed,
		RulesEnabled:  metadata.RulesEnabled,
		PlannerUsed:   metadata.PlannerUsed,
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// calculateSummary computes aggregate statistics from findings.
func calculateSummary(findings []Finding) Summary {
	s := Summary{Total: len(findings)}
	for _, f := range findings {
		if f.SkipReview {
			s.Skipped++
			continue
		}
		s.Reviewed++
		switch string(f.FinalLevel) {
		case "full_file":
			s.FullFile++
		case "file_context":
			s.FileLevel++
		case "function":
			s.Function++
		case "diff_only":
			s.DiffOnly++
		}
	}
	return s
}
