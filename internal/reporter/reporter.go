// Package reporter formats a fused review plan for human and machine
// consumption.
//
// The package supports two output formats:
//   - text: human-readable terminal output with optional ANSI colors; code
//     snippets are printed plain, without syntax highlighting
//   - json: machine-readable JSON output
//
// SARIF export lives with the static scanner (internal/scanner.ResultStore),
// since that is the only stage whose findings a CI code-scanning consumer
// cares about; the fused plan itself has no SARIF equivalent.
package reporter

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

// Finding is one reviewed unit flattened with its fusion outcome, the shape
// every reporter format renders.
type Finding struct {
	UnitID     string
	FilePath   string
	Language   string
	ChangeType reviewmodel.ChangeType
	HunkRange  reviewmodel.HunkRange
	Symbol     *reviewmodel.Symbol

	FinalLevel contextlevel.Level
	Confidence float64
	Notes      string
	SkipReview bool
	Reason     string

	Snippets reviewmodel.Snippets
}

// ReportMetadata contains contextual information about the review run.
type ReportMetadata struct {
	// FilesReviewed is the total number of files touched by the diff.
	FilesReviewed int
	// RulesEnabled is the total number of rule handlers that were active.
	RulesEnabled int
	// PlannerUsed reports whether an external planner command was configured
	// for the run; it does not tell whether the planner produced a response.
	PlannerUsed bool
}

// Reporter formats and outputs a review plan's findings.
type Reporter interface {
	Report(findings []Finding, metadata ReportMetadata) error
}

// BuildFindings zips units with their fused plan items, in plan order.
func BuildFindings(units []reviewmodel.ReviewUnit, plan reviewmodel.Plan) []Finding {
	byID := make(map[string]*reviewmodel.ReviewUnit, len(units))
	for i := range units {
		byID[units[i].UnitID] = &units[i]
	}

	findings := make([]Finding, 0, len(plan.Items))
	for _, item := range plan.Items {
		u, ok := byID[item.UnitID]
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			UnitID:     u.UnitID,
			FilePath:   u.FilePath,
			Language:   u.Language,
			ChangeType: u.ChangeType,
			HunkRange:  u.HunkRange,
			Symbol:     u.Symbol,
			FinalLevel: item.FinalContextLevel,
			Confidence: u.RuleConfidence,
			Notes:      u.RuleNotes,
			SkipReview: item.SkipReview,
			Reason:     item.Reason,
			Snippets:   u.CodeSnippets,
		})
	}
	return findings
}

// SortFindings sorts findings by file then by hunk start line, for stable
// output regardless of the plan's internal ordering.
func SortFindings(findings []Finding) []Finding {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FilePath != sorted[j].FilePath {
			return sorted[i].FilePath < sorted[j].FilePath
		}
		return sorted[i].HunkRange.NewStart < sorted[j].HunkRange.NewStart
	})
	return sorted
}

// Format represents an output format type.
type Format string

const (
	// FormatText is human-readable terminal output.
	FormatText Format = "text"
	// FormatJSON is machine-readable JSON output.
	FormatJSON Format = "json"
)

// ParseFormat parses a format string into a Format type.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format: %q (valid: text, json)", s)
	}
}

// Options configures reporter creation.
type Options struct {
	Format Format
	Writer io.Writer

	// Color enables/disables colored output (text format only). nil means
	// auto-detect via go-isatty.
	Color *bool

	// ShowSource enables source snippets (text format only).
	ShowSource bool
}

// DefaultOptions returns sensible defaults for reporter options.
func DefaultOptions() Options {
	return Options{
		Format:     FormatText,
		Writer:     os.Stdout,
		Color:      nil,
		ShowSource: true,
	}
}

// New creates a reporter based on the format specified in options.
func New(opts Options) (Reporter, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	switch opts.Format {
	case FormatText, "":
		textOpts := TextOptions{
			Color:           opts.Color,
			SyntaxHighlight: opts.Color == nil || *opts.Color,
			ShowSource:      opts.ShowSource,
		}
		return &textReporterAdapter{
			reporter: NewTextReporter(textOpts),
			writer:   opts.Writer,
		}, nil

	case FormatJSON:
		return NewJSONReporter(opts.Writer), nil

	default:
		return nil, fmt.Errorf("unknown format: %q", opts.Format)
	}
}

// textReporterAdapter adapts TextReporter to the Reporter interface.
type textReporterAdapter struct {
	reporter *TextReporter
	writer   io.Writer
}

func (a *textReporterAdapter) Report(findings []Finding, metadata ReportMetadata) error {
	return a.reporter.Print(a.writer, findings, metadata)
}

// GetWriter returns an io.Writer for the given output path. Supports
// "stdout", "stderr", or a file path.
func GetWriter(path string) (io.Writer, func() error, error) {
	switch path {
	case "stdout", "":
		return os.Stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	default:
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		return f, f.Close, nil
	}
}
