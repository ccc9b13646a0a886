package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// useColors reports whether stdout is a terminal, the question go-isatty
// answers that a stock io.Writer can't.
var useColors = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiYellow = "\x1b[33m"
	ansiGray   = "\x1b[90m"
	ansiBlue   = "\x1b[34m"
)

// TextOptions configures the text reporter output.
type TextOptions struct {
	// Color enables/disables colored output. Default: auto-detect via
	// go-isatty.
	Color *bool

	// SyntaxHighlight is accepted for parity with the reporter factory but
	// unused: this reporter prints plain snippets, not highlighted ones.
	SyntaxHighlight bool

	// ShowSource shows the unit's after-snippet.
	ShowSource bool
}

// DefaultTextOptions returns sensible defaults for text output.
func DefaultTextOptions() TextOptions {
	return TextOptions{
		Color:      nil,
		ShowSource: true,
	}
}

// TextReporter formats findings as text output.
type TextReporter struct {
	opts TextOptions
}

// NewTextReporter creates a new text reporter with the given options.
func NewTextReporter(opts TextOptions) *TextReporter {
	return &TextReporter{opts: opts}
}

func (r *TextReporter) colorEnabled() bool {
	if r.opts.Color != nil {
		return *r.opts.Color
	}
	return useColors
}

// Print writes findings, sorted by file and hunk position, to the writer.
func (r *TextReporter) Print(w io.Writer, findings []Finding, metadata ReportMetadata) error {
	sorted := SortFindings(findings)

	reviewed, skipped := 0, 0
	for _, f := range sorted {
		if f.SkipReview {
			skipped++
		} else {
			reviewed++
		}
		r.printFinding(w, f)
	}

	fmt.Fprintf(w, "\n%d unit(s) reviewed, %d skipped", reviewed, skipped)
	if metadata.FilesReviewed > 0 {
		fmt.Fprintf(w, ", %d file(s)", metadata.FilesReviewed)
	}
	if !metadata.PlannerUsed {
		fmt.Fprint(w, " (rule-only, planner unavailable)")
	}
	fmt.Fprintln(w)
	return nil
}

func (r *TextReporter) printFinding(w io.Writer, f Finding) {
	color := r.colorEnabled()

	level := string(f.FinalLevel)
	if color {
		style := ansiBold + ansiYellow
		if f.SkipReview {
			style = ansiGray
		}
		fmt.Fprintf(w, "\n%s%s%s  %s%s%s\n", style, level, ansiReset, ansiBold+ansiBlue, f.UnitID, ansiReset)
	} else {
		fmt.Fprintf(w, "\n%s  %s\n", level, f.UnitID)
	}

	if f.Reason != "" {
		fmt.Fprintln(w, f.Reason)
	}

	if r.opts.ShowSource && !f.SkipReview && f.Snippets.After != "" {
		r.printSnippet(w, f, color)
	}
}

func (r *TextReporter) printSnippet(w io.Writer, f Finding, color bool) {
	loc := fmt.Sprintf("%s:%d", f.FilePath, f.HunkRange.NewStart)
	sep := "--------------------"
	if color {
		fmt.Fprintf(w, "%s%s%s\n%s%s%s\n", ansiBold, loc, ansiReset, ansiGray, sep, ansiReset)
	} else {
		fmt.Fprintln(w, loc)
		fmt.Fprintln(w, sep)
	}

	lines := strings.Split(strings.TrimSuffix(f.Snippets.After, "\n"), "\n")
	lineNum := f.HunkRange.NewStart
	for _, line := range lines {
		if color {
			fmt.Fprintf(w, "%s %3d │%s %s\n", ansiGray, lineNum, ansiReset, line)
		} else {
			fmt.Fprintf(w, " %3d | %s\n", lineNum, line)
		}
		lineNum++
	}

	if color {
		fmt.Fprintf(w, "%s%s%s\n", ansiGray, sep, ansiReset)
	} else {
		fmt.Fprintln(w, sep)
	}
}

// PrintText is a convenience function that uses default options.
func PrintText(w io.Writer, findings []Finding, metadata ReportMetadata) error {
	r := NewTextReporter(DefaultTextOptions())
	return r.Print(w, findings, metadata)
}

// PrintTextPlain writes findings without any styling, for non-TTY output.
func PrintTextPlain(w io.Writer, findings []Finding, metadata ReportMetadata) error {
	noColor := false
	r := NewTextReporter(TextOptions{Color: &noColor, ShowSource: true})
	return r.Print(w, findings, metadata)
}
