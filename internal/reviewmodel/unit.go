// Package reviewmodel defines the data types shared across the review
// pipeline: units, planner decisions, fused plan items, conflicts, learned
// rules, and session snapshots.
package reviewmodel

import "github.com/wharflab/deltareview/internal/contextlevel"

// ChangeType classifies a hunk's effect on a file.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeModify ChangeType = "modify"
)

// HunkRange is the old/new line extents of a single diff hunk, 1-based.
type HunkRange struct {
	OldStart int `json:"old_start"`
	OldLines int `json:"old_lines"`
	NewStart int `json:"new_start"`
	NewLines int `json:"new_lines"`
}

// End returns the inclusive last new-file line this hunk covers. A
// zero-length hunk (pure deletion collapsed to a point) still reports a
// single-line range.
func (h HunkRange) End() int {
	n := h.NewLines
	if n < 1 {
		n = 1
	}
	return h.NewStart + n - 1
}

// Contains reports whether line falls within this hunk's new-file range.
func (h HunkRange) Contains(line int) bool {
	return h.NewStart > 0 && line >= h.NewStart && line <= h.End()
}

// Snippets holds the three views of a unit's code a reviewer may consult.
type Snippets struct {
	Before  string `json:"before"`
	After   string `json:"after"`
	Context string `json:"context"`
}

// Metrics summarizes a unit's line churn.
type Metrics struct {
	AddedLines   int `json:"added_lines"`
	RemovedLines int `json:"removed_lines"`
}

// SymbolKind classifies the enclosing symbol tree-sitter found for a unit.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
	SymbolClass    SymbolKind = "class"
)

// Symbol is the smallest enclosing named node around a hunk's change region,
// populated on a best-effort basis; nil when none was found or the language
// isn't supported.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
}

// ExtraRequest asks the downstream consumer for additional material beyond
// the unit's own snippets, e.g. a related file or a symbol definition.
type ExtraRequest struct {
	Type    string `json:"type"`
	Details string `json:"details,omitempty"`
}

// ReviewUnit is one independently reviewable hunk.
type ReviewUnit struct {
	UnitID     string     `json:"unit_id"`
	FilePath   string     `json:"file_path"`
	Language   string     `json:"language"`
	ChangeType ChangeType `json:"change_type"`
	HunkRange  HunkRange  `json:"hunk_range"`

	CodeSnippets Snippets `json:"code_snippets"`
	ContextStart int      `json:"context_start"`
	ContextEnd   int      `json:"context_end"`

	Metrics Metrics `json:"metrics"`
	Symbol  *Symbol `json:"symbol,omitempty"`

	Tags []string `json:"tags,omitempty"`

	RuleContextLevel  contextlevel.Level `json:"rule_context_level"`
	RuleConfidence    float64            `json:"rule_confidence"`
	RuleNotes         string             `json:"rule_notes,omitempty"`
	RuleExtraRequests []ExtraRequest     `json:"rule_extra_requests,omitempty"`
}

// HasTag reports whether tag is present among the unit's tags.
func (u *ReviewUnit) HasTag(tag string) bool {
	for _, t := range u.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends tag if not already present.
func (u *ReviewUnit) AddTag(tag string) {
	if !u.HasTag(tag) {
		u.Tags = append(u.Tags, tag)
	}
}
