package reviewmodel

import (
	"time"

	"github.com/wharflab/deltareview/internal/contextlevel"
)

// ConflictType classifies why a rule decision and a planner decision
// disagreed.
type ConflictType string

const (
	ConflictRuleHighLLMExpand    ConflictType = "rule_high_llm_expand"
	ConflictRuleHighLLMSkip      ConflictType = "rule_high_llm_skip"
	ConflictRuleLowLLMConsistent ConflictType = "rule_low_llm_consistent"
	ConflictContextLevelMismatch ConflictType = "context_level_mismatch"
)

// RuleConflict records one rule/planner disagreement for later mining.
type RuleConflict struct {
	ConflictType ConflictType `json:"conflict_type"`
	UnitID       string       `json:"unit_id"`
	Language     string       `json:"language"`
	Tags         []string     `json:"tags,omitempty"`
	RuleNotes    string       `json:"rule_notes,omitempty"`

	RuleContextLevel contextlevel.Level `json:"rule_context_level"`
	RuleConfidence   float64            `json:"rule_confidence"`

	LLMContextLevel *contextlevel.Level `json:"llm_context_level,omitempty"`
	LLMSkipReview   bool                `json:"llm_skip_review"`
	LLMReason       string              `json:"llm_reason,omitempty"`

	FinalContextLevel contextlevel.Level `json:"final_context_level"`

	FilePath  string     `json:"file_path"`
	Symbol    *Symbol    `json:"symbol,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ApplicableRule is a promoted, machine-applicable rule mined from a cluster
// of consistent conflicts.
type ApplicableRule struct {
	RuleID                 string             `json:"rule_id"`
	Language               string             `json:"language"`
	RequiredTags           []string           `json:"required_tags"`
	SuggestedContextLevel  contextlevel.Level `json:"suggested_context_level"`
	Confidence             float64            `json:"confidence"`
	SampleCount            int                `json:"sample_count"`
	Consistency            float64            `json:"consistency"`
	UniqueFiles            int                `json:"unique_files"`
	ConflictType           ConflictType       `json:"conflict_type"`
}

// ReferenceHint is the non-promoted counterpart to ApplicableRule: a cluster
// that didn't clear the promotion bar, with a human-readable explanation of
// which threshold(s) failed.
type ReferenceHint struct {
	Language     string       `json:"language"`
	Tags         []string     `json:"tags"`
	ConflictType ConflictType `json:"conflict_type"`
	SampleCount  int          `json:"sample_count"`
	Consistency  float64      `json:"consistency"`
	UniqueFiles  int          `json:"unique_files"`
	Reason       string       `json:"reason"`
}

// LearnedRuleSource records how a learned rule entered the store.
type LearnedRuleSource string

const (
	SourceConflictLearning LearnedRuleSource = "conflict_learning"
	SourceManualPromotion  LearnedRuleSource = "manual_promotion"
)

// LearnedRuleEntry is one persisted, consultable rule.
type LearnedRuleEntry struct {
	RuleID                string             `json:"rule_id"`
	RequiredTags          []string           `json:"required_tags"`
	ContextLevel          contextlevel.Level `json:"context_level"`
	BaseConfidence        float64            `json:"base_confidence"`
	Notes                 string             `json:"notes,omitempty"`
	Source                LearnedRuleSource  `json:"source"`
	LearnedAt             time.Time          `json:"learned_at"`
	SampleCount           int                `json:"sample_count"`
	Consistency           float64            `json:"consistency"`
}

// LearnedRuleFile is the on-disk document: one rule list per language.
type LearnedRuleFile struct {
	Version   int                           `json:"version"`
	UpdatedAt time.Time                     `json:"updated_at"`
	Rules     map[string][]LearnedRuleEntry `json:"rules"`
}
