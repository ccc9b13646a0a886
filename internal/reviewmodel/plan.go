package reviewmodel

import "github.com/wharflab/deltareview/internal/contextlevel"

// PlannerDecision is the external planner's per-unit verdict. ContextLevel
// is a pointer so the "planner did not mention this unit" and "planner
// explicitly said diff_only" cases stay distinguishable.
type PlannerDecision struct {
	UnitID            string              `json:"unit_id"`
	LLMContextLevel   *contextlevel.Level `json:"llm_context_level,omitempty"`
	SkipReview        bool                `json:"skip_review,omitempty"`
	Reason            string              `json:"reason,omitempty"`
	ExtraRequests     []ExtraRequest      `json:"extra_requests,omitempty"`
}

// PlannerResponse is the top-level shape returned by the external planner.
type PlannerResponse struct {
	Plan []PlannerDecision `json:"plan"`
}

// PlanItem is one unit's fused outcome: rule fields verbatim plus the
// reconciled decision.
type PlanItem struct {
	UnitID string `json:"unit_id"`

	RuleContextLevel  contextlevel.Level `json:"rule_context_level"`
	RuleConfidence    float64            `json:"rule_confidence"`
	RuleNotes         string             `json:"rule_notes,omitempty"`

	LLMContextLevel  *contextlevel.Level `json:"llm_context_level,omitempty"`
	FinalContextLevel contextlevel.Level `json:"final_context_level"`

	ExtraRequests []ExtraRequest `json:"extra_requests,omitempty"`
	SkipReview    bool           `json:"skip_review"`
	Reason        string         `json:"reason,omitempty"`
}

// Plan is the fusion layer's output: one PlanItem per input unit, in order.
type Plan struct {
	Items []PlanItem `json:"plan"`
}
