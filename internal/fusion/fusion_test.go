package fusion

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

func level(l contextlevel.Level) *contextlevel.Level { return &l }

func TestFuseOutputLengthMatchesInput(t *testing.T) {
	units := []reviewmodel.ReviewUnit{
		{UnitID: "a", RuleConfidence: 0.1, RuleContextLevel: contextlevel.DiffOnly},
		{UnitID: "b", RuleConfidence: 0.9, RuleContextLevel: contextlevel.Function},
	}
	plan := Fuse(units, reviewmodel.PlannerResponse{})
	require.Len(t, plan.Items, 2)
	require.Equal(t, "a", plan.Items[0].UnitID)
	require.Equal(t, "b", plan.Items[1].UnitID)
}

func TestFuseRuleOnlyFallbackWhenPlannerEmpty(t *testing.T) {
	units := []reviewmodel.ReviewUnit{
		{UnitID: "a", RuleConfidence: 0.9, RuleContextLevel: contextlevel.FullFile},
		{UnitID: "b", RuleConfidence: 0.1, RuleContextLevel: contextlevel.DiffOnly},
	}
	plan := Fuse(units, reviewmodel.PlannerResponse{})

	require.Equal(t, contextlevel.FullFile, plan.Items[0].FinalContextLevel)
	require.False(t, plan.Items[0].SkipReview)
	require.Equal(t, "rule_high_confidence_fallback", plan.Items[0].Reason)

	require.True(t, plan.Items[1].SkipReview)
	require.Equal(t, "dropped_by_fusion_low_confidence", plan.Items[1].Reason)
}

func TestFuseHighConfidenceRuleNeverDemoted(t *testing.T) {
	units := []reviewmodel.ReviewUnit{
		{UnitID: "a", RuleConfidence: 0.85, RuleContextLevel: contextlevel.FullFile},
	}
	planner := reviewmodel.PlannerResponse{Plan: []reviewmodel.PlannerDecision{
		{UnitID: "a", LLMContextLevel: level(contextlevel.DiffOnly)},
	}}
	plan := Fuse(units, planner)
	require.Equal(t, contextlevel.FullFile, plan.Items[0].FinalContextLevel)
}

func TestFuseHighConfidenceRuleExpandsWithLLM(t *testing.T) {
	units := []reviewmodel.ReviewUnit{
		{UnitID: "a", RuleConfidence: 0.85, RuleContextLevel: contextlevel.Function},
	}
	planner := reviewmodel.PlannerResponse{Plan: []reviewmodel.PlannerDecision{
		{UnitID: "a", LLMContextLevel: level(contextlevel.FullFile)},
	}}
	plan := Fuse(units, planner)
	require.Equal(t, contextlevel.FullFile, plan.Items[0].FinalContextLevel)
}

func TestFuseLowConfidenceDefersToLLM(t *testing.T) {
	units := []reviewmodel.ReviewUnit{
		{UnitID: "a", RuleConfidence: 0.1, RuleContextLevel: contextlevel.DiffOnly},
	}
	planner := reviewmodel.PlannerResponse{Plan: []reviewmodel.PlannerDecision{
		{UnitID: "a", LLMContextLevel: level(contextlevel.Function)},
	}}
	plan := Fuse(units, planner)
	require.Equal(t, contextlevel.Function, plan.Items[0].FinalContextLevel)
}

func TestFuseMissingUnitIDDropped(t *testing.T) {
	units := []reviewmodel.ReviewUnit{{UnitID: "", RuleContextLevel: contextlevel.Function}}
	plan := Fuse(units, reviewmodel.PlannerResponse{})
	require.True(t, plan.Items[0].SkipReview)
	require.Equal(t, "dropped_missing_unit_id", plan.Items[0].Reason)
}
