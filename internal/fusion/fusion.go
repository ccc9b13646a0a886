// Package fusion reconciles the rule layer's per-unit scores with the
// external planner's per-unit decisions into a single final plan.
package fusion

import (
	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

// Confidence thresholds, identical to the rule layer's bands.
const (
	thresholdHigh   = 0.8
	thresholdMedium = 0.5
	thresholdLow    = 0.3
)

var highRiskTags = map[string]bool{
	"security_sensitive": true,
	"config_file":        true,
	"routing_file":        true,
}

var mediumRiskTags = map[string]bool{
	"in_single_function": true,
	"complete_function":  true,
}

func isHighRisk(unit *reviewmodel.ReviewUnit) bool {
	if unit.RuleConfidence >= thresholdHigh {
		return true
	}
	for _, t := range unit.Tags {
		if highRiskTags[t] {
			return true
		}
	}
	return false
}

func isMediumRisk(unit *reviewmodel.ReviewUnit) bool {
	if unit.RuleConfidence >= thresholdMedium && unit.RuleConfidence < thresholdHigh {
		return true
	}
	for _, t := range unit.Tags {
		if mediumRiskTags[t] {
			return true
		}
	}
	return false
}

// Fuse reconciles units (in diff order) with the planner's response into a
// Plan with exactly one item per unit, preserving order.
func Fuse(units []reviewmodel.ReviewUnit, planner reviewmodel.PlannerResponse) reviewmodel.Plan {
	byID := make(map[string]reviewmodel.PlannerDecision, len(planner.Plan))
	for _, d := range planner.Plan {
		if d.UnitID != "" {
			byID[d.UnitID] = d
		}
	}

	selected := selectedSet(units, planner)

	items := make([]reviewmodel.PlanItem, 0, len(units))
	for i := range units {
		u := &units[i]
		if u.UnitID == "" {
			items = append(items, reviewmodel.PlanItem{
				UnitID:            u.UnitID,
				RuleContextLevel:  u.RuleContextLevel,
				RuleConfidence:    u.RuleConfidence,
				RuleNotes:         u.RuleNotes,
				FinalContextLevel: fallbackLevel(u.RuleContextLevel),
				SkipReview:        true,
				Reason:            "dropped_missing_unit_id",
			})
			continue
		}

		decision, haveDecision := byID[u.UnitID]

		if !selected[u.UnitID] {
			items = append(items, reviewmodel.PlanItem{
				UnitID:            u.UnitID,
				RuleContextLevel:  u.RuleContextLevel,
				RuleConfidence:    u.RuleConfidence,
				RuleNotes:         u.RuleNotes,
				ExtraRequests:     nil,
				FinalContextLevel: fallbackLevel(u.RuleContextLevel),
				SkipReview:        true,
				Reason:            "dropped_by_fusion_low_confidence",
			})
			continue
		}

		item := reviewmodel.PlanItem{
			UnitID:           u.UnitID,
			RuleContextLevel: u.RuleContextLevel,
			RuleConfidence:   u.RuleConfidence,
			RuleNotes:        u.RuleNotes,
		}

		if haveDecision {
			item.LLMContextLevel = decision.LLMContextLevel
			item.SkipReview = decision.SkipReview
			item.Reason = decision.Reason
			if len(decision.ExtraRequests) > 0 {
				item.ExtraRequests = decision.ExtraRequests
			} else {
				item.ExtraRequests = u.RuleExtraRequests
			}
		} else {
			item.ExtraRequests = u.RuleExtraRequests
			item.Reason = fallbackReason(u.RuleConfidence)
		}

		item.FinalContextLevel = finalLevel(u.RuleConfidence, u.RuleContextLevel, item.LLMContextLevel)
		items = append(items, item)
	}

	return reviewmodel.Plan{Items: items}
}

// selectedSet computes S: planner-mentioned unit ids, augmented with every
// high/medium-risk unit regardless of whether the planner mentioned it. If
// the planner produced no mentions at all, S is exactly the high/medium
// risk set.
func selectedSet(units []reviewmodel.ReviewUnit, planner reviewmodel.PlannerResponse) map[string]bool {
	selected := make(map[string]bool, len(units))
	for _, d := range planner.Plan {
		if d.UnitID != "" {
			selected[d.UnitID] = true
		}
	}
	for i := range units {
		u := &units[i]
		if isHighRisk(u) || isMediumRisk(u) {
			selected[u.UnitID] = true
		}
	}
	return selected
}

func fallbackLevel(ruleLevel contextlevel.Level) contextlevel.Level {
	if contextlevel.Rank(ruleLevel) >= 0 {
		return ruleLevel
	}
	return contextlevel.DiffOnly
}

func fallbackReason(confidence float64) string {
	switch {
	case confidence >= thresholdHigh:
		return "rule_high_confidence_fallback"
	case confidence >= thresholdMedium:
		return "rule_medium_confidence_fallback"
	default:
		return "rule_low_confidence_fallback"
	}
}

// finalLevel implements the band-dependent reconciliation rule. llm is nil
// when the planner never mentioned this unit.
func finalLevel(ruleConfidence float64, ruleLevel contextlevel.Level, llm *contextlevel.Level) contextlevel.Level {
	ruleLevel = fallbackLevel(ruleLevel)

	switch {
	case ruleConfidence >= thresholdHigh:
		if llm == nil {
			return ruleLevel
		}
		if contextlevel.Rank(*llm) > contextlevel.Rank(ruleLevel) {
			return *llm
		}
		return ruleLevel

	case ruleConfidence <= thresholdLow:
		if llm != nil {
			return *llm
		}
		return ruleLevel

	default: // medium band
		if llm == nil {
			return ruleLevel
		}
		if contextlevel.Rank(*llm) == contextlevel.Rank(ruleLevel) {
			return *llm
		}
		return contextlevel.Max(ruleLevel, *llm)
	}
}
