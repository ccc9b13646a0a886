package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

// Promotion thresholds.
const (
	MinOccurrences        = 5
	MinConsistency        = 0.9
	MinCommonTags         = 2
	MinUniqueFiles        = 2
	TagPresenceThreshold  = 0.8
)

// semanticFeatureKey groups conflicts that plausibly share a root cause.
type semanticFeatureKey struct {
	language     string
	sortedTags   string
	conflictType reviewmodel.ConflictType
}

func keyFor(c reviewmodel.RuleConflict) semanticFeatureKey {
	tags := append([]string(nil), c.Tags...)
	sort.Strings(tags)
	return semanticFeatureKey{
		language:     c.Language,
		sortedTags:   strings.Join(tags, ","),
		conflictType: c.ConflictType,
	}
}

// Analyze groups conflicts by semantic feature key and evaluates each group
// for promotion, returning the applicable rules that clear every threshold
// and a reference hint for every group that doesn't.
func Analyze(conflicts []reviewmodel.RuleConflict) (applicable []reviewmodel.ApplicableRule, hints []reviewmodel.ReferenceHint) {
	groups := map[semanticFeatureKey][]reviewmodel.RuleConflict{}
	var order []semanticFeatureKey
	for _, c := range conflicts {
		k := keyFor(c)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}

	for _, k := range order {
		members := groups[k]
		rule, hint := evaluateApplicability(k, members)
		if rule != nil {
			applicable = append(applicable, *rule)
		} else {
			hints = append(hints, *hint)
		}
	}
	return applicable, hints
}

func evaluateApplicability(k semanticFeatureKey, members []reviewmodel.RuleConflict) (*reviewmodel.ApplicableRule, *reviewmodel.ReferenceHint) {
	sampleCount := len(members)

	commonTags := commonTagsAbove(members, TagPresenceThreshold)
	consistency, modalLevel, hasModal := modalContextLevel(members)
	uniqueFiles := countUniqueFiles(members)

	var failed []string
	if sampleCount < MinOccurrences {
		failed = append(failed, fmt.Sprintf("sample_count %d < %d", sampleCount, MinOccurrences))
	}
	if consistency < MinConsistency {
		failed = append(failed, fmt.Sprintf("consistency %.2f < %.2f", consistency, MinConsistency))
	}
	if len(commonTags) < MinCommonTags {
		failed = append(failed, fmt.Sprintf("common_tags %d < %d", len(commonTags), MinCommonTags))
	}
	if uniqueFiles < MinUniqueFiles {
		failed = append(failed, fmt.Sprintf("unique_files %d < %d", uniqueFiles, MinUniqueFiles))
	}
	if !hasModal {
		failed = append(failed, "no modal llm_context_level decision exists")
	}

	if len(failed) == 0 {
		confidence := consistency * (1 + 0.01*float64(minInt(sampleCount-MinOccurrences, 10)))
		if confidence > 0.95 {
			confidence = 0.95
		}
		return &reviewmodel.ApplicableRule{
			RuleID:                fingerprint(k.language, commonTags, k.conflictType),
			Language:              k.language,
			RequiredTags:          commonTags,
			SuggestedContextLevel: modalLevel,
			Confidence:            confidence,
			SampleCount:           sampleCount,
			Consistency:           consistency,
			UniqueFiles:           uniqueFiles,
			ConflictType:          k.conflictType,
		}, nil
	}

	return nil, &reviewmodel.ReferenceHint{
		Language:     k.language,
		Tags:         allTags(members, 5),
		ConflictType: k.conflictType,
		SampleCount:  sampleCount,
		Consistency:  consistency,
		UniqueFiles:  uniqueFiles,
		Reason:       strings.Join(failed, "; "),
	}
}

func commonTagsAbove(members []reviewmodel.RuleConflict, threshold float64) []string {
	counts := map[string]int{}
	for _, m := range members {
		for _, t := range m.Tags {
			counts[t]++
		}
	}
	var common []string
	for tag, count := range counts {
		if float64(count)/float64(len(members)) >= threshold {
			common = append(common, tag)
		}
	}
	sort.Strings(common)
	return common
}

func allTags(members []reviewmodel.RuleConflict, cap int) []string {
	set := map[string]bool{}
	for _, m := range members {
		for _, t := range m.Tags {
			set[t] = true
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	if len(tags) > cap {
		tags = tags[:cap]
	}
	return tags
}

func modalContextLevel(members []reviewmodel.RuleConflict) (consistency float64, modal contextlevel.Level, hasModal bool) {
	counts := map[string]int{}
	total := 0
	for _, m := range members {
		if m.LLMContextLevel == nil {
			continue
		}
		counts[string(*m.LLMContextLevel)]++
		total++
	}
	if total == 0 {
		return 0, "", false
	}
	best, bestCount := "", -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return float64(bestCount) / float64(total), contextlevel.Level(best), true
}

func countUniqueFiles(members []reviewmodel.RuleConflict) int {
	set := map[string]bool{}
	for _, m := range members {
		set[m.FilePath] = true
	}
	return len(set)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// PromoteManually forces hint into a learned rule with a lower base
// confidence than the automatic path would assign.
func PromoteManually(hint reviewmodel.ReferenceHint) reviewmodel.ApplicableRule {
	confidence := 0.70
	if hint.Consistency > 0 {
		confidence = 0.9 * hint.Consistency
	}
	if confidence > 0.85 {
		confidence = 0.85
	}
	return reviewmodel.ApplicableRule{
		RuleID:                fingerprint(hint.Language, hint.Tags, hint.ConflictType),
		Language:              hint.Language,
		RequiredTags:          hint.Tags,
		Confidence:            confidence,
		SampleCount:           hint.SampleCount,
		Consistency:           hint.Consistency,
		UniqueFiles:           hint.UniqueFiles,
		ConflictType:          hint.ConflictType,
	}
}
