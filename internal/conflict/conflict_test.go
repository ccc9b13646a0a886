package conflict

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

func lvl(l contextlevel.Level) *contextlevel.Level { return &l }

func TestDetectRuleHighLLMExpand(t *testing.T) {
	unit := &reviewmodel.ReviewUnit{RuleConfidence: 0.9, RuleContextLevel: contextlevel.Function}
	item := &reviewmodel.PlanItem{LLMContextLevel: lvl(contextlevel.FullFile)}
	c := Detect(unit, item, time.Now())
	require.NotNil(t, c)
	require.Equal(t, reviewmodel.ConflictRuleHighLLMExpand, c.ConflictType)
}

func TestDetectRuleHighLLMSkip(t *testing.T) {
	unit := &reviewmodel.ReviewUnit{RuleConfidence: 0.9, RuleContextLevel: contextlevel.FileContext}
	item := &reviewmodel.PlanItem{SkipReview: true}
	c := Detect(unit, item, time.Now())
	require.NotNil(t, c)
	require.Equal(t, reviewmodel.ConflictRuleHighLLMSkip, c.ConflictType)
}

func TestDetectRuleLowLLMConsistent(t *testing.T) {
	unit := &reviewmodel.ReviewUnit{RuleConfidence: 0.1, RuleContextLevel: contextlevel.DiffOnly}
	item := &reviewmodel.PlanItem{LLMContextLevel: lvl(contextlevel.Function)}
	c := Detect(unit, item, time.Now())
	require.NotNil(t, c)
	require.Equal(t, reviewmodel.ConflictRuleLowLLMConsistent, c.ConflictType)
}

func TestDetectContextLevelMismatch(t *testing.T) {
	unit := &reviewmodel.ReviewUnit{RuleConfidence: 0.6, RuleContextLevel: contextlevel.DiffOnly}
	item := &reviewmodel.PlanItem{LLMContextLevel: lvl(contextlevel.FullFile)}
	c := Detect(unit, item, time.Now())
	require.NotNil(t, c)
	require.Equal(t, reviewmodel.ConflictContextLevelMismatch, c.ConflictType)
}

func TestDetectNoConflictWhenAligned(t *testing.T) {
	unit := &reviewmodel.ReviewUnit{RuleConfidence: 0.6, RuleContextLevel: contextlevel.Function}
	item := &reviewmodel.PlanItem{LLMContextLevel: lvl(contextlevel.FileContext)}
	c := Detect(unit, item, time.Now())
	require.Nil(t, c)
}

func TestRecordAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker(dir)
	c := reviewmodel.RuleConflict{
		ConflictType: reviewmodel.ConflictRuleHighLLMExpand,
		UnitID:       "u1",
		Language:     "go",
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 678000000, time.UTC),
	}
	require.NoError(t, tr.Record(c))

	loaded, err := tr.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "u1", loaded[0].UnitID)

	entries, _ := filepathGlobJSON(t, dir)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0], "20260102_030405_678000_rule_high_llm_expand.json")
}

func filepathGlobJSON(t *testing.T, dir string) ([]string, error) {
	t.Helper()
	return filepath.Glob(filepath.Join(dir, "*.json"))
}

func TestCleanupByAgeThenCount(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker(dir)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	old := reviewmodel.RuleConflict{ConflictType: reviewmodel.ConflictContextLevelMismatch, Timestamp: now.AddDate(0, 0, -40)}
	recent1 := reviewmodel.RuleConflict{ConflictType: reviewmodel.ConflictContextLevelMismatch, Timestamp: now.AddDate(0, 0, -1)}
	recent2 := reviewmodel.RuleConflict{ConflictType: reviewmodel.ConflictContextLevelMismatch, Timestamp: now}

	require.NoError(t, tr.Record(old))
	require.NoError(t, tr.Record(recent1))
	require.NoError(t, tr.Record(recent2))

	deleted, err := tr.Cleanup(now, 30, 0)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	remaining, _ := tr.Load()
	require.Len(t, remaining, 2)

	deleted, err = tr.Cleanup(now, 30, 1)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	remaining, _ = tr.Load()
	require.Len(t, remaining, 1)
}

func TestAnalyzePromotesConsistentCluster(t *testing.T) {
	var conflicts []reviewmodel.RuleConflict
	for i := 0; i < 6; i++ {
		conflicts = append(conflicts, reviewmodel.RuleConflict{
			ConflictType:    reviewmodel.ConflictRuleLowLLMConsistent,
			Language:        "python",
			Tags:            []string{"migration_file", "schema_change"},
			LLMContextLevel: lvl(contextlevel.FullFile),
			FilePath:        "migrations/" + string(rune('a'+i)) + ".py",
		})
	}
	applicable, hints := Analyze(conflicts)
	require.Len(t, hints, 0)
	require.Len(t, applicable, 1)
	require.Equal(t, contextlevel.FullFile, applicable[0].SuggestedContextLevel)
	require.GreaterOrEqual(t, applicable[0].Confidence, 0.9)
}

func TestAnalyzeProducesHintWhenBelowThreshold(t *testing.T) {
	conflicts := []reviewmodel.RuleConflict{
		{ConflictType: reviewmodel.ConflictRuleLowLLMConsistent, Language: "ruby", Tags: []string{"x"}, LLMContextLevel: lvl(contextlevel.Function), FilePath: "a.rb"},
	}
	applicable, hints := Analyze(conflicts)
	require.Empty(t, applicable)
	require.Len(t, hints, 1)
	require.Contains(t, hints[0].Reason, "sample_count")
}
