package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wharflab/deltareview/internal/contextlevel"
	"github.com/wharflab/deltareview/internal/reviewmodel"
)

func TestBuildReviewIndexGroupsUnitsByFile(t *testing.T) {
	units := []reviewmodel.ReviewUnit{
		{UnitID: "u1", FilePath: "a.go", ChangeType: reviewmodel.ChangeModify, RuleContextLevel: contextlevel.Function},
		{UnitID: "u2", FilePath: "a.go", ChangeType: reviewmodel.ChangeAdd},
		{UnitID: "u3", FilePath: "b.go", ChangeType: reviewmodel.ChangeModify},
	}

	idx := BuildReviewIndex(units, "sess-1", "/repo")

	require.Len(t, idx.Units, 3)
	require.Len(t, idx.Files, 2)
	require.Equal(t, "a.go", idx.Files[0].FilePath)
	require.Equal(t, "b.go", idx.Files[1].FilePath)
	require.Contains(t, idx.Summary, "3 review unit(s)")
}

func TestExtractJSONStripsMarkdownFence(t *testing.T) {
	require.Equal(t, `{"plan":[]}`, extractJSON("```json\n{\"plan\":[]}\n```"))
	require.Equal(t, `{"plan":[]}`, extractJSON(`{"plan":[]}`))
}
