package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wharflab/deltareview/internal/reviewmodel"
	"github.com/wharflab/deltareview/internal/scanner"
)

func TestNewFilteredRegistryDropsDisabledCodes(t *testing.T) {
	full := newFilteredRegistry(nil)
	require.NotEmpty(t, full.Codes())

	filtered := newFilteredRegistry([]string{"config-file"})
	require.False(t, filtered.Has("config-file"))
	require.Equal(t, len(full.Codes())-1, len(filtered.Codes()))
}

func TestDiffFilePathsDeduplicatesInOrder(t *testing.T) {
	units := []reviewmodel.ReviewUnit{
		{UnitID: "u1", FilePath: "b.go"},
		{UnitID: "u2", FilePath: "a.go"},
		{UnitID: "u3", FilePath: "b.go"},
	}
	require.Equal(t, []string{"b.go", "a.go"}, diffFilePaths(units))
}

func TestToStaticScanLinkedPreservesUnitOrder(t *testing.T) {
	units := []reviewmodel.ReviewUnit{
		{UnitID: "u1", FilePath: "a.go"},
		{UnitID: "u2", FilePath: "b.go"},
	}
	result := scanner.LinkedResult{
		UnitIssues:    map[string][]int{"u2": {0}},
		MappedCount:   1,
		UnmappedCount: 0,
	}

	linked := toStaticScanLinked(units, result)

	require.Equal(t, []string{"u1", "u2"}, linked.DiffUnits)
	require.Len(t, linked.UnitIssues, 1)
	require.Equal(t, "u2", linked.UnitIssues[0].UnitID)
	require.Equal(t, []int{0}, linked.UnitIssues[0].IssueID)
	require.Equal(t, 1, linked.MappedCount)
}

func TestDisabledNameMatchesExactly(t *testing.T) {
	require.True(t, disabledName("secrets", []string{"staticlint", "secrets"}))
	require.False(t, disabledName("secrets", []string{"staticlint"}))
}
