package reporter

import "github.com/wharflab/deltareview/internal/reviewmodel"

func hunkAt(line int) reviewmodel.HunkRange {
	return reviewmodel.HunkRange{NewStart: line, NewLines: 1}
}
