package scanner

import (
	"io"
	"path/filepath"
	"sort"
	"sync"

	sarifpkg "github.com/owenrumney/go-sarif/v3/pkg/report/v210/sarif"
)

// MaxIssuesPerSeverity bounds how many issues a session keeps per severity
// bucket; issues past the cap, in the order Store receives them, are dropped.
const MaxIssuesPerSeverity = 20000

// MaxPageSize bounds GetStaticScanIssuesPage's limit parameter.
const MaxPageSize = 200

// Linked is the cached per-session unit/issue linkage, stored alongside the
// severity buckets so a later page request doesn't need to re-run Service.
type Linked struct {
	DiffUnits     []string         `json:"diff_units"`
	UnitIssues    map[string][]int `json:"unit_issues"`
	MappedCount   int              `json:"mapped_count"`
	UnmappedCount int              `json:"unmapped_count"`
}

// ResultStore caches one session's static-scan result, exposing the
// paginated read API the pipeline's session/reporting layer consumes.
type ResultStore struct {
	mu         sync.RWMutex
	bySeverity map[Severity][]Issue
	linked     Linked
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{bySeverity: map[Severity][]Issue{}}
}

// Store records a completed LinkedResult, bucketing issues by severity and
// capping each bucket at MaxIssuesPerSeverity: the first issues of each
// bucket are kept, in the severity/file/line/column/rule order Service.Run
// already sorted them into, and the rest are dropped.
func (s *ResultStore) Store(result LinkedResult, unitIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buckets := map[Severity][]Issue{}
	for _, issue := range result.Issues {
		buckets[issue.Severity] = append(buckets[issue.Severity], issue)
	}
	for sev, issues := range buckets {
		if len(issues) > MaxIssuesPerSeverity {
			issues = issues[:MaxIssuesPerSeverity]
		}
		buckets[sev] = issues
	}
	s.bySeverity = buckets

	s.linked = Linked{
		DiffUnits:     unitIDs,
		UnitIssues:    result.UnitIssues,
		MappedCount:   result.MappedCount,
		UnmappedCount: result.UnmappedCount,
	}
}

// GetStaticScanIssuesPage returns a severity-filtered, offset/limit page of
// cached issues. A zero-value severityFilter (a nil pointer) returns across
// all severities, sorted severity-then-file-then-line (the storage order).
// A limit that is non-positive or above MaxPageSize becomes MaxPageSize.
func (s *ResultStore) GetStaticScanIssuesPage(severityFilter *Severity, offset, limit int) ([]Issue, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var all []Issue
	if severityFilter != nil {
		all = append(all, s.bySeverity[*severityFilter]...)
	} else {
		sevs := make([]Severity, 0, len(s.bySeverity))
		for sev := range s.bySeverity {
			sevs = append(sevs, sev)
		}
		sort.Slice(sevs, func(i, j int) bool { return sevs[i] < sevs[j] })
		for _, sev := range sevs {
			all = append(all, s.bySeverity[sev]...)
		}
	}

	total := len(all)
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total
}

// GetStaticScanLinked returns the cached unit/issue linkage for the session.
func (s *ResultStore) GetStaticScanLinked() Linked {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linked
}

// WriteSARIF encodes every cached issue as a SARIF 2.1.0 run, for CI
// consumption alongside the pipeline's own plan/conflict output.
func (s *ResultStore) WriteSARIF(w io.Writer, toolName, toolVersion, toolURI string) error {
	s.mu.RLock()
	var all []Issue
	for _, issues := range s.bySeverity {
		all = append(all, issues...)
	}
	s.mu.RUnlock()
	sortIssues(all)

	if toolName == "" {
		toolName = "deltareview"
	}
	if toolURI == "" {
		toolURI = "https://github.com/wharflab/deltareview"
	}

	report := sarifpkg.NewReport()
	run := sarifpkg.NewRunWithInformationURI(toolName, toolURI)
	if toolVersion != "" {
		run.Tool.Driver.WithVersion(toolVersion)
	}

	ruleSet := map[string]bool{}
	fileSet := map[string]bool{}
	for _, issue := range all {
		if issue.RuleID != "" {
			ruleSet[issue.RuleID] = true
		}
		fileSet[filepath.ToSlash(issue.File)] = true
	}
	ruleIDs := sortedKeys(ruleSet)
	for _, id := range ruleIDs {
		run.AddRule(id)
	}
	files := sortedKeys(fileSet)
	for _, f := range files {
		run.AddDistinctArtifact(f)
	}

	for _, issue := range all {
		msg := issue.Message
		if msg == "" {
			msg = issue.RuleID
		}
		result := sarifpkg.NewRuleResult(issue.RuleID).
			WithMessage(sarifpkg.NewTextMessage(msg)).
			WithLevel(severityToSARIFLevel(issue.Severity))

		region := sarifpkg.NewRegion().WithStartLine(issue.Line)
		if issue.Column > 0 {
			region.WithStartColumn(issue.Column)
		}
		physicalLocation := sarifpkg.NewPhysicalLocation().
			WithArtifactLocation(sarifpkg.NewSimpleArtifactLocation(filepath.ToSlash(issue.File))).
			WithRegion(region)
		result.WithLocations([]*sarifpkg.Location{
			sarifpkg.NewLocationWithPhysicalLocation(physicalLocation),
		})
		run.AddResult(result)
	}

	report.AddRun(run)
	return report.PrettyWrite(w)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func severityToSARIFLevel(s Severity) string {
	switch s {
	case 0: // SeverityError
		return "error"
	case 1: // SeverityWarning
		return "warning"
	default:
		return "note"
	}
}
