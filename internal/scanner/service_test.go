package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wharflab/deltareview/internal/reviewmodel"
)

type fakeDriver struct {
	name  string
	langs []string
	line  int
}

func (d *fakeDriver) Name() string                          { return d.name }
func (d *fakeDriver) Enabled() bool                          { return true }
func (d *fakeDriver) Info() Info                             { return Info{Name: d.name, Languages: d.langs} }
func (d *fakeDriver) CheckAvailability() (bool, string)      { return true, "" }
func (d *fakeDriver) Scan(file string, content []byte) ([]Issue, error) {
	return []Issue{{File: file, Line: d.line, Severity: 0, RuleID: d.name + "/x", Source: d.name}}, nil
}

func TestRunScansFilesAndLinksToUnits(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.go"), []byte("package app\nfunc F() {}\n"), 0o644))

	registry := NewRegistry(Config{}, nil)
	registry.Register(&fakeDriver{name: "fake", langs: []string{"go"}, line: 2})

	svc := NewService(registry, NewCache(0, 0), nil)

	units := []reviewmodel.ReviewUnit{
		{UnitID: "u1", FilePath: "app.go", HunkRange: reviewmodel.HunkRange{NewStart: 1, NewLines: 3}},
	}

	var events []Event
	result := svc.Run(context.Background(), Request{
		Files:       []string{"app.go"},
		Units:       units,
		ProjectRoot: root,
		Callback:    func(e Event) { events = append(events, e) },
	})

	require.Len(t, result.Issues, 1)
	require.Equal(t, 1, result.MappedCount)
	require.Equal(t, 0, result.UnmappedCount)
	require.Contains(t, result.UnitIssues, "u1")
	require.Contains(t, result.ScannersUsed, "fake")

	require.NotEmpty(t, events)
	require.Equal(t, EventStart, events[0].Type)
	require.Equal(t, EventComplete, events[len(events)-1].Type)
}

func TestRunSkipsFilesWithNoAvailableScanner(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("docs"), 0o644))

	registry := NewRegistry(Config{}, nil)
	svc := NewService(registry, NewCache(0, 0), nil)

	result := svc.Run(context.Background(), Request{
		Files:       []string{"README.md"},
		ProjectRoot: root,
	})

	require.Empty(t, result.Issues)
	require.Equal(t, 1, result.SkippedByReason["doc_file"])
}

func TestRankByRiskPrefersSecuritySensitiveFiles(t *testing.T) {
	tags := map[string]map[string]bool{
		"internal/auth/login.go": {"security_sensitive": true},
	}
	ranked := rankByRisk([]string{"internal/util/helpers.go", "internal/auth/login.go"}, tags)
	require.Equal(t, "internal/auth/login.go", ranked[0])
}

func TestSortIssuesOrdersBySeverityThenLocation(t *testing.T) {
	issues := []Issue{
		{File: "b.go", Line: 1, Severity: 1},
		{File: "a.go", Line: 5, Severity: 0},
		{File: "a.go", Line: 2, Severity: 0},
	}
	sortIssues(issues)
	require.Equal(t, "a.go", issues[0].File)
	require.Equal(t, 2, issues[0].Line)
	require.Equal(t, "a.go", issues[1].File)
	require.Equal(t, 5, issues[1].Line)
	require.Equal(t, "b.go", issues[2].File)
}
