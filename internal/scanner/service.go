package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wharflab/deltareview/internal/reviewmodel"
)

// DefaultConcurrency is the default number of files scanned in flight.
const DefaultConcurrency = 2

// EventType enumerates the progress events StaticScanService emits.
type EventType string

const (
	EventStart      EventType = "static_scan_start"
	EventFileStart  EventType = "static_scan_file_start"
	EventFileDone   EventType = "static_scan_file_done"
	EventComplete   EventType = "static_scan_complete"
)

// Event is one progress notification. Callback implementations must not
// block; event delivery is best-effort and a panic/error in Callback never
// aborts the scan.
type Event struct {
	Type      EventType
	File      string
	Progress  float64
	Data      map[string]any
	Timestamp time.Time
}

// Callback receives scan progress events.
type Callback func(Event)

// riskKeywordWeights scores file paths by keyword, independent of tags.
var riskKeywordWeights = map[string]int{
	"auth": 100, "security": 100, "crypto": 100, "token": 100,
	"config": 50, "settings": 50, "env": 50, "yaml": 50, "toml": 50,
}

var tagWeights = map[string]int{
	"security_sensitive": 80,
	"config_file":        40,
	"routing_file":        30,
}

// Request parameterizes one scan run.
type Request struct {
	Files       []string
	Units       []reviewmodel.ReviewUnit
	ProjectRoot string
	SessionID   string
	Callback    Callback
	Concurrency int
}

// LinkedResult is the per-unit scanner-issue linkage for a run, alongside
// the aggregated, severity-sorted issue list.
type LinkedResult struct {
	Issues             []Issue
	UnitIssues         map[string][]int // unit_id -> indexes into Issues
	MappedCount        int
	UnmappedCount      int
	SkippedByReason    map[string]int
	ScannersUsed       []string
}

// Service runs available scanners across a file list without blocking the
// caller's own goroutine budget; it owns its own small worker pool.
type Service struct {
	Registry *Registry
	Cache    *Cache
	Logger   *slog.Logger
}

// NewService creates a Service over registry and cache.
func NewService(registry *Registry, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{Registry: registry, Cache: cache, Logger: logger}
}

// Run executes the 10-step static scan protocol described in the review
// pipeline design and returns the linked result. Context cancellation is
// observed between files, never mid-scanner-invocation.
func (s *Service) Run(ctx context.Context, req Request) LinkedResult {
	emit := func(e Event) {
		if req.Callback == nil {
			return
		}
		defer func() { _ = recover() }()
		e.Timestamp = time.Now()
		req.Callback(e)
	}

	files := FilterIgnored(req.Files, s.Registry.config.IgnoreGlobs)

	fileTags := tagsByFile(req.Units)
	ranked := rankByRisk(files, fileTags)

	byLanguage, skipped := classifyByLanguage(ranked)
	if ignoredCount := len(req.Files) - len(files); ignoredCount > 0 {
		skipped["ignored_by_glob"] = ignoredCount
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	emit(Event{Type: EventStart, Data: map[string]any{
		"files_total": len(ranked),
		"skipped":     skipped,
	}})

	type fileResult struct {
		file   string
		issues []Issue
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []fileResult
	scannersUsed := map[string]bool{}
	done := 0
	total := 0
	for _, files := range byLanguage {
		total += len(files)
	}

	for language, files := range byLanguage {
		drivers := s.Registry.Available(language)
		if len(drivers) == 0 {
			mu.Lock()
			skipped["no_scanner_available:"+language] += len(files)
			mu.Unlock()
			continue
		}
		for _, driver := range drivers {
			scannersUsed[driver.Name()] = true
		}

		for _, file := range files {
			if ctx.Err() != nil {
				break
			}
			file := file
			emit(Event{Type: EventFileStart, File: file})

			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				issues := s.scanFile(file, req.ProjectRoot, drivers)

				mu.Lock()
				results = append(results, fileResult{file: file, issues: issues})
				done++
				denom := total
				if denom < 1 {
					denom = 1
				}
				progress := float64(done) / float64(denom)
				mu.Unlock()

				emit(Event{Type: EventFileDone, File: file, Progress: progress})
			}()
		}
	}
	wg.Wait()

	var allIssues []Issue
	for _, r := range results {
		allIssues = append(allIssues, r.issues...)
	}
	sortIssues(allIssues)

	unitIssues, mapped, unmapped := linkIssuesToUnits(allIssues, req.Units)

	usedNames := make([]string, 0, len(scannersUsed))
	for n := range scannersUsed {
		usedNames = append(usedNames, n)
	}
	sort.Strings(usedNames)

	top := allIssues
	if len(top) > 50 {
		top = top[:50]
	}
	emit(Event{Type: EventComplete, Data: map[string]any{
		"total_issues": len(allIssues),
		"top_issues":   top,
		"scanners":     usedNames,
	}})

	return LinkedResult{
		Issues:          allIssues,
		UnitIssues:      unitIssues,
		MappedCount:     mapped,
		UnmappedCount:   unmapped,
		SkippedByReason: skipped,
		ScannersUsed:    usedNames,
	}
}

func (s *Service) scanFile(file, root string, drivers []Driver) []Issue {
	content, err := os.ReadFile(filepath.Join(root, file))
	if err != nil {
		return nil
	}
	hash := ContentHash(content)
	now := time.Now()

	var issues []Issue
	for _, d := range drivers {
		if cached, ok := s.Cache.Get(file, d.Name(), hash, now); ok {
			issues = append(issues, cached...)
			continue
		}
		found, err := d.Scan(file, content)
		if err != nil {
			s.Logger.Warn("scanner runtime error", "scanner", d.Name(), "file", file, "error", err)
			continue
		}
		s.Cache.Set(file, d.Name(), hash, found, now)
		issues = append(issues, found...)
	}
	return issues
}

func tagsByFile(units []reviewmodel.ReviewUnit) map[string]map[string]bool {
	out := map[string]map[string]bool{}
	for _, u := range units {
		path := NormalizePath(u.FilePath)
		if out[path] == nil {
			out[path] = map[string]bool{}
		}
		for _, t := range u.Tags {
			out[path][t] = true
		}
	}
	return out
}

func rankByRisk(files []string, fileTags map[string]map[string]bool) []string {
	type scored struct {
		file  string
		score int
	}
	scoredFiles := make([]scored, 0, len(files))
	for _, f := range files {
		score := 0
		lower := strings.ToLower(f)
		for kw, weight := range riskKeywordWeights {
			if strings.Contains(lower, kw) {
				score += weight
			}
		}
		for tag := range fileTags[NormalizePath(f)] {
			score += tagWeights[tag]
		}
		scoredFiles = append(scoredFiles, scored{file: f, score: score})
	}
	sort.SliceStable(scoredFiles, func(i, j int) bool { return scoredFiles[i].score > scoredFiles[j].score })

	out := make([]string, len(scoredFiles))
	for i, sf := range scoredFiles {
		out[i] = sf.file
	}
	return out
}

func classifyByLanguage(files []string) (map[string][]string, map[string]int) {
	byLang := map[string][]string{}
	skipped := map[string]int{}
	for _, f := range files {
		lang := languageFromExt(f)
		switch lang {
		case "":
			skipped["unknown_language"]++
		case "text":
			skipped["doc_file"]++
		default:
			byLang[lang] = append(byLang[lang], f)
		}
	}
	return byLang, skipped
}

var scanLanguageByExt = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".jsx": "javascript",
	".ts": "typescript", ".tsx": "typescript", ".java": "java", ".rb": "ruby",
	".rs": "rust", ".yaml": "yaml", ".yml": "yaml", ".toml": "toml", ".json": "json",
	".md": "text", ".txt": "text",
}

func languageFromExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := scanLanguageByExt[ext]; ok {
		return lang
	}
	return ""
}

func sortIssues(issues []Issue) {
	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity != b.Severity {
			return a.Severity < b.Severity // lower value = more severe
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleID < b.RuleID
	})
}

// linkIssuesToUnits maps each issue to at most one unit per file: the first
// unit (in ascending new_start order) whose hunk range contains the issue's
// line.
func linkIssuesToUnits(issues []Issue, units []reviewmodel.ReviewUnit) (map[string][]int, int, int) {
	byFile := map[string][]reviewmodel.ReviewUnit{}
	for _, u := range units {
		path := NormalizePath(u.FilePath)
		byFile[path] = append(byFile[path], u)
	}
	for path, us := range byFile {
		sort.SliceStable(us, func(i, j int) bool { return us[i].HunkRange.NewStart < us[j].HunkRange.NewStart })
		byFile[path] = us
	}

	unitIssues := map[string][]int{}
	mapped, unmapped := 0, 0

	for idx, issue := range issues {
		path := NormalizePath(issue.File)
		var matched bool
		for _, u := range byFile[path] {
			if u.HunkRange.Contains(issue.Line) {
				unitIssues[u.UnitID] = append(unitIssues[u.UnitID], idx)
				matched = true
				break
			}
		}
		if matched {
			mapped++
		} else {
			unmapped++
		}
	}
	return unitIssues, mapped, unmapped
}
