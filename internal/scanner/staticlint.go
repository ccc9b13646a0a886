package scanner

import (
	"bufio"
	"bytes"
	"regexp"

	"github.com/wharflab/deltareview/internal/rules"
)

// StaticlintDriver is a small built-in scanner that exists to exercise the
// Driver/Registry/Cache/StaticScanService pipeline without requiring an
// external binary. It is not a real linter: it flags a handful of textual
// smells (broad exception swallowing, leftover TODO/FIXME markers in
// security-sensitive code, obviously hardcoded credential assignments).
type StaticlintDriver struct {
	languages []string
}

// NewStaticlintDriver creates a driver applicable to languages.
func NewStaticlintDriver(languages []string) *StaticlintDriver {
	return &StaticlintDriver{languages: languages}
}

func (d *StaticlintDriver) Name() string { return "staticlint" }

func (d *StaticlintDriver) Enabled() bool { return true }

func (d *StaticlintDriver) Info() Info {
	return Info{Name: d.Name(), Languages: d.languages}
}

func (d *StaticlintDriver) CheckAvailability() (bool, string) { return true, "" }

var (
	bareExceptPattern  = regexp.MustCompile(`^\s*except\s*:\s*$`)
	todoPattern        = regexp.MustCompile(`(?i)\b(TODO|FIXME)\b`)
	hardcodedCredRegex = regexp.MustCompile(`(?i)(password|secret|api_key|apikey)\s*[:=]\s*["'][^"'\s]{4,}["']`)
)

func (d *StaticlintDriver) Scan(filePath string, content []byte) ([]Issue, error) {
	var issues []Issue
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()

		if bareExceptPattern.MatchString(text) {
			issues = append(issues, Issue{
				File: filePath, Line: line, Severity: rules.SeverityWarning,
				RuleID: "staticlint/bare-except", Message: "bare except swallows all exceptions", Source: d.Name(),
			})
		}
		if hardcodedCredRegex.MatchString(text) {
			issues = append(issues, Issue{
				File: filePath, Line: line, Severity: rules.SeverityError,
				RuleID: "staticlint/hardcoded-credential", Message: "possible hardcoded credential", Source: d.Name(),
			})
		}
		if todoPattern.MatchString(text) && isSecuritySensitivePath(filePath) {
			issues = append(issues, Issue{
				File: filePath, Line: line, Severity: rules.SeverityInfo,
				RuleID: "staticlint/todo-in-sensitive-path", Message: "TODO/FIXME left in a security-sensitive file", Source: d.Name(),
			})
		}
	}
	return issues, nil
}

func isSecuritySensitivePath(path string) bool {
	for _, kw := range []string{"auth", "login", "session", "crypto", "security"} {
		if bytes.Contains([]byte(path), []byte(kw)) {
			return true
		}
	}
	return false
}
