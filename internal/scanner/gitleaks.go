package scanner

import (
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/wharflab/deltareview/internal/rules"
)

// GitleaksDriver scans file content for hardcoded secrets using gitleaks'
// curated pattern database. It applies to every language; redacts the
// actual secret value in reported messages.
type GitleaksDriver struct {
	disabled bool

	mu       sync.Mutex
	detector *detect.Detector
	initErr  error
}

// NewGitleaksDriver creates a driver; set disabled to exclude it without
// removing it from the registry's config-disabled list.
func NewGitleaksDriver(disabled bool) *GitleaksDriver {
	return &GitleaksDriver{disabled: disabled}
}

func (d *GitleaksDriver) Name() string { return "secrets" }

func (d *GitleaksDriver) Enabled() bool { return !d.disabled }

func (d *GitleaksDriver) Info() Info {
	return Info{Name: d.Name(), Languages: nil}
}

func (d *GitleaksDriver) ensureDetector() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detector != nil || d.initErr != nil {
		return d.initErr
	}
	det, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		d.initErr = err
		return err
	}
	d.detector = det
	return nil
}

func (d *GitleaksDriver) CheckAvailability() (bool, string) {
	if err := d.ensureDetector(); err != nil {
		return false, "gitleaks detector init failed: " + err.Error()
	}
	return true, ""
}

func (d *GitleaksDriver) Scan(filePath string, content []byte) ([]Issue, error) {
	if err := d.ensureDetector(); err != nil {
		return nil, err
	}

	findings := d.detector.DetectString(string(content))
	if len(findings) == 0 {
		return nil, nil
	}

	issues := make([]Issue, 0, len(findings))
	for _, f := range findings {
		msg := f.Description
		if msg == "" {
			msg = "Potential secret detected"
		}
		issues = append(issues, Issue{
			File:     filePath,
			Line:     f.StartLine + 1,
			Severity: rules.SeverityError,
			RuleID:   f.RuleID,
			Message:  msg + ": " + redactSecret(f.Secret),
			Source:   d.Name(),
		})
	}
	return issues, nil
}

func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
