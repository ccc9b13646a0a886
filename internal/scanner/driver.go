// Package scanner provides the static-scan side service: a registry of
// scanner drivers, a content-hash cache over their output, and the
// parallel service that fans scans out across files and links results back
// onto review units.
package scanner

import "github.com/wharflab/deltareview/internal/rules"

// Severity mirrors the rules package's severity scale for scanner issues;
// scanners report on a coarser three-level scale than lint rules do.
type Severity = rules.Severity

// Issue is one normalized finding from a scanner driver.
type Issue struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Column   int      `json:"column,omitempty"`
	Severity Severity `json:"severity"`
	RuleID   string   `json:"rule_id,omitempty"`
	Message  string   `json:"message,omitempty"`
	Source   string   `json:"source"`
}

// Info is static metadata about a driver, returned for diagnostics.
type Info struct {
	Name      string   `json:"name"`
	Languages []string `json:"languages"`
}

// Driver is the contract every scanner implementation satisfies: a binary
// probe, the actual scan, and static metadata. The service's worker pool
// bounds how many files are scanned at once but takes no per-driver lock,
// so one driver instance may receive concurrent Scan calls.
type Driver interface {
	Name() string
	Enabled() bool
	CheckAvailability() (ok bool, reason string)
	Scan(filePath string, content []byte) ([]Issue, error)
	Info() Info
}
