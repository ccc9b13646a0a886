// Package pipelineerrors defines the error taxonomy surfaced by the review
// pipeline. Only InputError and VCSError abort a run. SessionNotFound and
// SessionOperationError carry no SkipReason and are returned to callers of
// the session store; every other kind degrades the pipeline to partial
// output and is reported via the SkipReason interface rather than
// propagated as a fatal error.
package pipelineerrors

import "fmt"

// SkipReason is implemented by errors that degrade the pipeline instead of
// aborting it: the operation they describe is skipped, and the pipeline
// continues with whatever it already has.
type SkipReason interface {
	error
	SkipReason() string
}

// InputError means no usable diff was found, or the request was malformed
// (bad mode, missing base branch). Aborts the run.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return "input error: " + e.Reason }

// VCSError means an underlying VCS command failed. Aborts the run.
type VCSError struct {
	Command string
	Stderr  string
	Cause   error
}

func (e *VCSError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("vcs error running %q: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("vcs error running %q: %v", e.Command, e.Cause)
}

func (e *VCSError) Unwrap() error { return e.Cause }

// ParseError means a hunk or patch failed to parse. The affected hunk is
// skipped with a logged warning; never fatal.
type ParseError struct {
	File   string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.File, e.Detail)
}

func (e *ParseError) SkipReason() string {
	return fmt.Sprintf("skipped unparseable hunk in %s: %s", e.File, e.Detail)
}

// PlannerError means the planner's response was unparseable or absent.
// Fusion falls back to rule-only selection.
type PlannerError struct {
	Detail string
}

func (e *PlannerError) Error() string { return "planner error: " + e.Detail }

func (e *PlannerError) SkipReason() string {
	return "planner output unavailable, falling back to rule-only selection: " + e.Detail
}

// ScannerUnavailable means a scanner's availability probe failed; the
// scanner is silently skipped for the run.
type ScannerUnavailable struct {
	Scanner string
	Reason  string
}

func (e *ScannerUnavailable) Error() string {
	return fmt.Sprintf("scanner %q unavailable: %s", e.Scanner, e.Reason)
}

func (e *ScannerUnavailable) SkipReason() string {
	return fmt.Sprintf("scanner %q skipped: %s", e.Scanner, e.Reason)
}

// ScannerRuntimeError means a specific scan invocation failed mid-run.
// That file's issues are whatever was produced before the failure;
// progress still advances.
type ScannerRuntimeError struct {
	Scanner string
	File    string
	Cause   error
}

func (e *ScannerRuntimeError) Error() string {
	return fmt.Sprintf("scanner %q failed on %s: %v", e.Scanner, e.File, e.Cause)
}

func (e *ScannerRuntimeError) Unwrap() error { return e.Cause }

func (e *ScannerRuntimeError) SkipReason() string {
	return fmt.Sprintf("scanner %q failed on %s, partial results kept: %v", e.Scanner, e.File, e.Cause)
}

// PersistenceError means a session save failed; the store falls back to a
// temp-directory copy and logs the failure. Never crashes the pipeline.
type PersistenceError struct {
	SessionID string
	Cause     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist session %q: %v", e.SessionID, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

func (e *PersistenceError) SkipReason() string {
	return fmt.Sprintf("session %q saved to fallback location after error: %v", e.SessionID, e.Cause)
}

// SessionNotFound means a lookup referenced a session id that doesn't exist.
type SessionNotFound struct {
	SessionID string
}

func (e *SessionNotFound) Error() string {
	return fmt.Sprintf("session %q not found", e.SessionID)
}

// SessionOperationError wraps a failed session-manager operation (delete,
// list, archive) that isn't a simple not-found.
type SessionOperationError struct {
	Op    string
	Cause error
}

func (e *SessionOperationError) Error() string {
	return fmt.Sprintf("session operation %q failed: %v", e.Op, e.Cause)
}

func (e *SessionOperationError) Unwrap() error { return e.Cause }

// Classify reports whether err should abort the pipeline (abort=true) or
// degrade it (abort=false, reason holds the skip explanation).
func Classify(err error) (abort bool, reason string) {
	if err == nil {
		return false, ""
	}
	if sr, ok := err.(SkipReason); ok {
		return false, sr.SkipReason()
	}
	switch err.(type) {
	case *InputError, *VCSError:
		return true, ""
	default:
		return true, ""
	}
}
