package scanner

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Severity ranks the risk of an issue. HIGH > MEDIUM > LOW.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Rank returns the numeric ordering of a severity; unknown values rank
// below LOW.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity converts a user-supplied severity name. An unknown name
// is a configuration error.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "HIGH":
		return SeverityHigh, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "LOW":
		return SeverityLow, nil
	default:
		return "", fmt.Errorf("unknown severity %q (expected HIGH, MEDIUM or LOW)", name)
	}
}

// Issue is a single security finding. Issues are created by detectors
// during a scan and never mutated afterwards.
type Issue struct {
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number"`
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Snippet     string   `json:"snippet"`
	Fingerprint string   `json:"fingerprint"`
}

// NewIssue builds an Issue and stamps it with a stable fingerprint used
// by baseline suppression.
func NewIssue(path string, line int, ruleID string, severity Severity, message, snippet string) Issue {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", ruleID, path, line, snippet)
	return Issue{
		FilePath:    path,
		LineNumber:  line,
		RuleID:      ruleID,
		Severity:    severity,
		Message:     message,
		Snippet:     snippet,
		Fingerprint: fmt.Sprintf("%x", h.Sum(nil)),
	}
}

// DiagnosticReason classifies a recoverable per-file event.
type DiagnosticReason string

const (
	DiagOversize      DiagnosticReason = "skipped-oversize"
	DiagBinary        DiagnosticReason = "skipped-binary"
	DiagReadError     DiagnosticReason = "read-error"
	DiagDetectorPanic DiagnosticReason = "detector-panic"
)

// Diagnostic records a file that was skipped or partially scanned.
// Diagnostics are reported alongside issues but are never findings.
type Diagnostic struct {
	FilePath string           `json:"file_path"`
	Reason   DiagnosticReason `json:"reason"`
	Detail   string           `json:"detail,omitempty"`
}

// Summary holds per-severity issue counts with stable JSON keys.
type Summary struct {
	High   int `json:"HIGH"`
	Medium int `json:"MEDIUM"`
	Low    int `json:"LOW"`
}

// ScanResult is the output of one full pipeline run.
type ScanResult struct {
	RootPath     string
	Issues       []Issue
	Diagnostics  []Diagnostic
	FilesScanned int
	Duration     time.Duration
}

// Summary recomputes the severity histogram from the issue list. It is
// always derived, never stored, so it cannot drift from Issues.
func (r *ScanResult) Summary() Summary {
	var s Summary
	for _, issue := range r.Issues {
		switch issue.Severity {
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		}
	}
	return s
}

// HasSeverity reports whether any issue is at or above min.
func (r *ScanResult) HasSeverity(min Severity) bool {
	for _, issue := range r.Issues {
		if issue.Severity.Rank() >= min.Rank() {
			return true
		}
	}
	return false
}
