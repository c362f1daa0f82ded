package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/secaudit/secaudit/internal/scanner"
)

const baselineFileName = ".secaudit-baseline.json"

// Baseline is the suppression file: a set of issue fingerprints that
// are known and accepted, filtered out of future scan reports.
type Baseline struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	Entries   []Entry   `json:"entries"`
}

// Entry is one suppressed issue.
type Entry struct {
	RuleID      string `json:"ruleId"`
	FilePath    string `json:"filePath"`
	Line        int    `json:"line"`
	Fingerprint string `json:"fingerprint"`
}

// Load reads the baseline file from dir. A missing file yields an empty
// baseline.
func Load(dir string) (*Baseline, error) {
	path := filepath.Join(dir, baselineFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Baseline{Version: "1.0", CreatedAt: time.Now().UTC()}, nil
		}
		return nil, fmt.Errorf("failed to read baseline file: %w", err)
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse baseline file: %w", err)
	}
	return &b, nil
}

// Save writes the baseline file to dir.
func (b *Baseline) Save(dir string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, baselineFileName), data, 0644)
}

// Add suppresses an issue. Adding the same fingerprint twice is an
// error so stale duplicates don't accumulate.
func (b *Baseline) Add(issue scanner.Issue) error {
	if b.isSuppressed(issue.Fingerprint) {
		return fmt.Errorf("fingerprint already in baseline: %s", issue.Fingerprint)
	}
	b.Entries = append(b.Entries, Entry{
		RuleID:      issue.RuleID,
		FilePath:    issue.FilePath,
		Line:        issue.LineNumber,
		Fingerprint: issue.Fingerprint,
	})
	return nil
}

// AddFingerprint suppresses an issue by raw fingerprint, for the CLI
// path where only the printed fingerprint is at hand.
func (b *Baseline) AddFingerprint(fingerprint string) error {
	if b.isSuppressed(fingerprint) {
		return fmt.Errorf("fingerprint already in baseline: %s", fingerprint)
	}
	b.Entries = append(b.Entries, Entry{Fingerprint: fingerprint})
	return nil
}

func (b *Baseline) isSuppressed(fingerprint string) bool {
	for _, e := range b.Entries {
		if e.Fingerprint == fingerprint {
			return true
		}
	}
	return false
}

// Filter returns the issues not suppressed by the baseline, preserving
// order.
func (b *Baseline) Filter(issues []scanner.Issue) []scanner.Issue {
	if len(b.Entries) == 0 {
		return issues
	}
	filtered := make([]scanner.Issue, 0, len(issues))
	for _, issue := range issues {
		if !b.isSuppressed(issue.Fingerprint) {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}
