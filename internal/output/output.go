package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/secaudit/secaudit/internal/scanner"
)

// Format selects how a scan result is rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatSARIF   Format = "sarif"
)

// WriteResult renders a scan result to w in the requested format.
func WriteResult(result *scanner.ScanResult, format Format, w io.Writer) error {
	switch format {
	case FormatConsole:
		return writeConsole(result, w)
	case FormatJSON:
		return writeJSON(result, w)
	case FormatSARIF:
		return writeSARIF(result, w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

var severityColors = map[scanner.Severity]*color.Color{
	scanner.SeverityHigh:   color.New(color.FgRed, color.Bold),
	scanner.SeverityMedium: color.New(color.FgYellow),
	scanner.SeverityLow:    color.New(color.FgCyan),
}

// writeConsole renders a human-readable table grouped by severity, then
// file. The underlying issue order in the result is left untouched.
func writeConsole(result *scanner.ScanResult, w io.Writer) error {
	if len(result.Issues) == 0 {
		fmt.Fprintf(w, "No issues found. Scanned %d files in %s.\n", result.FilesScanned, result.Duration.Round(1e6))
		writeSkipped(result, w)
		return nil
	}

	issues := make([]scanner.Issue, len(result.Issues))
	copy(issues, result.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity.Rank() != issues[j].Severity.Rank() {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		}
		if issues[i].FilePath != issues[j].FilePath {
			return issues[i].FilePath < issues[j].FilePath
		}
		return issues[i].LineNumber < issues[j].LineNumber
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Severity", "Rule", "File", "Line", "Message"})
	for _, issue := range issues {
		sev := string(issue.Severity)
		if c, ok := severityColors[issue.Severity]; ok {
			sev = c.Sprint(sev)
		}
		t.AppendRow(table.Row{sev, issue.RuleID, issue.FilePath, issue.LineNumber, issue.Message})
	}
	t.Render()

	s := result.Summary()
	fmt.Fprintf(w, "\n%d issues in %d files (HIGH: %d, MEDIUM: %d, LOW: %d) in %s\n",
		len(result.Issues), result.FilesScanned, s.High, s.Medium, s.Low, result.Duration.Round(1e6))
	writeSkipped(result, w)
	return nil
}

func writeSkipped(result *scanner.ScanResult, w io.Writer) {
	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(w, "%d files skipped or errored; run with --type json for details.\n", len(result.Diagnostics))
	}
}

// jsonReport is the stable machine-consumable schema.
type jsonReport struct {
	RootPath     string               `json:"root_path"`
	FilesScanned int                  `json:"files_scanned"`
	DurationMS   int64                `json:"duration_ms"`
	Issues       []scanner.Issue      `json:"issues"`
	Summary      scanner.Summary      `json:"summary"`
	Diagnostics  []scanner.Diagnostic `json:"diagnostics"`
}

func writeJSON(result *scanner.ScanResult, w io.Writer) error {
	report := jsonReport{
		RootPath:     result.RootPath,
		FilesScanned: result.FilesScanned,
		DurationMS:   result.Duration.Milliseconds(),
		Issues:       result.Issues,
		Summary:      result.Summary(),
		Diagnostics:  result.Diagnostics,
	}
	if report.Issues == nil {
		report.Issues = []scanner.Issue{}
	}
	if report.Diagnostics == nil {
		report.Diagnostics = []scanner.Diagnostic{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeSARIF(result *scanner.ScanResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(generateSARIF(result))
}

// generateSARIF builds a SARIF 2.1.0 document from the scan result.
func generateSARIF(result *scanner.ScanResult) map[string]interface{} {
	rules := []map[string]interface{}{}
	seen := map[string]bool{}
	results := []map[string]interface{}{}

	for _, issue := range result.Issues {
		if !seen[issue.RuleID] {
			seen[issue.RuleID] = true
			rules = append(rules, map[string]interface{}{
				"id": issue.RuleID,
				"shortDescription": map[string]interface{}{
					"text": issue.Message,
				},
				"defaultConfiguration": map[string]interface{}{
					"level": severityToLevel(issue.Severity),
				},
			})
		}

		results = append(results, map[string]interface{}{
			"ruleId":  issue.RuleID,
			"level":   severityToLevel(issue.Severity),
			"message": map[string]interface{}{"text": issue.Message},
			"locations": []map[string]interface{}{
				{
					"physicalLocation": map[string]interface{}{
						"artifactLocation": map[string]interface{}{
							"uri": issue.FilePath,
						},
						"region": map[string]interface{}{
							"startLine": maxInt(issue.LineNumber, 1),
						},
					},
				},
			},
		})
	}

	return map[string]interface{}{
		"version": "2.1.0",
		"$schema": "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		"runs": []map[string]interface{}{
			{
				"tool": map[string]interface{}{
					"driver": map[string]interface{}{
						"name":           "secaudit",
						"informationUri": "https://github.com/secaudit/secaudit",
						"rules":          rules,
					},
				},
				"results": results,
			},
		},
	}
}

// severityToLevel maps severities to SARIF levels.
func severityToLevel(severity scanner.Severity) string {
	switch severity {
	case scanner.SeverityHigh:
		return "error"
	case scanner.SeverityMedium:
		return "warning"
	case scanner.SeverityLow:
		return "note"
	default:
		return "none"
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
