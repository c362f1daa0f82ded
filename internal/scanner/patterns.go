package scanner

import (
	"regexp"
	"strings"
	"unicode"
)

// dangerRule is one dangerous-call pattern matched per line.
type dangerRule struct {
	id       string
	pattern  *regexp.Regexp
	severity Severity
	message  string

	// classifyArg adds a literal/variable argument note to the
	// message. Dynamic code execution is HIGH risk either way; the
	// note only records detection confidence.
	classifyArg bool
}

var dangerRules = []dangerRule{
	{
		id:       "pattern.eval_usage",
		pattern:  regexp.MustCompile(`\beval\s*\(`),
		severity: SeverityHigh,
		message:  "Use of eval() allows arbitrary code execution",
	},
	{
		id:       "pattern.new_function",
		pattern:  regexp.MustCompile(`\bnew\s+Function\s*\(`),
		severity: SeverityHigh,
		message:  "new Function() constructs code from strings",
	},
	{
		id:          "pattern.child_process_exec",
		pattern:     regexp.MustCompile(`(?:\bchild_process|require\(\s*['"]child_process['"]\s*\))\.exec(?:Sync)?\s*\(`),
		severity:    SeverityHigh,
		message:     "child_process.exec() runs shell commands",
		classifyArg: true,
	},
	{
		id:          "pattern.child_process_spawn",
		pattern:     regexp.MustCompile(`(?:\bchild_process|require\(\s*['"]child_process['"]\s*\))\.spawn(?:Sync)?\s*\(`),
		severity:    SeverityHigh,
		message:     "child_process.spawn() runs external programs",
		classifyArg: true,
	},
}

// File-shape heuristics. These are file-local by design: a project that
// wires its middleware in another file will produce false positives,
// which is documented behavior rather than silently suppressed.
var (
	expressApp     = regexp.MustCompile(`\bexpress\s*\(\s*\)`)
	helmetCall     = regexp.MustCompile(`\bhelmet\s*\(`)
	rateLimitHint  = regexp.MustCompile(`(?i)rate[-_]?limit`)
	routeWithParam = regexp.MustCompile(`\b(?:app|router)\.(?:get|post|put|patch|delete|all)\s*\(\s*['"][^'"]*:[A-Za-z_]`)
	reqParamsUse   = regexp.MustCompile(`\breq\.params\b`)
	validationHint = regexp.MustCompile(`(?i)parseint|parsefloat|number\s*\(|validator|isvalid|validate|authoriz|checkauth|sanitiz`)
)

// PatternDetector finds dangerous API usage and missing security
// middleware in JS/Node.js sources. It is a line/regex heuristic, not
// an AST analysis.
type PatternDetector struct{}

func NewPatternDetector() *PatternDetector { return &PatternDetector{} }

func (d *PatternDetector) Name() string { return "patterns" }

func (d *PatternDetector) Scan(path, content string) []Issue {
	lines := strings.Split(content, "\n")

	var issues []Issue
	issues = append(issues, scanDangerousCalls(path, lines)...)
	issues = append(issues, scanMiddleware(path, content, lines)...)
	issues = append(issues, scanRouteParams(path, content, lines)...)
	return issues
}

func scanDangerousCalls(path string, lines []string) []Issue {
	var issues []Issue
	for i, line := range lines {
		for _, rule := range dangerRules {
			for _, loc := range rule.pattern.FindAllStringIndex(line, -1) {
				msg := rule.message
				if rule.classifyArg {
					msg += argumentNote(line[loc[1]:])
				}
				issues = append(issues, NewIssue(path, i+1, rule.id, rule.severity, msg, snippet(line)))
			}
		}
	}
	return issues
}

// argumentNote peeks at the first argument after the matched call. A
// quoted literal is lower confidence than a variable, but the call is
// flagged either way.
func argumentNote(rest string) string {
	trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if trimmed == "" || trimmed[0] == ')' {
		return ""
	}
	switch trimmed[0] {
	case '\'', '"', '`':
		return " (literal argument)"
	default:
		return " (variable argument)"
	}
}

// scanMiddleware runs once per file that constructs an Express app and
// flags missing security-headers and rate-limiting middleware.
func scanMiddleware(path, content string, lines []string) []Issue {
	loc := expressApp.FindStringIndex(content)
	if loc == nil {
		return nil
	}
	appLine := lineNumberAt(content, loc[0])

	var issues []Issue
	if !helmetCall.MatchString(content) {
		issues = append(issues, NewIssue(path, appLine, "pattern.missing_helmet", SeverityMedium,
			"Express app without Helmet security headers middleware", snippet(lines[appLine-1])))
	}
	if !rateLimitHint.MatchString(content) {
		issues = append(issues, NewIssue(path, appLine, "pattern.missing_rate_limit", SeverityMedium,
			"Express app without rate-limiting middleware", snippet(lines[appLine-1])))
	}
	return issues
}

// scanRouteParams flags route registrations binding a :param when the
// file dereferences req.params without any visible validation or
// authorization call. A shallow textual heuristic, not dataflow
// analysis.
func scanRouteParams(path, content string, lines []string) []Issue {
	if !reqParamsUse.MatchString(content) || validationHint.MatchString(content) {
		return nil
	}

	var issues []Issue
	for i, line := range lines {
		if routeWithParam.MatchString(line) {
			issues = append(issues, NewIssue(path, i+1, "pattern.idor_risk", SeverityMedium,
				"Route parameter used without visible validation (possible IDOR)", snippet(line)))
		}
	}
	return issues
}

func lineNumberAt(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}

func snippet(line string) string {
	return truncate(strings.TrimSpace(line), maxSnippetLength)
}
