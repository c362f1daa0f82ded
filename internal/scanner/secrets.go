package scanner

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// secretRule is one structural credential pattern. Rules are ordered
// most specific first: the first rule to match a span claims it, and
// later rules skip overlapping matches.
type secretRule struct {
	id       string
	pattern  *regexp.Regexp
	severity Severity
	message  string

	// secretGroup is the submatch index holding the secret value to
	// redact; 0 redacts the whole match.
	secretGroup int
}

var secretRules = []secretRule{
	{
		id:       "secret.aws_key",
		pattern:  regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		severity: SeverityHigh,
		message:  "Hardcoded AWS access key detected",
	},
	{
		id:       "secret.private_key",
		pattern:  regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`),
		severity: SeverityHigh,
		message:  "Private key material detected",
	},
	{
		id:       "secret.jwt",
		pattern:  regexp.MustCompile(`[A-Za-z0-9\-_]{20,}\.[A-Za-z0-9\-_]{20,}\.[A-Za-z0-9\-_]{20,}`),
		severity: SeverityHigh,
		message:  "Possible JWT token detected",
	},
	{
		id:          "secret.generic_assignment",
		pattern:     regexp.MustCompile(`(?i)(?:api|key|token|secret|password)["'\s:=]+["']?([A-Za-z0-9\-_]{16,})`),
		severity:    SeverityMedium,
		message:     "Possible hardcoded API key or secret",
		secretGroup: 1,
	},
}

// Tokens that look high-entropy but are harmless identifiers.
var entropySkipWords = map[string]bool{
	"node_modules":         true,
	"devDependencies":      true,
	"peerDependencies":     true,
	"optionalDependencies": true,
	"implementation":       true,
	"configuration":        true,
	"documentation":        true,
	"authentication":       true,
	"Authorization":        true,
}

var (
	// Quoted string literals are the only entropy candidates; bare
	// tokens (identifiers, minified symbols) drown the signal in
	// false positives.
	quotedLiteral = regexp.MustCompile(`["']([A-Za-z0-9\-_+/=]{8,})["']`)

	uuidToken = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexToken  = regexp.MustCompile(`^[0-9a-fA-F]+$`)

	// Lines carrying hashes for integrity checks, not credentials.
	checksumHint = regexp.MustCompile(`(?i)checksum|integrity|sha(?:1|256|512)`)
)

// SecretDetector finds leaked credentials with structural regex rules
// and a Shannon-entropy heuristic over quoted string literals.
type SecretDetector struct {
	cfg *Config
}

func NewSecretDetector(cfg *Config) *SecretDetector {
	return &SecretDetector{cfg: cfg}
}

func (d *SecretDetector) Name() string { return "secrets" }

// Scan applies the rule table and the entropy pass to every line.
// Comments are scanned like any other line; they are a common leak
// vector.
func (d *SecretDetector) Scan(path, content string) []Issue {
	var issues []Issue

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNum := i + 1

		var claimed []span
		for _, rule := range secretRules {
			for _, m := range rule.pattern.FindAllStringSubmatchIndex(line, -1) {
				whole := span{m[0], m[1]}
				if whole.overlapsAny(claimed) {
					continue
				}
				claimed = append(claimed, whole)

				value := line[m[0]:m[1]]
				if rule.secretGroup > 0 && m[2*rule.secretGroup] >= 0 {
					value = line[m[2*rule.secretGroup]:m[2*rule.secretGroup+1]]
				}
				issues = append(issues, NewIssue(path, lineNum, rule.id, rule.severity, rule.message, redactLine(line, value)))
			}
		}

		issues = append(issues, d.entropyIssues(path, lineNum, line, claimed)...)
	}

	return issues
}

// entropyIssues flags quoted literals with high Shannon entropy on
// spans not already claimed by a structural rule.
func (d *SecretDetector) entropyIssues(path string, lineNum int, line string, claimed []span) []Issue {
	if len(line) > d.cfg.MaxLineLength {
		line = line[:d.cfg.MaxLineLength]
	}
	if checksumHint.MatchString(line) {
		return nil
	}

	var issues []Issue
	for _, m := range quotedLiteral.FindAllStringSubmatchIndex(line, -1) {
		token := line[m[2]:m[3]]
		if len(token) < d.cfg.MinTokenLength {
			continue
		}
		if (span{m[2], m[3]}).overlapsAny(claimed) {
			continue
		}
		if entropySkipWords[token] || uuidToken.MatchString(token) || hexToken.MatchString(token) {
			continue
		}

		entropy := shannonEntropy(token)
		if entropy > d.cfg.EntropyThreshold {
			msg := fmt.Sprintf("High entropy string detected (entropy=%.2f)", entropy)
			issues = append(issues, NewIssue(path, lineNum, "secret.high_entropy", SeverityMedium, msg, redactLine(line, token)))
		}
	}
	return issues
}

// shannonEntropy computes H = -Σ p(c)·log2(p(c)) over the character
// distribution of text, in bits per character.
func shannonEntropy(text string) float64 {
	if text == "" {
		return 0
	}

	freq := make(map[rune]int)
	var length float64
	for _, ch := range text {
		freq[ch]++
		length++
	}

	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

type span struct{ start, end int }

func (s span) overlapsAny(spans []span) bool {
	for _, other := range spans {
		if s.start < other.end && other.start < s.end {
			return true
		}
	}
	return false
}

const maxSnippetLength = 120

// redactLine returns the trimmed source line with every occurrence of
// the secret value masked to its first and last four characters, so
// reports never leak the full secret.
func redactLine(line, secret string) string {
	snippet := strings.ReplaceAll(strings.TrimSpace(line), secret, redact(secret))
	return truncate(snippet, maxSnippetLength)
}

func redact(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
