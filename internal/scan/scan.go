// Package scan is a best-effort static linter for common security
// anti-patterns in source trees: hardcoded credentials, secret-like
// tokens, and risky process execution calls. It is heuristic by
// design and makes no false-negative guarantee.
package scan

import (
	"regexp"
	"strings"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Kind identifies which pattern produced a finding.
type Kind string

const (
	KindHardcodedCredential Kind = "hardcoded-credential"
	KindSecretToken         Kind = "secret-like-token"
	KindRiskyExec           Kind = "risky-exec"
)

// Finding is one matched line in one file.
type Finding struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Content  string   `json:"content"`
}

type pattern struct {
	kind     Kind
	severity Severity
	re       *regexp.Regexp
	// exempt drops a match when it returns true for the full line.
	exempt func(line string) bool
}

var patterns = []pattern{
	{
		kind:     KindHardcodedCredential,
		severity: SeverityHigh,
		re:       regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|access[_-]?key|auth[_-]?token|token)\s*[:=]\s*["'][^"']+["']`),
		exempt:   isEnvLookup,
	},
	{
		kind:     KindSecretToken,
		severity: SeverityMedium,
		re:       regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\s*[:=]\s*["'][A-Za-z0-9+/=_\-]{32,}["']`),
		exempt:   isEnvLookup,
	},
	{
		kind:     KindRiskyExec,
		severity: SeverityMedium,
		re:       regexp.MustCompile(`\beval\(|\bexec\(|os\.system\(|subprocess\.\w+\(|exec\.Command\(`),
	},
}

// isEnvLookup reports whether the line reads the value from the
// environment rather than embedding it. os.Getenv("API_KEY") is the
// fix for a hardcoded key, not another instance of it.
func isEnvLookup(line string) bool {
	l := strings.ToLower(line)
	return strings.Contains(l, "os.getenv") ||
		strings.Contains(l, "os.lookupenv") ||
		strings.Contains(l, "os.environ") ||
		strings.Contains(l, "getenv(") ||
		strings.Contains(l, "env[")
}

const maxContentLen = 160

// scanLine applies every pattern to one line and returns the findings.
func scanLine(file string, num int, line string) []Finding {
	var out []Finding
	for _, p := range patterns {
		if !p.re.MatchString(line) {
			continue
		}
		if p.exempt != nil && p.exempt(line) {
			continue
		}
		content := strings.TrimSpace(line)
		if len(content) > maxContentLen {
			content = content[:maxContentLen] + "..."
		}
		out = append(out, Finding{
			File:     file,
			Line:     num,
			Kind:     p.kind,
			Severity: p.severity,
			Content:  content,
		})
	}
	return out
}
