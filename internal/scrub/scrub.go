// Package scrub redacts credentials from text before it is handed to the CLI.
package scrub

import "regexp"

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run in order. Provider-specific key formats come before the generic
// sk- rule so the more precise label wins.
var rules = []rule{
	// KEY=value lines from .env files; the key name is kept
	{regexp.MustCompile(`(?m)^([A-Z][A-Z0-9_]*)=\S+$`), "${1}=[REDACTED]"},
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_\-]{20,}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{20,}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), "[REDACTED_AWS_KEY]"},
	{regexp.MustCompile(`(?i)(authorization:\s*bearer\s+)[a-zA-Z0-9._\-]{16,}`), "${1}[REDACTED]"},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED_PRIVATE_KEY]"},
}

// Clean returns input with every recognised secret replaced by a placeholder.
func Clean(input string) string {
	for _, r := range rules {
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Changed reports whether Clean would alter input.
func Changed(input string) bool {
	for _, r := range rules {
		if r.pattern.MatchString(input) {
			return true
		}
	}
	return false
}
