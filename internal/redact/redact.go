// Package redact removes credentials from text before it is logged or
// wrapped into errors. It is applied to CLI output, HTTP error bodies and
// database errors that may echo connection strings.
package redact

import "regexp"

// Placeholders substituted for redacted values.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run in order; earlier rules win when patterns overlap.
var rules = []rule{
	// user:password@ in any URL, including postgres:// DSNs.
	{regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/\s:@]+:[^/\s@]+@`), "${1}" + RedactedCredentialPlaceholder + "@"},
	// GitLab personal, deploy, OAuth and runner tokens.
	{regexp.MustCompile(`\bgl(?:pat|dt|oas|rt|ptt|cbt)-[A-Za-z0-9_\-]{16,}`), RedactedTokenPlaceholder},
	{regexp.MustCompile(`(?i)(authorization:\s*bearer\s+|bearer\s+)[A-Za-z0-9_\-.~+/=]{8,}`), "${1}" + RedactedTokenPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), RedactedJWTPlaceholder},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)(["']?\s*[=:]\s*["']?)[^"'&\s]{3,}`), "${1}${2}" + RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(app_secret|api[_-]?key|private[_-]?token|access[_-]?token|secret|token)(["']?\s*[=:]\s*["']?)[A-Za-z0-9_\-.~+/]{8,}`),
		"${1}${2}" + RedactedKeyPlaceholder},
}

// String redacts credentials from input.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts credentials from err.Error(). A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
