package auditlog

import "regexp"

// redactionPattern pairs a compiled regex with its replacement, the same
// shape as pkg/masking's CompiledPattern, simplified here to a fixed
// built-in list since audit messages have no per-MCP-server scoping to
// resolve patterns against.
type redactionPattern struct {
	regex       *regexp.Regexp
	replacement string
}

var redactionPatterns = []redactionPattern{
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey)(["']?\s*[:=]\s*["']?)([A-Za-z0-9_\-]{20,})`), "$1$2[REDACTED]"},
	{regexp.MustCompile(`(?i)(password|pwd|passwd)(["']?\s*[:=]\s*["']?)([^"'\s]{6,})`), "$1$2[REDACTED]"},
	{regexp.MustCompile(`(?i)(token|secret)(["']?\s*[:=]\s*["']?)([A-Za-z0-9_\-.]{16,})`), "$1$2[REDACTED]"},
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9_\-.]+`), "Bearer [REDACTED]"},
}

// Redact masks likely secret values (API keys, passwords, tokens, bearer
// auth headers) in free-form text before it is persisted, since
// observation notes and decision rationale can echo strategy-executor
// output verbatim.
func Redact(text string) string {
	for _, p := range redactionPatterns {
		text = p.regex.ReplaceAllString(text, p.replacement)
	}
	return text
}
