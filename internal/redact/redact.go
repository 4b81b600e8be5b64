// Package redact replaces secrets in text with [REDACTED] before it is
// persisted to session logs.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Mask replaces every redacted value.
const Mask = "[REDACTED]"

// minSecretLen keeps short values like "1" or "true" from being treated as
// secrets by Values.
const minSecretLen = 8

var (
	// keyPatterns match credentials by their own shape.
	keyPatterns []*regexp.Regexp
	// patterns adds assignment and header rules, which also match ordinary
	// source code such as "this.token = token;".
	patterns []*regexp.Regexp
)

func init() {
	keys := []string{
		// Anthropic and OpenAI API keys
		`sk-ant-[A-Za-z0-9_\-]{20,}`,
		`sk-(?:proj-)?[A-Za-z0-9_\-]{20,}`,
		// Google API keys
		`AIza[0-9A-Za-z_\-]{35}`,
		// AWS access key IDs
		`AKIA[0-9A-Z]{16}`,
		// Private key blocks
		`-----BEGIN [A-Z ]+PRIVATE KEY-----[\s\S]*?-----END [A-Z ]+PRIVATE KEY-----`,
	}
	for _, r := range keys {
		keyPatterns = append(keyPatterns, regexp.MustCompile(r))
	}
	patterns = append(patterns, keyPatterns...)

	raw := []string{
		// AWS secret access keys (40 char base64 after common prefixes)
		`(?i)(aws_secret_access_key|aws_secret)\s*[:=]\s*[A-Za-z0-9/+=]{40}`,
		// Bearer tokens and API key headers
		`Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
		`(?i)x-(?:goog-)?api-key\s*:\s*\S+`,
		// Generic key/secret/token/password assignments
		`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|token|password|passwd|credentials)\s*[:=]\s*\S+`,
	}
	for _, r := range raw {
		patterns = append(patterns, regexp.MustCompile(r))
	}
}

// Redact replaces secret patterns in text with Mask.
func Redact(text string) string {
	for _, p := range patterns {
		text = p.ReplaceAllString(text, Mask)
	}
	return text
}

// Values replaces each literal secret in text with Mask, then applies the
// pattern rules. Values shorter than eight bytes are ignored.
func Values(text string, secrets ...string) string {
	return Redact(literals(text, secrets))
}

// Keys replaces each literal secret and every key-shaped credential in text,
// leaving assignments alone. It is meant for prompts and generated source.
func Keys(text string, secrets ...string) string {
	text = literals(text, secrets)
	for _, p := range keyPatterns {
		text = p.ReplaceAllString(text, Mask)
	}
	return text
}

func literals(text string, secrets []string) string {
	var keep []string
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if len(s) >= minSecretLen {
			keep = append(keep, s)
		}
	}
	// Longest first so a secret containing another is masked whole.
	sort.Slice(keep, func(i, j int) bool { return len(keep[i]) > len(keep[j]) })
	for _, s := range keep {
		text = strings.ReplaceAll(text, s, Mask)
	}
	return text
}
