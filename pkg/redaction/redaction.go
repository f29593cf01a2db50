// Package redaction masks sensitive values before they reach logs or the
// audit trail. Guard decisions carry tool arguments and rejection reasons,
// which can contain API keys or credentials the agent was handling.
package redaction

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Replacement is the mask written over detected secrets.
const Replacement = "[REDACTED]"

var (
	builtinPatterns = []*regexp.Regexp{
		// Provider API keys (OpenAI/Anthropic style prefixes).
		regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`),
		regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{16,}\b`),
		// Bearer tokens in headers or URLs.
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{16,}=*`),
		// GitHub tokens.
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{16,}\b`),
		// key=value / key: value assignments for sensitive keys.
		regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd)\s*[:=]\s*\S+`),
	}

	sensitiveFieldNames = map[string]bool{
		"api_key":  true,
		"apikey":   true,
		"token":    true,
		"secret":   true,
		"password": true,
		"passwd":   true,
	}

	mu      sync.RWMutex
	enabled = true
)

// SetEnabled toggles redaction globally. It exists for tests and for
// debugging runs where raw values are needed.
func SetEnabled(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
}

// Enabled reports whether redaction is active.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Redact masks secrets detected in s.
func Redact(s string) string {
	if !Enabled() || s == "" {
		return s
	}
	for _, re := range builtinPatterns {
		s = re.ReplaceAllString(s, Replacement)
	}
	return s
}

// RedactFields returns a copy of fields with sensitive keys masked entirely
// and string values passed through Redact. The input map is not modified.
func RedactFields(fields map[string]any) map[string]any {
	if !Enabled() || fields == nil {
		return fields
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if sensitiveFieldNames[strings.ToLower(k)] {
			out[k] = Replacement
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = Redact(val)
		case map[string]any:
			out[k] = RedactFields(val)
		case fmt.Stringer:
			out[k] = Redact(val.String())
		default:
			out[k] = v
		}
	}
	return out
}
