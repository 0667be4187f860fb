package logging

import (
	"strings"
)

// MaxLoggedBody is the number of characters of a response body kept in debug logs.
const MaxLoggedBody = 6000

const redacted = "***"

// sensitiveKeys are matched case-insensitively as substrings of a key.
var sensitiveKeys = []string{"password", "token", "authorization", "cookie"}

// IsSensitive reports whether a parameter or header name carries a secret.
func IsSensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Redact returns a copy of params with secret values masked.
// Nested maps and slices are walked. The input is never modified.
func Redact(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if IsSensitive(k) {
			out[k] = redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

// RedactStrings masks secret values in a flat string map such as URL
// query parameters or request headers.
func RedactStrings(params map[string]string) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if IsSensitive(k) {
			out[k] = redacted
			continue
		}
		out[k] = v
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

// Truncate shortens s to at most limit characters, marking the cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}
