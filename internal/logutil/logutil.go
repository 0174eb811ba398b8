package logutil

import (
	"strings"
)

// IsSensitiveLogField returns true when a key likely contains sensitive data.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch {
	case normalized == "authorization":
		return true
	case strings.Contains(normalized, "token"):
		return true
	case strings.Contains(normalized, "secret"):
		return true
	case strings.Contains(normalized, "password"):
		return true
	case strings.Contains(normalized, "passwd"):
		return true
	case strings.Contains(normalized, "apikey"):
		return true
	case strings.Contains(normalized, "cookie"):
		return true
	default:
		return false
	}
}

// RedactValue redacts a value when its key looks sensitive.
func RedactValue(key, value string) string {
	if value == "" {
		return ""
	}
	if IsSensitiveLogField(key) {
		return "[REDACTED]"
	}
	return value
}

// RedactInputValue redacts the current value of a form field when either its
// name or its type looks sensitive. Non-sensitive values are truncated.
func RedactInputValue(name, inputType, value string) string {
	if value == "" {
		return ""
	}
	if IsSensitiveLogField(name) || IsSensitiveLogField(inputType) {
		return "[REDACTED]"
	}
	return TruncateForLog(value, 64)
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}
