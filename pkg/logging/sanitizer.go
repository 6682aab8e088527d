package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// Matches password=xxx, pwd=xxx, pass=xxx until the next delimiter.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches key/secret values in connector errors and DSNs.
	secretKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|access[_-]?key|key)=[A-Za-z0-9-_/+]{8,}`)

	// Matches user:pass@host credentials embedded in URLs.
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// A small fixed set of config keys whose values must never be logged.
var sensitiveConfigKeys = map[string]bool{
	"password":         true,
	"secret_key":       true,
	"access_key":       true,
	"credentials_json": true,
	"api_key":          true,
}

// SanitizeConnectionConfig returns a copy of a linked service config with
// credential values replaced. Use this before logging any config map.
func SanitizeConnectionConfig(config map[string]string) map[string]string {
	if config == nil {
		return nil
	}
	sanitized := make(map[string]string, len(config))
	for k, v := range config {
		if sensitiveConfigKeys[k] {
			sanitized[k] = RedactedText
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}

// SanitizeError strips credentials that external drivers tend to echo back
// in error messages. Use this before logging connector errors.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = secretKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}
