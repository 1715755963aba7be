package logging

import (
	"regexp"
	"strings"
)

const (
	// MaskChar is the character used for masking.
	MaskChar = "*"
	// URLMaskLength is how many characters to show before masking URLs.
	URLMaskLength = 30
	// DefaultMaskLength is how many mask characters to show.
	DefaultMaskLength = 3
)

// sensitiveKeywords mark field names whose values must never be logged.
var sensitiveKeywords = []string{
	"token", "secret", "password", "api_key", "apikey",
	"auth", "bearer", "credential", "private", "dsn",
}

// urlKeys mark fields holding webhook URLs, which embed their secret.
var urlKeys = map[string]bool{"url": true, "webhook_url": true}

// urlPattern matches HTTP(S) URLs.
var urlPattern = regexp.MustCompile(`https?://[^\s"']+`)

// MaskURL masks a URL, showing only the first URLMaskLength characters.
func MaskURL(url string) string {
	if len(url) <= URLMaskLength {
		return url
	}
	return url[:URLMaskLength] + strings.Repeat(MaskChar, DefaultMaskLength)
}

// MaskValue masks a sensitive value completely.
func MaskValue(value string) string {
	if value == "" {
		return ""
	}
	return strings.Repeat(MaskChar, min(len(value), 8))
}

// IsSensitiveField checks if a field name indicates sensitive data.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// MaskString masks every non-local URL inside s.
func MaskString(s string) string {
	return urlPattern.ReplaceAllStringFunc(s, func(url string) string {
		if strings.Contains(url, "localhost") || strings.Contains(url, "127.0.0.1") {
			return url
		}
		return MaskURL(url)
	})
}

// MaskArgs masks sensitive values in key/value logging arguments.
func MaskArgs(args []any) []any {
	if len(args) < 2 {
		return args
	}

	var result []any
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		var masked any
		switch {
		case IsSensitiveField(key):
			if s, ok := args[i+1].(string); ok {
				masked = MaskValue(s)
			} else {
				masked = strings.Repeat(MaskChar, 8)
			}
		case urlKeys[strings.ToLower(key)]:
			if s, ok := args[i+1].(string); ok {
				masked = MaskString(s)
			}
		}
		if masked == nil {
			continue
		}
		if result == nil {
			result = make([]any, len(args))
			copy(result, args)
		}
		result[i+1] = masked
	}

	if result == nil {
		return args
	}
	return result
}
