package logging

import (
	"strings"
)

// Redacted replaces secret values in log output.
const Redacted = "[REDACTED]"

var secretKeys = map[string]struct{}{
	"password":        {},
	"secret":          {},
	"token":           {},
	"otp":             {},
	"two_factor_code": {},
	"twofactorcode":   {},
	"nextgencso":      {},
	"api_key":         {},
	"apikey":          {},
	"authorization":   {},
}

// IsSecretKey reports whether a log attribute key names a value that must
// never be emitted in cleartext.
func IsSecretKey(key string) bool {
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}

// MaskUsername keeps the first two characters of a username and masks the
// rest, so log lines stay correlatable without exposing the login.
func MaskUsername(username string) string {
	if username == "" {
		return ""
	}
	runes := []rune(username)
	if len(runes) <= 2 {
		return string(runes[:1]) + "***"
	}
	return string(runes[:2]) + "***"
}

// Sanitize returns a copy of the map with secret values redacted and
// username-like values masked. Use it before handing request or response
// payloads to a logger.
func Sanitize(fields map[string]any) map[string]any {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		lower := strings.ToLower(k)
		switch {
		case IsSecretKey(lower):
			clean[k] = Redacted
		case lower == "username" || lower == "loginid" || lower == "login_id":
			s, _ := v.(string)
			clean[k] = MaskUsername(s)
		default:
			clean[k] = v
		}
	}
	return clean
}
