package log

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// urlMask replaces secret parts inside a URL.
const urlMask = "***"

// sensitiveKeys contains attribute keys that are always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"password":            true,
	"passwd":              true,
	"secret":              true,
	"token":               true,
	"api_key":             true,
	"apikey":              true,
	"access_token":        true,
	"refresh_token":       true,
	"private_key":         true,
	"session":             true,
	"session_id":          true,
	"sessionid":           true,
	"credentials":         true,
}

// sensitiveKeywords mark a key as sensitive when contained in it. The bare
// word "key" is left out ("capture_key", "keys") and covered by
// sensitiveKeys instead.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// secretParams are query parameters whose values are masked in URLs.
var secretParams = map[string]bool{
	"token":            true,
	"access_token":     true,
	"auth":             true,
	"key":              true,
	"apikey":           true,
	"api_key":          true,
	"sig":              true,
	"signature":        true,
	"password":         true,
	"secret":           true,
	"x-amz-signature":  true,
	"x-amz-credential": true,
	"x-goog-signature": true,
}

// sensitivePatterns match values that are secrets regardless of key name.
var sensitivePatterns = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// long opaque API keys
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// embeddedURL finds URLs inside free text such as error messages.
var embeddedURL = regexp.MustCompile(`https?://[^\s"'<>]+`)

// isSensitiveKey reports whether an attribute key names a credential.
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURL masks the userinfo password and secret query parameters of
// raw. Strings that are not absolute URLs are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), urlMask)
			changed = true
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name, values := range q {
			if !secretParams[strings.ToLower(name)] {
				continue
			}
			for i := range values {
				values[i] = urlMask
			}
			changed = true
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw
	}
	// url.URL escapes '*' in userinfo; keep the mask readable.
	return strings.ReplaceAll(u.String(), "%2A%2A%2A", urlMask)
}

// redactText applies RedactURL to every URL embedded in s.
func redactText(s string) string {
	if !strings.Contains(s, "://") {
		return s
	}
	return embeddedURL.ReplaceAllStringFunc(s, RedactURL)
}
