package util

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// HideAPIKey shortens a credential for log output, keeping a few characters
// at each end so operators can still tell keys apart.
func HideAPIKey(apiKey string) string {
	switch n := len(apiKey); {
	case n > 8:
		return apiKey[:4] + "..." + apiKey[n-4:]
	case n > 4:
		return apiKey[:2] + "..." + apiKey[n-2:]
	case n > 2:
		return apiKey[:1] + "..." + apiKey[n-1:]
	default:
		return apiKey
	}
}

// MaskSensitiveQuery rewrites credential-like parameters (api_key, token,
// secret) in a raw query string. Other parameters keep their original encoding.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		decodedKey, errKey := url.QueryUnescape(keyPart)
		if errKey != nil {
			decodedKey = keyPart
		}
		if !isSensitiveParam(decodedKey) {
			continue
		}
		decodedValue, errValue := url.QueryUnescape(valuePart)
		if errValue != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(HideAPIKey(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func isSensitiveParam(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	if key == "key" || strings.Contains(key, "api-key") || strings.Contains(key, "apikey") || strings.Contains(key, "api_key") {
		return true
	}
	return strings.Contains(key, "token") || strings.Contains(key, "secret") || strings.Contains(key, "password")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
