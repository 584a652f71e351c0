package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// APIKeyPrefix marks keys issued by the gateway.
const APIKeyPrefix = "gw_"

// apiKeySecretBytes is the entropy of a generated key.
const apiKeySecretBytes = 32

// GenerateAPIKey returns a new unpredictable API key: the prefix followed by
// 64 hex characters read from crypto/rand.
func GenerateAPIKey() (string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(secret), nil
}

// LooksLikeAPIKey reports whether s has the shape of a generated key. It is
// a cheap pre-filter; the store lookup remains authoritative.
func LooksLikeAPIKey(s string) bool {
	if !strings.HasPrefix(s, APIKeyPrefix) || len(s) != len(APIKeyPrefix)+2*apiKeySecretBytes {
		return false
	}
	_, errDecode := hex.DecodeString(s[len(APIKeyPrefix):])
	return errDecode == nil
}

// GenerateRandomString returns a hex-encoded random string of the given length.
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, (length+1)/2)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", fmt.Errorf("generate random string: %w", err)
	}
	return hex.EncodeToString(bytes)[:length], nil
}
