package access

import (
	"net/http"
	"strings"
)

// Credential sources in precedence order.
const (
	apiKeyQueryParam = "api_key"
	apiKeyHeader     = "X-API-Key"
	bearerScheme     = "Bearer"
)

type scheme int

const (
	schemeNone scheme = iota
	schemeAPIKey
	schemeBearer
)

type credential struct {
	scheme scheme
	value  string
}

// apiKeyCredential returns the API key from the query parameter or, failing
// that, the x-api-key header.
func apiKeyCredential(r *http.Request) (credential, bool) {
	if r.URL != nil {
		if v := strings.TrimSpace(r.URL.Query().Get(apiKeyQueryParam)); v != "" {
			return credential{scheme: schemeAPIKey, value: v}, true
		}
	}
	if v := strings.TrimSpace(r.Header.Get(apiKeyHeader)); v != "" {
		return credential{scheme: schemeAPIKey, value: v}, true
	}
	return credential{}, false
}

// bearerCredential returns the Authorization header token. A header with any
// other scheme is still reported as present, with an empty token.
func bearerCredential(r *http.Request) (credential, bool) {
	val := strings.TrimSpace(r.Header.Get("Authorization"))
	if val == "" {
		return credential{}, false
	}
	prefix, token, found := strings.Cut(val, " ")
	if !found || !strings.EqualFold(prefix, bearerScheme) {
		return credential{scheme: schemeBearer}, true
	}
	return credential{scheme: schemeBearer, value: strings.TrimSpace(token)}, true
}

// firstCredential applies the fixed precedence: query api_key, x-api-key
// header, then Authorization bearer.
func firstCredential(r *http.Request) credential {
	if c, ok := apiKeyCredential(r); ok {
		return c
	}
	if c, ok := bearerCredential(r); ok {
		return c
	}
	return credential{scheme: schemeNone}
}
