package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// publicPaths skip API key checks so probes and scrapers need no credentials.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// APIKeyAuth requires "Authorization: Bearer <key>" with one of apiKeys.
// Blank keys are ignored; with none left the middleware is a no-op.
func APIKeyAuth(apiKeys []string) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			token, msg := bearerToken(r.Header.Get("Authorization"))
			if msg == "" && !knownKey(keys, token) {
				msg = "invalid api key"
			}
			if msg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="cypherrag"`)
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credential; msg explains a malformed header.
// The scheme is matched case-insensitively.
func bearerToken(header string) (token, msg string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, cred, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	return strings.TrimSpace(cred), ""
}

// knownKey checks every key so timing does not reveal which one matched.
func knownKey(keys [][]byte, token string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return match == 1
}
