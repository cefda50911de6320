package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries an API key for clients that cannot set Authorization.
const APIKeyHeader = "X-API-Key"

// publicPaths never require a key.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// APIKeyAuth accepts a request when it carries one of keys, either as
// "Authorization: Bearer <key>" or in the X-API-Key header.
// Empty keys are ignored; with no keys left the middleware is a no-op.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	valid := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			valid = append(valid, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(valid) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			token, msg := requestKey(r)
			if msg == "" && !knownKey(valid, []byte(token)) {
				msg = "invalid api key"
			}
			if msg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="moviedex"`)
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestKey extracts the presented key. msg is non-empty when the request
// carries no usable credential.
func requestKey(r *http.Request) (key, msg string) {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k, ""
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing api key"
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	return strings.TrimSpace(token), ""
}

// knownKey compares against every key so timing does not reveal a match position.
func knownKey(keys [][]byte, token []byte) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, token)
	}
	return found == 1
}
