// Package api implements the notecheck REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// tokenQueryParam carries the token for clients that cannot set headers,
// such as a browser EventSource on /events.
const tokenQueryParam = "access_token"

// AuthMiddleware returns middleware that validates a Bearer token.
// With enabled false every request passes through. Otherwise the token is
// taken from "Authorization: Bearer <token>" or, failing that, from the
// access_token query parameter.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := requestToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="notecheck"`)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		got, found := strings.CutPrefix(auth, "Bearer ")
		return got, found && got != ""
	}
	got := r.URL.Query().Get(tokenQueryParam)
	return got, got != ""
}
