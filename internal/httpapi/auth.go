package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAPIKey rejects requests without the configured key. The key is read
// from "Authorization: Bearer <key>" or X-API-Key.
func requireAPIKey(openAIStyle bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || validKey(r) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="visiond"`)
			if openAIStyle {
				writeAPIError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
				return
			}
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
		})
	}
}

func validKey(r *http.Request) bool {
	got := r.Header.Get("X-API-Key")
	if auth := r.Header.Get("Authorization"); auth != "" {
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			got = strings.TrimSpace(auth[7:])
		}
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) == 1
}
