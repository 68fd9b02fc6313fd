package middleware

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/recombinant/internal/ckan"
)

// ForwardToken passes the caller's CKAN API token on to the action calls
// made while serving the request. The token is read from the Authorization
// header (bare or with a "Bearer" prefix) or from X-CKAN-API-Key. Requests
// without one use the server's own key.
func ForwardToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := requestToken(r); token != "" {
			r = r.WithContext(ckan.WithToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

func requestToken(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if scheme, rest, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(rest)
		}
		return auth
	}
	return strings.TrimSpace(r.Header.Get("X-CKAN-API-Key"))
}
