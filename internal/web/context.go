package web

import (
	"net/http"

	"github.com/JonMunkholm/recombinant/internal/core"
)

// requesterContext attaches the client address and User-Agent to the
// request context for history entries. RemoteAddr has already been
// rewritten by TrustedRealIP.
func requesterContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithRequester(r.Context(), core.Requester{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
