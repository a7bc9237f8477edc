package middleware

import (
	"net/http"
	"strings"
)

// RequireOwner rejects requests whose verified user is not in owners. It must
// run behind Guard. An empty owner list rejects everyone.
func RequireOwner(owners []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(owners))
	for _, o := range owners {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[claims.UserID]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
