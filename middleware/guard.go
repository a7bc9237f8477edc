package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/rollAuth/jwt"
)

// Verifier checks a gateway token. *jwt.Manager satisfies it.
type Verifier interface {
	Parse(token string) (*jwt.EventClaims, error)
}

type claimsContextKey struct{}

func ClaimsFromContext(ctx context.Context) (*jwt.EventClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.EventClaims)
	return claims, ok
}

// WithClaims returns a copy of ctx carrying claims. Handlers read them back
// with ClaimsFromContext.
func WithClaims(ctx context.Context, claims *jwt.EventClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func Guard(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Parse(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
