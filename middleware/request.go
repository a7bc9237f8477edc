package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	rollAuth "github.com/MrEthical07/rollAuth"
)

// RequestIDHeader is read from the inbound request and echoed on the response.
const RequestIDHeader = "X-Request-ID"

// RequestContext attaches a request id and the client IP to the request
// context so audit events can be correlated. A missing request id is
// generated.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := rollAuth.WithRequestID(r.Context(), id)
		if ip := clientIP(r); ip != "" {
			ctx = rollAuth.WithClientIP(ctx, ip)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
