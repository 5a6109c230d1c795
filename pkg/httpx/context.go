package httpx

import (
	"context"
	"net/http"
)

// SessionHeader carries the client chosen session id.
const SessionHeader = "X-Session-ID"

type ctxKey string

const ctxKeySessionID ctxKey = "session_id"

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// SessionIDFromContext returns the session id placed by SessionMiddleware.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeySessionID).(string)
	return id
}

// maxSessionIDLength keeps arbitrary header values out of maps and logs.
const maxSessionIDLength = 128

// SessionMiddleware copies the session header into the request context.
// Missing or oversized values leave the context untouched.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(SessionHeader); id != "" && len(id) <= maxSessionIDLength {
			r = r.WithContext(WithSessionID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
