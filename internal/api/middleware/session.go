package middleware

import (
	"context"
	"net/http"
	"sync"
)

const sessionKey contextKey = "session_id"

type sessionHolder struct {
	mu sync.Mutex
	id string
}

// TrackSession lets handlers report the session a request belongs to, so
// the outer middleware can log and tag it once the handler has returned.
func TrackSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), sessionKey, &sessionHolder{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionID records the session id of the current request.
func SetSessionID(ctx context.Context, id string) {
	if h, ok := ctx.Value(sessionKey).(*sessionHolder); ok {
		h.mu.Lock()
		h.id = id
		h.mu.Unlock()
	}
}

// GetSessionID returns the session id recorded for the request, if any.
func GetSessionID(ctx context.Context) string {
	h, ok := ctx.Value(sessionKey).(*sessionHolder)
	if !ok {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}
