package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
)

// DefaultMaxBodyBytes bounds question and ingest request bodies
const DefaultMaxBodyBytes = 1 << 20

// MaxBodyBytes rejects declared oversize bodies with 413 and caps the rest,
// so a chunked upload fails inside the JSON decoder instead.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	tooLarge := fmt.Sprintf("request body exceeds %d bytes", limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidArgument, tooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
