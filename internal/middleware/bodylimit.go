package middleware

import (
	"net/http"
)

// MaxBodySize returns a middleware that limits request body size.
// Registration bodies carry a full applicant profile; nothing legitimate
// approaches the cap, so oversized bodies are rejected outright.
//
// When the limit is exceeded mid-read, MaxBytesReader closes the
// connection and the JSON decoder in the handler fails.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = w.Write([]byte(`{"error":{"code":"PAYLOAD_TOO_LARGE","message":"Request body too large"}}`))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
