package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mjeyi/credport/internal/auth"
)

// Auth returns a middleware that authenticates requests with a bearer
// session token. A missing credential is 401; a present but unusable one
// (malformed, bad signature, expired) is 403. All failure responses share
// one body per class so nothing about the token leaks.
func Auth(tokens *auth.TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeUnauthenticated(w)
				return
			}

			userID, err := tokens.Verify(token)
			if err != nil {
				logger.Warn("authentication failed",
					slog.String("reason", verifyFailureReason(err)),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeForbidden(w)
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken pulls the session token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// verifyFailureReason maps verification errors to log labels.
// The label goes to the log only, never to the client.
func verifyFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "malformed"
	default:
		return "bad_signature"
	}
}

// writeUnauthenticated writes a 401 response for missing credentials.
func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHENTICATED","message":"Missing bearer token"}}`))
}

// writeForbidden writes a 403 response for invalid or expired tokens.
func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":{"code":"FORBIDDEN","message":"Invalid or expired token"}}`))
}
