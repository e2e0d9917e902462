package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mjeyi/credport/internal/auth"
)

func newAuthHandler(t *testing.T, key string) (http.Handler, *auth.TokenService) {
	t.Helper()

	tokens, err := auth.NewTokenService([]byte(key), time.Hour, nil)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.MustIdentityFromContext(r.Context())))
	})

	return Auth(tokens, logger)(inner), tokens
}

func TestAuth_MissingToken(t *testing.T) {
	t.Parallel()

	handler, _ := newAuthHandler(t, "test-key")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	t.Parallel()

	handler, tokens := newAuthHandler(t, "test-key")

	token, _, err := tokens.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "user-42" {
		t.Errorf("identity = %q, want user-42", rec.Body.String())
	}
}

func TestAuth_BadTokens(t *testing.T) {
	t.Parallel()

	handler, _ := newAuthHandler(t, "test-key")

	otherTokens, err := auth.NewTokenService([]byte("other-key"), time.Hour, nil)
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	forged, _, err := otherTokens.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	expiredIssuer, err := auth.NewTokenService([]byte("test-key"), time.Minute, func() time.Time { return past })
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	expired, _, err := expiredIssuer.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong key", forged},
		{"expired", expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
		})
	}
}
