package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session token verification failures. Signature problems are reported
// distinctly from parse failures and from expiry so callers can tell a
// forged token from a stale one.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// sessionClaims is the internal claims type used for JWT encoding.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// TokenService issues and verifies signed session tokens.
// Tokens are stateless: verification is a pure function of the token, the
// signing key and the clock. There is no server-side session store and no
// revocation; a token is valid until natural expiry.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenService creates a TokenService. The signing key is a
// configuration input and must not be empty. now defaults to time.Now.
func NewTokenService(key []byte, ttl time.Duration, now func() time.Time) (*TokenService, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenService{key: key, ttl: ttl, now: now}, nil
}

// TTL returns the configured session lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed session token for the given user.
func (s *TokenService) Issue(userID string) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Verify validates a session token and returns the user ID it encodes.
// The signature is checked before expiry; a token that fails both checks is
// reported as ErrTokenSignature.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "", ErrTokenMalformed
	default:
		// Unknown alg, missing exp and similar are signature-class failures.
		return "", ErrTokenSignature
	}

	if !token.Valid || claims.UserID == "" {
		return "", ErrTokenSignature
	}

	return claims.UserID, nil
}
