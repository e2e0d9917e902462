package auth

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// identityKey is the context key for the authenticated user ID.
const identityKey contextKey = "identity"

// ContextWithIdentity adds the authenticated user ID to the context.
func ContextWithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey, userID)
}

// IdentityFromContext retrieves the authenticated user ID from the context.
// Returns empty string if not authenticated.
func IdentityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(identityKey).(string)
	return id
}

// MustIdentityFromContext retrieves the authenticated user ID from the
// context. Panics if not present (use only when auth middleware has run).
func MustIdentityFromContext(ctx context.Context) string {
	id := IdentityFromContext(ctx)
	if id == "" {
		panic("identity not found - ensure auth middleware is applied")
	}
	return id
}
