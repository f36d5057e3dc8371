package models

import "context"

// Identity is the caller of a single request, resolved by the auth middleware.
type Identity struct {
	Username      string `json:"username"`
	Role          string `json:"role"`
	Authenticated bool   `json:"authenticated"`
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored in ctx, or an
// unauthenticated zero value.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}
