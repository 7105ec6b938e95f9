// Package identity verifies caller identity tokens and carries the
// verified identity through request contexts.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package identity

import (
	"context"
	"net/http"

	"github.com/octorank/octorank/internal/domain"
)

// Verifier validates a bearer token and extracts the identity it asserts.
type Verifier interface {
	// Verify parses and validates a raw token, returning the identity
	// it carries. Returns an EUNAUTHORIZED domain error for any token
	// that cannot be trusted.
	Verify(ctx context.Context, token string) (*domain.VerifiedIdentity, error)
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const identityContextKey contextKey = "identity"

// FromContext retrieves the verified identity from the context.
//
// Returns nil if the request was not authenticated.
func FromContext(ctx context.Context) *domain.VerifiedIdentity {
	id, ok := ctx.Value(identityContextKey).(*domain.VerifiedIdentity)
	if !ok {
		return nil
	}
	return id
}

// FromRequest retrieves the verified identity from the request context.
func FromRequest(r *http.Request) *domain.VerifiedIdentity {
	return FromContext(r.Context())
}

// NewContext stores a verified identity in the context.
//
// This is typically called by authentication middleware after validating
// a bearer token.
func NewContext(ctx context.Context, id *domain.VerifiedIdentity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
