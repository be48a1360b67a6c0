// Package authmw provides the chained HTTP middlewares that extract the
// tenant organization from the request host, validate bearer tokens against
// the cached JWKS, and enforce scope requirements on protected routes.
package authmw

import (
	"context"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/crypto"
)

// Org is the tenant resolved from the request's Host header.
type Org struct {
	OrgID     uuid.UUID
	Subdomain string
}

// Identity is the caller resolved from a validated bearer token. At most
// one of UserID or ServiceType is set, matching whichever token shape was
// presented; a token without service_type whose subject is not a UUID sets
// neither.
type Identity struct {
	Subject     string
	Scopes      []string
	UserID      *uuid.UUID
	OrgID       *uuid.UUID
	Email       string
	Roles       []string
	ServiceType string
}

// HasScope reports whether the identity's token carries the given scope.
func (id Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type contextKey int

const (
	orgContextKey contextKey = iota
	identityContextKey
)

// WithOrg attaches the resolved organization to ctx.
func WithOrg(ctx context.Context, org Org) context.Context {
	return context.WithValue(ctx, orgContextKey, org)
}

// OrgFromContext retrieves the organization attached by the extraction
// middleware, if any.
func OrgFromContext(ctx context.Context) (Org, bool) {
	org, ok := ctx.Value(orgContextKey).(Org)
	return org, ok
}

// WithIdentity attaches the resolved caller identity to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the caller identity attached by the bearer
// middleware, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// identityFromClaims maps verified JWT claims onto an Identity, handling
// both the service-token and user-token claim shapes.
func identityFromClaims(claims *crypto.Claims) Identity {
	id := Identity{
		Subject:     claims.Subject,
		ServiceType: claims.ServiceType,
		Email:       claims.Email,
		Roles:       claims.Roles,
	}
	if claims.Scope != "" {
		id.Scopes = splitScope(claims.Scope)
	}
	if claims.OrgID != "" {
		if orgID, err := uuid.Parse(claims.OrgID); err == nil {
			id.OrgID = &orgID
		}
	}
	if claims.ServiceType == "" {
		if userID, err := uuid.Parse(claims.Subject); err == nil {
			id.UserID = &userID
		}
	}
	return id
}

func splitScope(scope string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(scope); i++ {
		if i == len(scope) || scope[i] == ' ' {
			if i > start {
				out = append(out, scope[start:i])
			}
			start = i + 1
		}
	}
	return out
}
