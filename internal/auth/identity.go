// Package auth carries the caller identity that the external auth layer
// issues. The engine never authenticates anyone; it only reads who the
// caller is and gates transitions on role.
package auth

import (
	"context"

	"snapkart-be/internal/apperr"
)

type Role string

const (
	RoleUser          Role = "USER"
	RoleAdmin         Role = "ADMIN"
	RoleDeliveryAgent Role = "DELIVERY_AGENT"
	RoleSystem        Role = "SYSTEM"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleDeliveryAgent, RoleSystem:
		return true
	}
	return false
}

// Identity is the currentUser()/currentAdmin() contract. For
// DELIVERY_AGENT callers ID is the delivery agent id.
type Identity struct {
	ID   int64
	Role Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// System is the identity used for transitions driven by the payment gateway.
var System = Identity{Role: RoleSystem}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity sets identity into context (called by middleware)
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext retrieves identity safely
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

var (
	ErrUnauthenticated = apperr.Forbidden("authentication required")
	ErrForbiddenRole   = apperr.Forbidden("role not permitted for this operation")
)

// Require returns the caller identity when it holds one of roles.
func Require(ctx context.Context, roles ...Role) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	for _, r := range roles {
		if id.Role == r {
			return id, nil
		}
	}
	return Identity{}, ErrForbiddenRole
}
