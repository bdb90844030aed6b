package auth

import (
	"context"
	"slices"
	"strings"
)

// Role constants checked by the back office routes.
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Identity is the verified administrator behind a request.
type Identity struct {
	UID   string
	Email string
	Roles []string
}

// HasAnyRole reports whether the identity carries one of roles (case-insensitive).
func (i *Identity) HasAnyRole(roles ...string) bool {
	if i == nil {
		return false
	}
	return slices.ContainsFunc(i.Roles, func(have string) bool {
		return slices.ContainsFunc(roles, func(want string) bool {
			return strings.EqualFold(have, strings.TrimSpace(want))
		})
	})
}

// ActorID is recorded on status history entries. Email wins over UID when present.
func (i *Identity) ActorID() string {
	if i == nil {
		return ""
	}
	if i.Email != "" {
		return i.Email
	}
	return i.UID
}

type contextKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	return identity, ok && identity != nil
}
