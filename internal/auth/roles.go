// Package auth resolves callers from credentials and decides whether they
// hold the access level an operation needs.
//
// Two credential shapes are supported:
//
//   - Bearer tokens carrying base64("<external id>:<api key>"), evaluated by
//     Authorizer into an allow/deny Policy.
//   - Query credentials (id, apiKey) checked against a role set by Elevated.
//
// Every failure collapses into ErrUnauthorized (or a Deny policy) so callers
// cannot tell an unknown user from a wrong key.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
)

// ErrUnauthorized is the single failure returned by every credential check.
var ErrUnauthorized = errors.New("unauthorized")

var (
	// AdminRoles may manage any record and run management commands.
	AdminRoles = []domain.Role{domain.RoleRoot, domain.RoleAdmin}

	// RelayRoles may deliver Telegram updates to the relay.
	RelayRoles = []domain.Role{domain.RoleRoot, domain.RoleAdmin, domain.RoleService}
)

// UserFinder resolves a user by external id. A nil user with a nil error
// means no such user exists.
type UserFinder interface {
	GetByExternalID(ctx context.Context, id string) (*domain.User, error)
}

// IsElevated reports whether u holds one of AdminRoles.
func IsElevated(u *domain.User) bool {
	return u != nil && u.Role.In(AdminRoles...)
}

// KeyMatches reports whether u holds a non-empty api key equal to apiKey.
func KeyMatches(u *domain.User, apiKey string) bool {
	if !u.HasAPIKey() || apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(u.Key()), []byte(apiKey)) == 1
}

// Elevated looks up the user identified by id and returns it when its role
// is in allowed and its api key equals apiKey. Any other outcome, including
// lookup failures, yields ErrUnauthorized.
func Elevated(ctx context.Context, users UserFinder, id, apiKey string, allowed ...domain.Role) (*domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" || apiKey == "" || users == nil {
		return nil, ErrUnauthorized
	}
	u, err := users.GetByExternalID(ctx, id)
	if err != nil || u == nil {
		return nil, ErrUnauthorized
	}
	if !u.Role.In(allowed...) || !KeyMatches(u, apiKey) {
		return nil, ErrUnauthorized
	}
	return u, nil
}
