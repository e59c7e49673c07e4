// Package access holds the capability check callers run before mutations.
package access

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when a principal lacks every allowed role.
var ErrForbidden = errors.New("forbidden")

// Role is the authorization level of a principal.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleAuthor Role = "author"
	RoleReader Role = "reader"
)

// ValidRoles is the set of known roles.
var ValidRoles = map[Role]bool{
	RoleAdmin:  true,
	RoleEditor: true,
	RoleAuthor: true,
	RoleReader: true,
}

// Principal is the caller a mutation is performed for.
type Principal struct {
	ID   int64
	Role Role
}

// Editors may manage tags and categories.
var Editors = []Role{RoleAdmin, RoleEditor}

// HasRole reports whether p holds one of allowed. A nil principal or an
// unknown role never matches.
func HasRole(p *Principal, allowed ...Role) bool {
	if p == nil || !ValidRoles[p.Role] {
		return false
	}
	for _, r := range allowed {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Require returns ErrForbidden when p holds none of allowed.
func Require(p *Principal, allowed ...Role) error {
	if HasRole(p, allowed...) {
		return nil
	}
	if p == nil {
		return fmt.Errorf("%w: no principal", ErrForbidden)
	}
	return fmt.Errorf("%w: role %q", ErrForbidden, p.Role)
}

// CanModify reports whether p may change a resource owned by ownerID.
// Admins and editors may change anything, everyone else only their own.
func CanModify(p *Principal, ownerID int64) bool {
	if HasRole(p, Editors...) {
		return true
	}
	return HasRole(p, RoleAuthor, RoleReader) && p.ID == ownerID
}
