package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Roles accepted by the administrative role gate. Matching is
// case-insensitive; superusers bypass the gate entirely.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// Claims is the payload of a signed credential. Credentials are issued by
// the login flow and carry identity plus a permission snapshot; they are
// deliberately unbounded in time; session freshness is enforced against
// the stored activity marker, not a token expiry.
type Claims struct {
	PrincipalID string   `json:"sub"`
	TenantSlug  string   `json:"tenant,omitempty"` // empty for superuser credentials
	Role        string   `json:"role"`
	Permissions []string `json:"perms,omitempty"`
	Superuser   bool     `json:"su,omitempty"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the permission snapshot contains name
func (c *Claims) HasPermission(name string) bool {
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// HasRole reports whether the credential carries one of the given roles
// (case-insensitive)
func (c *Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if strings.EqualFold(c.Role, r) {
			return true
		}
	}
	return false
}
