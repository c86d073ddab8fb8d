package auth

import (
	"errors"
	"fmt"
)

// Permissions understood by the cache service.
const (
	PermissionCacheRead  = "workspace:cache:read"
	PermissionCacheWrite = "workspace:cache:write"
)

// ErrAccessDenied is returned when a token lacks the tenant scope or a
// required permission.
var ErrAccessDenied = errors.New("access denied")

// Token represents an authenticated caller. It is produced by an
// Authenticator and passed explicitly through every domain call; there
// is no ambient "current user" state.
type Token struct {
	TenantID    string
	Permissions []string
}

// HasPermission checks if the token carries a specific permission.
func (t Token) HasPermission(perm string) bool {
	for _, p := range t.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// RequireTenant fails unless the token is scoped to a tenant.
func (t Token) RequireTenant() error {
	if t.TenantID == "" {
		return fmt.Errorf("%w: tenant-scoped token required", ErrAccessDenied)
	}
	return nil
}

// RequirePermissions fails unless the token carries every listed
// permission.
func (t Token) RequirePermissions(required ...string) error {
	for _, perm := range required {
		if !t.HasPermission(perm) {
			return fmt.Errorf("%w: missing permission %s", ErrAccessDenied, perm)
		}
	}
	return nil
}
