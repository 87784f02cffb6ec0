package auth

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleClient        Role = "client"
	RoleOperator      Role = "operator"
	RoleManager       Role = "manager"
	RoleEnterprise    Role = "enterprise"
	RoleAdministrator Role = "administrator"
)

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(strings.ToLower(s))); r {
	case RoleClient, RoleOperator, RoleManager, RoleEnterprise, RoleAdministrator:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// Principal is the identity a resolved token grants.
type Principal struct {
	Login string `json:"login"`
	Role  Role   `json:"role"`
}

// Require returns ErrUnauthorized unless the principal holds one of roles.
func (p Principal) Require(roles ...Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q may not perform this operation", ErrUnauthorized, p.Role)
}
