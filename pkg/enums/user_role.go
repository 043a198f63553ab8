package enums

import "fmt"

// UserRole maps to the user_role_enum enum in Postgres. Roles are
// non-exclusive; a user may hold several at once.
type UserRole string

const (
	RoleAdmin             UserRole = "admin"
	RoleMasterDistributor UserRole = "master_distributor"
	RoleDistributor       UserRole = "distributor"
	RoleUser              UserRole = "user"
)

var validUserRoles = []UserRole{
	RoleAdmin,
	RoleMasterDistributor,
	RoleDistributor,
	RoleUser,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value matches the canonical role enum.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsDistributorRole reports whether the role participates in the upline graph.
func (r UserRole) IsDistributorRole() bool {
	return r == RoleDistributor || r == RoleMasterDistributor
}

// ParseUserRole converts raw input into UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
