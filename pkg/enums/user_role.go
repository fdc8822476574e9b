package enums

import "fmt"

// UserRole is the coarse permission tier stamped into access tokens.
type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleStaff  UserRole = "staff"
)

var validUserRoles = []UserRole{
	UserRoleMember,
	UserRoleStaff,
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

// IsStaff reports whether the role grants staff-level access.
func (r UserRole) IsStaff() bool {
	return r == UserRoleStaff
}

// ParseUserRole converts the raw string to UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
