package enums

import "fmt"

// Role identifies the single, immutable role an account is created with.
type Role string

const (
	RolePatient Role = "patient"
	RoleClinic  Role = "clinic"
	RoleAdmin   Role = "admin"
)

var validRoles = []Role{
	RolePatient,
	RoleClinic,
	RoleAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
