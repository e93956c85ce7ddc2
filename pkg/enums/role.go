package enums

import "fmt"

// Role represents a portal access role.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleUser        Role = "user"
	RoleDistributor Role = "distributor"
	RoleInstaller   Role = "installer"
)

var validRoles = []Role{
	RoleAdmin,
	RoleUser,
	RoleDistributor,
	RoleInstaller,
}

// invitableRoles are the roles an inviter may hand out. Admin accounts are
// never created through the invitation flow.
var invitableRoles = []Role{
	RoleUser,
	RoleDistributor,
	RoleInstaller,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsInvitable reports whether the role may be assigned through an invitation.
func (r Role) IsInvitable() bool {
	for _, candidate := range invitableRoles {
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
