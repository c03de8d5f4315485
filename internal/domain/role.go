package domain

import "fmt"

// Role is an organization-level technician tier.
type Role string

const (
	RoleJunior     Role = "JUNIOR"
	RoleSenior     Role = "SENIOR"
	RoleSupervisor Role = "SUPERVISOR"
	RoleHeadOfIT   Role = "HEAD_OF_IT"
)

// SupportLevel is the ticket service's representation of a tier.
type SupportLevel string

const (
	LevelL1 SupportLevel = "L1"
	LevelL2 SupportLevel = "L2"
	LevelL3 SupportLevel = "L3"
	LevelL4 SupportLevel = "L4"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleJunior, RoleSenior, RoleSupervisor, RoleHeadOfIT:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Rank orders roles from the lowest tier upwards. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleJunior:
		return 1
	case RoleSenior:
		return 2
	case RoleSupervisor:
		return 3
	case RoleHeadOfIT:
		return 4
	}
	return 0
}

// AtLeast reports whether r is the same tier as other or higher.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank() && r.Rank() > 0
}

// Level maps a role to the ticket service support level.
func (r Role) Level() SupportLevel {
	switch r {
	case RoleSenior:
		return LevelL2
	case RoleSupervisor:
		return LevelL3
	case RoleHeadOfIT:
		return LevelL4
	default:
		return LevelL1
	}
}

// MemberRole reports whether r may be carried by a group membership row.
func (r Role) MemberRole() bool {
	switch r {
	case RoleJunior, RoleSenior, RoleSupervisor:
		return true
	}
	return false
}
