package domain

import "time"

// MemberStatus is the lifecycle state of a group membership.
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "ACTIVE"
	MemberStatusInactive MemberStatus = "INACTIVE"
	MemberStatusOnLeave  MemberStatus = "ON_LEAVE"
)

// Valid reports whether s is a known status.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusActive, MemberStatusInactive, MemberStatusOnLeave:
		return true
	}
	return false
}

// GroupMember binds an identity user to a support group with a working role.
type GroupMember struct {
	ID          int64
	UserID      string
	GroupID     int64
	Role        Role
	CanAssign   bool
	CanEscalate bool
	Status      MemberStatus
	JoinedAt    time.Time
	UpdatedAt   time.Time
}

// Assignable reports whether the member may receive tickets.
func (m *GroupMember) Assignable() bool {
	return m != nil && m.Status == MemberStatusActive
}
