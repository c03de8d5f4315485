package domain

import "time"

// RoutingStatus enumerates workflow states for a ticket.
type RoutingStatus string

const (
	RoutingStatusUnassigned RoutingStatus = "UNASSIGNED"
	RoutingStatusAssigned   RoutingStatus = "ASSIGNED"
	RoutingStatusEscalated  RoutingStatus = "ESCALATED"
)

// Valid reports whether s is a known status.
func (s RoutingStatus) Valid() bool {
	switch s {
	case RoutingStatusUnassigned, RoutingStatusAssigned, RoutingStatusEscalated:
		return true
	}
	return false
}

// RoutingState records where a ticket currently sits. One row per ticket.
type RoutingState struct {
	TicketID         string
	CurrentGroupID   int64
	AssignedMemberID *int64
	Status           RoutingStatus
	EscalationCount  int
	LastEscalatedAt  *time.Time
	ClaimedAt        *time.Time
	// SyncPending is set when the ticket service has not yet acknowledged
	// the latest transition.
	SyncPending bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Claimed reports whether the ticket has left the unassigned queue.
func (s *RoutingState) Claimed() bool {
	return s != nil && s.Status != RoutingStatusUnassigned
}

// EscalationGuard is the state an escalation observed before deciding its target.
type EscalationGuard struct {
	GroupID         int64
	EscalationCount int
}

// Guard captures the fields an escalation is conditioned on.
func (s *RoutingState) Guard() EscalationGuard {
	return EscalationGuard{GroupID: s.CurrentGroupID, EscalationCount: s.EscalationCount}
}
