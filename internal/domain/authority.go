package domain

import "fmt"

// ReassignScope is how far a role may move a ticket.
type ReassignScope string

const (
	ScopeNone         ReassignScope = "none"
	ScopeSameBuilding ReassignScope = "building"
	ScopeAnyBuilding  ReassignScope = "any"
)

// ParseReassignScope validates a scope string.
func ParseReassignScope(s string) (ReassignScope, error) {
	switch ReassignScope(s) {
	case ScopeNone, ScopeSameBuilding, ScopeAnyBuilding:
		return ReassignScope(s), nil
	}
	return "", fmt.Errorf("unknown reassign scope %q", s)
}

// AuthorityPolicy is the role -> permission table for workflow transitions.
type AuthorityPolicy struct {
	Reassign         map[Role]ReassignScope
	ManualEscalation map[Role]bool
	Claim            map[Role]bool
}

// DefaultAuthorityPolicy returns the organization's standard permissions.
func DefaultAuthorityPolicy() AuthorityPolicy {
	p := AuthorityPolicy{
		Reassign:         map[Role]ReassignScope{},
		ManualEscalation: map[Role]bool{},
		Claim:            map[Role]bool{},
	}
	for _, role := range []Role{RoleJunior, RoleSenior, RoleSupervisor, RoleHeadOfIT} {
		switch role {
		case RoleJunior:
			p.Reassign[role] = ScopeNone
			p.Claim[role] = true
		case RoleSenior:
			p.Reassign[role] = ScopeSameBuilding
			p.ManualEscalation[role] = true
		case RoleSupervisor, RoleHeadOfIT:
			p.Reassign[role] = ScopeAnyBuilding
			p.ManualEscalation[role] = true
		}
	}
	return p
}

// ReassignScopeFor returns the scope for role; unknown roles get ScopeNone.
func (p AuthorityPolicy) ReassignScopeFor(role Role) ReassignScope {
	if scope, ok := p.Reassign[role]; ok {
		return scope
	}
	return ScopeNone
}

// CanReassign evaluates the reassignment policy for a move between groups.
func (p AuthorityPolicy) CanReassign(role Role, from, to *SupportGroup) bool {
	switch p.ReassignScopeFor(role) {
	case ScopeAnyBuilding:
		return true
	case ScopeSameBuilding:
		return from.SameBuilding(to)
	default:
		return false
	}
}

// CanEscalateManually reports whether role may raise a MANUAL escalation.
func (p AuthorityPolicy) CanEscalateManually(role Role) bool {
	return p.ManualEscalation[role]
}

// CanClaim reports whether role may claim unassigned tickets.
func (p AuthorityPolicy) CanClaim(role Role) bool {
	return p.Claim[role]
}
