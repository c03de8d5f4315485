package domain

import (
	"fmt"
	"time"
)

// EscalationTrigger names what caused an escalation.
type EscalationTrigger string

const (
	TriggerSLA         EscalationTrigger = "SLA"
	TriggerManual      EscalationTrigger = "MANUAL"
	TriggerCritical    EscalationTrigger = "CRITICAL"
	TriggerReopenCount EscalationTrigger = "REOPEN_COUNT"
)

// ParseTrigger validates a trigger string.
func ParseTrigger(s string) (EscalationTrigger, error) {
	switch EscalationTrigger(s) {
	case TriggerSLA, TriggerManual, TriggerCritical, TriggerReopenCount:
		return EscalationTrigger(s), nil
	}
	return "", fmt.Errorf("unknown escalation trigger %q", s)
}

// Automatic reports whether the trigger comes from a trusted internal source.
func (t EscalationTrigger) Automatic() bool {
	return t != TriggerManual
}

// SupervisorTierPriority is the lowest rule priority that escalates to supervisors.
const SupervisorTierPriority = 2

// DefaultReopenThreshold applies when a REOPEN_COUNT rule carries no threshold.
const DefaultReopenThreshold = 3

// EscalationRule maps a source group to a target group for one trigger.
type EscalationRule struct {
	ID              int64
	SourceGroupID   int64
	TargetGroupID   int64
	TriggerType     EscalationTrigger
	DelayMinutes    int
	ReopenThreshold int
	Priority        int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TargetRole is the tier that should pick up tickets escalated by this rule.
func (r *EscalationRule) TargetRole() Role {
	if r.Priority >= SupervisorTierPriority {
		return RoleSupervisor
	}
	return RoleSenior
}

// Threshold returns the reopen count at which the rule fires.
func (r *EscalationRule) Threshold() int {
	if r.ReopenThreshold <= 0 {
		return DefaultReopenThreshold
	}
	return r.ReopenThreshold
}
