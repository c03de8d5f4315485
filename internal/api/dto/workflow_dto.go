package dto

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// RouteTicketRequest payload for automatic routing.
type RouteTicketRequest struct {
	TicketID string `json:"ticket_id"`
	Building string `json:"building"`
	Floor    int    `json:"floor"`
	Priority string `json:"priority"`
}

// OpenTicketRequest payload for claim-on-open tickets.
type OpenTicketRequest struct {
	TicketID string `json:"ticket_id"`
	Building string `json:"building"`
	Floor    int    `json:"floor"`
}

// ClaimRequest payload. UserID is only honoured for service callers.
type ClaimRequest struct {
	UserID string `json:"user_id"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	TargetMemberID int64  `json:"target_member_id"`
	Reason         string `json:"reason"`
}

// EscalateRequest payload. The condition fields select a conditional
// escalation for automatic triggers.
type EscalateRequest struct {
	Trigger     domain.EscalationTrigger `json:"trigger"`
	Reason      string                   `json:"reason"`
	IsCritical  *bool                    `json:"is_critical"`
	SLABreached *bool                    `json:"sla_breached"`
	ReopenCount *int                     `json:"reopen_count"`
}

// RoutingStateResponse mirrors a routing state row.
type RoutingStateResponse struct {
	TicketID         string               `json:"ticket_id"`
	CurrentGroupID   int64                `json:"current_group_id"`
	AssignedMemberID *int64               `json:"assigned_member_id"`
	Status           domain.RoutingStatus `json:"status"`
	EscalationCount  int                  `json:"escalation_count"`
	LastEscalatedAt  *time.Time           `json:"last_escalated_at"`
	ClaimedAt        *time.Time           `json:"claimed_at"`
	SyncPending      bool                 `json:"sync_pending"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// TransitionResponse is returned by every state-changing workflow endpoint.
type TransitionResponse struct {
	State       *RoutingStateResponse    `json:"state,omitempty"`
	Group       *GroupResponse           `json:"group,omitempty"`
	FromGroup   *GroupResponse           `json:"from_group,omitempty"`
	Assignee    *MemberResponse          `json:"assignee,omitempty"`
	Rule        *RuleResponse            `json:"rule,omitempty"`
	Trigger     domain.EscalationTrigger `json:"trigger,omitempty"`
	SyncPending bool                     `json:"sync_pending"`
	Warning     string                   `json:"warning,omitempty"`
	Skipped     bool                     `json:"skipped,omitempty"`
	Message     string                   `json:"message,omitempty"`
}

// ClaimStatusResponse reports whether a ticket has been claimed.
type ClaimStatusResponse struct {
	TicketID         string               `json:"ticket_id"`
	Claimed          bool                 `json:"claimed"`
	Status           domain.RoutingStatus `json:"status,omitempty"`
	AssignedMemberID *int64               `json:"assigned_member_id"`
}

// WorkflowLogResponse mirrors an audit entry.
type WorkflowLogResponse struct {
	ID           int64                 `json:"id"`
	TicketID     string                `json:"ticket_id"`
	Action       domain.WorkflowAction `json:"action"`
	FromGroupID  *int64                `json:"from_group_id"`
	ToGroupID    *int64                `json:"to_group_id"`
	FromMemberID *int64                `json:"from_member_id"`
	ToMemberID   *int64                `json:"to_member_id"`
	PerformedBy  *string               `json:"performed_by"`
	Reason       string                `json:"reason"`
	CreatedAt    time.Time             `json:"created_at"`
}
