package domain

import "time"

// WorkflowAction names a recorded transition.
type WorkflowAction string

const (
	ActionCreated    WorkflowAction = "CREATED"
	ActionRouted     WorkflowAction = "ROUTED"
	ActionClaimed    WorkflowAction = "CLAIMED"
	ActionReassigned WorkflowAction = "REASSIGNED"
	ActionEscalated  WorkflowAction = "ESCALATED"
	ActionResolved   WorkflowAction = "RESOLVED"
	ActionClosed     WorkflowAction = "CLOSED"
	ActionReopened   WorkflowAction = "REOPENED"
)

// WorkflowLog is an immutable audit trail entry.
type WorkflowLog struct {
	ID           int64
	TicketID     string
	Action       WorkflowAction
	FromGroupID  *int64
	ToGroupID    *int64
	FromMemberID *int64
	ToMemberID   *int64
	PerformedBy  *string
	Reason       string
	CreatedAt    time.Time
}
