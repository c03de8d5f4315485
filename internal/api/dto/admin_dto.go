package dto

import (
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// CreateGroupRequest payload.
type CreateGroupRequest struct {
	Name          string `json:"name"`
	Building      string `json:"building"`
	Floor         int    `json:"floor"`
	ParentGroupID *int64 `json:"parent_group_id"`
}

// UpdateGroupRequest payload; absent fields are left unchanged.
type UpdateGroupRequest struct {
	Name          *string `json:"name"`
	Building      *string `json:"building"`
	Floor         *int    `json:"floor"`
	ParentGroupID *int64  `json:"parent_group_id"`
}

// AddMemberRequest payload.
type AddMemberRequest struct {
	UserID      string      `json:"user_id"`
	Role        domain.Role `json:"role"`
	CanAssign   bool        `json:"can_assign"`
	CanEscalate bool        `json:"can_escalate"`
}

// UpdateMemberStatusRequest payload.
type UpdateMemberStatusRequest struct {
	Status domain.MemberStatus `json:"status"`
}

// CreateRuleRequest payload.
type CreateRuleRequest struct {
	SourceGroupID   int64                    `json:"source_group_id"`
	TargetGroupID   int64                    `json:"target_group_id"`
	TriggerType     domain.EscalationTrigger `json:"trigger_type"`
	DelayMinutes    int                      `json:"delay_minutes"`
	ReopenThreshold int                      `json:"reopen_threshold"`
	Priority        int                      `json:"priority"`
}

// ReconcileRequest payload.
type ReconcileRequest struct {
	Limit int `json:"limit"`
}

// GroupResponse mirrors a support group.
type GroupResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Building      string    `json:"building"`
	Floor         int       `json:"floor"`
	ParentGroupID *int64    `json:"parent_group_id"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MemberResponse mirrors a group member.
type MemberResponse struct {
	ID          int64               `json:"id"`
	UserID      string              `json:"user_id"`
	GroupID     int64               `json:"group_id"`
	Role        domain.Role         `json:"role"`
	Level       domain.SupportLevel `json:"level"`
	CanAssign   bool                `json:"can_assign"`
	CanEscalate bool                `json:"can_escalate"`
	Status      domain.MemberStatus `json:"status"`
	JoinedAt    time.Time           `json:"joined_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// RuleResponse mirrors an escalation rule.
type RuleResponse struct {
	ID              int64                    `json:"id"`
	SourceGroupID   int64                    `json:"source_group_id"`
	TargetGroupID   int64                    `json:"target_group_id"`
	TriggerType     domain.EscalationTrigger `json:"trigger_type"`
	DelayMinutes    int                      `json:"delay_minutes"`
	ReopenThreshold int                      `json:"reopen_threshold"`
	Priority        int                      `json:"priority"`
	TargetRole      domain.Role              `json:"target_role"`
	IsActive        bool                     `json:"is_active"`
	CreatedAt       time.Time                `json:"created_at"`
}
