package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-service/internal/api/dto"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/service"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

func invalidPayload() error {
	return apperrors.NewValidationError("invalid payload", nil)
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return p, nil
}

// userPrincipal rejects service subjects for operations that act on behalf of a person.
func userPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	p, err := principal(c)
	if err != nil {
		return nil, err
	}
	if p.SubjectType != domain.SubjectTypeUser {
		return nil, apperrors.NewForbidden("user subject required")
	}
	return p, nil
}

// performedBy is the audit actor: the user id, or empty for service callers.
func performedBy(c *fiber.Ctx) string {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p.SubjectType != domain.SubjectTypeUser {
		return ""
	}
	return p.SubjectID
}

func paramID(c *fiber.Ctx, key string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+key, map[string]any{key: c.Params(key)})
	}
	return id, nil
}

func queryID(c *fiber.Ctx, key string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.NewValidationError("invalid "+key, map[string]any{key: raw})
	}
	return &id, nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func parseBoolQuery(c *fiber.Ctx, key string, defaultVal bool) bool {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return &t
	}
	return nil
}

func stateResponse(state *domain.RoutingState) *dto.RoutingStateResponse {
	if state == nil {
		return nil
	}
	return &dto.RoutingStateResponse{
		TicketID:         state.TicketID,
		CurrentGroupID:   state.CurrentGroupID,
		AssignedMemberID: state.AssignedMemberID,
		Status:           state.Status,
		EscalationCount:  state.EscalationCount,
		LastEscalatedAt:  state.LastEscalatedAt,
		ClaimedAt:        state.ClaimedAt,
		SyncPending:      state.SyncPending,
		CreatedAt:        state.CreatedAt,
		UpdatedAt:        state.UpdatedAt,
	}
}

func stateResponses(states []domain.RoutingState) []dto.RoutingStateResponse {
	items := make([]dto.RoutingStateResponse, 0, len(states))
	for i := range states {
		items = append(items, *stateResponse(&states[i]))
	}
	return items
}

func groupResponse(group *domain.SupportGroup) *dto.GroupResponse {
	if group == nil {
		return nil
	}
	return &dto.GroupResponse{
		ID:            group.ID,
		Name:          group.Name,
		Building:      group.Building,
		Floor:         group.Floor,
		ParentGroupID: group.ParentGroupID,
		IsActive:      group.IsActive,
		CreatedAt:     group.CreatedAt,
		UpdatedAt:     group.UpdatedAt,
	}
}

func memberResponse(member *domain.GroupMember) *dto.MemberResponse {
	if member == nil {
		return nil
	}
	return &dto.MemberResponse{
		ID:          member.ID,
		UserID:      member.UserID,
		GroupID:     member.GroupID,
		Role:        member.Role,
		Level:       member.Role.Level(),
		CanAssign:   member.CanAssign,
		CanEscalate: member.CanEscalate,
		Status:      member.Status,
		JoinedAt:    member.JoinedAt,
		UpdatedAt:   member.UpdatedAt,
	}
}

func memberResponses(members []domain.GroupMember) []dto.MemberResponse {
	items := make([]dto.MemberResponse, 0, len(members))
	for i := range members {
		items = append(items, *memberResponse(&members[i]))
	}
	return items
}

func ruleResponse(rule *domain.EscalationRule) *dto.RuleResponse {
	if rule == nil {
		return nil
	}
	return &dto.RuleResponse{
		ID:              rule.ID,
		SourceGroupID:   rule.SourceGroupID,
		TargetGroupID:   rule.TargetGroupID,
		TriggerType:     rule.TriggerType,
		DelayMinutes:    rule.DelayMinutes,
		ReopenThreshold: rule.ReopenThreshold,
		Priority:        rule.Priority,
		TargetRole:      rule.TargetRole(),
		IsActive:        rule.IsActive,
		CreatedAt:       rule.CreatedAt,
	}
}

func ruleResponses(rules []domain.EscalationRule) []dto.RuleResponse {
	items := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, *ruleResponse(&rules[i]))
	}
	return items
}

func logResponses(entries []domain.WorkflowLog) []dto.WorkflowLogResponse {
	items := make([]dto.WorkflowLogResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.WorkflowLogResponse{
			ID:           e.ID,
			TicketID:     e.TicketID,
			Action:       e.Action,
			FromGroupID:  e.FromGroupID,
			ToGroupID:    e.ToGroupID,
			FromMemberID: e.FromMemberID,
			ToMemberID:   e.ToMemberID,
			PerformedBy:  e.PerformedBy,
			Reason:       e.Reason,
			CreatedAt:    e.CreatedAt,
		})
	}
	return items
}

func transitionResponse(result *service.TransitionResult) dto.TransitionResponse {
	return dto.TransitionResponse{
		State:       stateResponse(result.State),
		Group:       groupResponse(result.Group),
		FromGroup:   groupResponse(result.FromGroup),
		Assignee:    memberResponse(result.Assignee),
		Rule:        ruleResponse(result.Rule),
		Trigger:     result.Trigger,
		SyncPending: result.SyncPending,
		Warning:     result.Warning,
		Skipped:     result.Skipped,
		Message:     result.Message,
	}
}
