package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// DirectoryService administers support groups, memberships and escalation rules.
type DirectoryService struct {
	store  repository.Store
	logger *zap.Logger
}

// CreateGroupInput describes a new support group.
type CreateGroupInput struct {
	Name          string
	Building      string
	Floor         int
	ParentGroupID *int64
}

// UpdateGroupInput carries the group fields to change.
type UpdateGroupInput struct {
	Name          *string
	Building      *string
	Floor         *int
	ParentGroupID *int64
}

// AddMemberInput describes a new membership.
type AddMemberInput struct {
	UserID      string
	GroupID     int64
	Role        domain.Role
	CanAssign   bool
	CanEscalate bool
}

// CreateRuleInput describes a new escalation rule.
type CreateRuleInput struct {
	SourceGroupID   int64
	TargetGroupID   int64
	Trigger         domain.EscalationTrigger
	DelayMinutes    int
	ReopenThreshold int
	Priority        int
}

// CreateGroup adds an active group for a building floor.
func (s *DirectoryService) CreateGroup(ctx context.Context, input CreateGroupInput) (*domain.SupportGroup, error) {
	details := map[string]any{}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "required"
	}
	if strings.TrimSpace(input.Building) == "" {
		details["building"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid group", details)
	}
	if input.ParentGroupID != nil {
		if _, err := s.GetGroup(ctx, *input.ParentGroupID); err != nil {
			return nil, err
		}
	}

	group := &domain.SupportGroup{
		Name:          strings.TrimSpace(input.Name),
		Building:      strings.TrimSpace(input.Building),
		Floor:         input.Floor,
		ParentGroupID: input.ParentGroupID,
		IsActive:      true,
	}
	if err := s.store.Groups.Create(ctx, group); err != nil {
		return nil, mapRepoErr(err, "support group", map[string]any{"building": group.Building, "floor": group.Floor})
	}
	s.logger.Info("support group created", zap.Int64("group_id", group.ID), zap.String("building", group.Building), zap.Int("floor", group.Floor))
	return group, nil
}

// GetGroup returns a group by id.
func (s *DirectoryService) GetGroup(ctx context.Context, id int64) (*domain.SupportGroup, error) {
	group, err := s.store.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "support group", map[string]any{"group_id": id})
	}
	return group, nil
}

// ListGroups lists groups, optionally restricted to one building.
func (s *DirectoryService) ListGroups(ctx context.Context, building string, includeInactive bool) ([]domain.SupportGroup, error) {
	filter := repository.GroupFilter{IncludeHidden: includeInactive}
	if building != "" {
		filter.Building = &building
	}
	groups, err := s.store.Groups.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return groups, nil
}

// UpdateGroup applies the provided fields.
func (s *DirectoryService) UpdateGroup(ctx context.Context, id int64, input UpdateGroupInput) (*domain.SupportGroup, error) {
	group, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, apperrors.NewValidationError("invalid group", map[string]any{"name": "required"})
		}
		group.Name = strings.TrimSpace(*input.Name)
	}
	if input.Building != nil {
		if strings.TrimSpace(*input.Building) == "" {
			return nil, apperrors.NewValidationError("invalid group", map[string]any{"building": "required"})
		}
		group.Building = strings.TrimSpace(*input.Building)
	}
	if input.Floor != nil {
		group.Floor = *input.Floor
	}
	if input.ParentGroupID != nil {
		if *input.ParentGroupID == id {
			return nil, apperrors.NewValidationError("group cannot be its own parent", nil)
		}
		if _, err := s.GetGroup(ctx, *input.ParentGroupID); err != nil {
			return nil, err
		}
		group.ParentGroupID = input.ParentGroupID
	}
	if err := s.store.Groups.Update(ctx, group); err != nil {
		return nil, mapRepoErr(err, "support group", map[string]any{"group_id": id})
	}
	return group, nil
}

// DeactivateGroup soft-deletes a group. Existing routing states keep referencing it.
func (s *DirectoryService) DeactivateGroup(ctx context.Context, id int64) error {
	if err := s.store.Groups.Deactivate(ctx, id); err != nil {
		return mapRepoErr(err, "support group", map[string]any{"group_id": id})
	}
	s.logger.Info("support group deactivated", zap.Int64("group_id", id))
	return nil
}

// AddMember creates an ACTIVE membership.
func (s *DirectoryService) AddMember(ctx context.Context, input AddMemberInput) (*domain.GroupMember, error) {
	details := map[string]any{}
	if strings.TrimSpace(input.UserID) == "" {
		details["user_id"] = "required"
	}
	if !input.Role.MemberRole() {
		details["role"] = "must be JUNIOR, SENIOR or SUPERVISOR"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid member", details)
	}
	group, err := s.GetGroup(ctx, input.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, apperrors.NewConflict("group is inactive", map[string]any{"group_id": group.ID})
	}

	member := &domain.GroupMember{
		UserID:      strings.TrimSpace(input.UserID),
		GroupID:     group.ID,
		Role:        input.Role,
		CanAssign:   input.CanAssign,
		CanEscalate: input.CanEscalate,
		Status:      domain.MemberStatusActive,
	}
	if err := s.store.Members.Create(ctx, member); err != nil {
		return nil, mapRepoErr(err, "group member", map[string]any{"user_id": member.UserID, "group_id": group.ID})
	}
	return member, nil
}

// GetMember returns a membership by id.
func (s *DirectoryService) GetMember(ctx context.Context, id int64) (*domain.GroupMember, error) {
	member, err := s.store.Members.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "group member", map[string]any{"member_id": id})
	}
	return member, nil
}

// ListMembers lists every membership of a group.
func (s *DirectoryService) ListMembers(ctx context.Context, groupID int64) ([]domain.GroupMember, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.store.Members.List(ctx, repository.MemberFilter{GroupIDs: []int64{groupID}})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return members, nil
}

// UpdateMemberStatus changes a membership's availability.
func (s *DirectoryService) UpdateMemberStatus(ctx context.Context, id int64, status domain.MemberStatus) (*domain.GroupMember, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid member status", map[string]any{"status": status})
	}
	if err := s.store.Members.UpdateStatus(ctx, id, status); err != nil {
		return nil, mapRepoErr(err, "group member", map[string]any{"member_id": id})
	}
	return s.GetMember(ctx, id)
}

// CreateRule adds an active escalation rule.
func (s *DirectoryService) CreateRule(ctx context.Context, input CreateRuleInput) (*domain.EscalationRule, error) {
	details := map[string]any{}
	if _, err := domain.ParseTrigger(string(input.Trigger)); err != nil {
		details["trigger_type"] = "must be SLA, MANUAL, CRITICAL or REOPEN_COUNT"
	}
	if input.SourceGroupID == input.TargetGroupID {
		details["target_group_id"] = "must differ from source_group_id"
	}
	if input.DelayMinutes < 0 {
		details["delay_minutes"] = "must not be negative"
	}
	if input.Priority < 0 {
		details["priority"] = "must not be negative"
	}
	if input.ReopenThreshold < 0 {
		details["reopen_threshold"] = "must not be negative"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid escalation rule", details)
	}
	for _, id := range []int64{input.SourceGroupID, input.TargetGroupID} {
		if _, err := s.GetGroup(ctx, id); err != nil {
			return nil, err
		}
	}

	rule := &domain.EscalationRule{
		SourceGroupID:   input.SourceGroupID,
		TargetGroupID:   input.TargetGroupID,
		TriggerType:     input.Trigger,
		DelayMinutes:    input.DelayMinutes,
		ReopenThreshold: input.ReopenThreshold,
		Priority:        input.Priority,
		IsActive:        true,
	}
	if err := s.store.Rules.Create(ctx, rule); err != nil {
		return nil, mapRepoErr(err, "escalation rule", nil)
	}
	return rule, nil
}

// ListRules lists active rules, all of them or those leaving one group.
func (s *DirectoryService) ListRules(ctx context.Context, sourceGroupID *int64) ([]domain.EscalationRule, error) {
	var (
		rules []domain.EscalationRule
		err   error
	)
	if sourceGroupID != nil {
		rules, err = s.store.Rules.ListBySource(ctx, *sourceGroupID)
	} else {
		rules, err = s.store.Rules.ListActive(ctx)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return rules, nil
}
