package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/upstream"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// ReassignmentService moves tickets between members within the actor's authority.
type ReassignmentService struct {
	*base
}

// ReassignInput describes a reassignment request. An empty ActorRole is
// resolved through the identity service.
type ReassignInput struct {
	TicketID       string
	ActorID        string
	ActorRole      domain.Role
	TargetMemberID int64
	Reason         string
}

// Reassign hands a ticket to another active member.
func (s *ReassignmentService) Reassign(ctx context.Context, input ReassignInput) (*TransitionResult, error) {
	if input.TicketID == "" || input.TargetMemberID <= 0 {
		return nil, apperrors.NewValidationError("ticket id and target member required", nil)
	}
	role, err := s.resolveRole(ctx, input.ActorID, input.ActorRole)
	if err != nil {
		return nil, err
	}
	if s.policy.ReassignScopeFor(role) == domain.ScopeNone {
		return nil, apperrors.NewInsufficientAuthority("role cannot reassign tickets", map[string]any{"role": role})
	}

	state, err := s.state(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}
	if _, ok := domain.NextStatus(state.Status, domain.EventReassign); !ok {
		return nil, apperrors.NewConflict("ticket cannot be reassigned", map[string]any{"status": state.Status})
	}
	fromGroup, err := s.group(ctx, state.CurrentGroupID)
	if err != nil {
		return nil, err
	}
	target, err := s.store.Members.GetByID(ctx, input.TargetMemberID)
	if err != nil {
		return nil, mapRepoErr(err, "group member", map[string]any{"member_id": input.TargetMemberID})
	}
	if !target.Assignable() {
		return nil, apperrors.NewConflict("target member is not active", map[string]any{"member_id": target.ID, "status": target.Status})
	}
	toGroup, err := s.group(ctx, target.GroupID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanReassign(role, fromGroup, toGroup) {
		return nil, apperrors.NewInsufficientAuthority("reassignment outside authority", map[string]any{
			"role":          role,
			"from_building": fromGroup.Building,
			"to_building":   toGroup.Building,
		})
	}

	previousMember := state.AssignedMemberID
	updated, err := s.store.States.Reassign(ctx, input.TicketID, target.ID, toGroup.ID)
	if err != nil {
		return nil, mapRepoErr(err, "routing state", map[string]any{"ticket_id": input.TicketID})
	}

	pending := s.sync(ctx, updated,
		outbox.Notification{
			Kind:     outbox.KindAssign,
			TicketID: input.TicketID,
			UserID:   target.UserID,
			Level:    target.Role.Level(),
		},
		outbox.Notification{
			Kind:     outbox.KindStatus,
			TicketID: input.TicketID,
			Status:   upstream.TicketStatusReassigned,
		},
	)

	reason := input.Reason
	if reason == "" {
		reason = fmt.Sprintf("Reassigned by %s from %s to %s", role, fromGroup.Name, toGroup.Name)
	}
	s.audit.Record(ctx, &domain.WorkflowLog{
		TicketID:     input.TicketID,
		Action:       domain.ActionReassigned,
		FromGroupID:  &fromGroup.ID,
		ToGroupID:    &toGroup.ID,
		FromMemberID: previousMember,
		ToMemberID:   &target.ID,
		PerformedBy:  optionalString(input.ActorID),
		Reason:       reason,
	})
	s.publish(ctx, events.EventTicketReassigned, input.TicketID, input.ActorID, events.TransitionPayload{
		Status:          updated.Status,
		FromGroupID:     &fromGroup.ID,
		ToGroupID:       toGroup.ID,
		FromMemberID:    previousMember,
		ToMemberID:      &target.ID,
		EscalationCount: updated.EscalationCount,
		Reason:          reason,
		SyncPending:     pending,
	})

	return s.finish(domain.ActionReassigned, &TransitionResult{
		State:       updated,
		Group:       toGroup,
		FromGroup:   fromGroup,
		Assignee:    target,
		SyncPending: pending,
	}), nil
}

// Targets lists the members a role may hand tickets from groupID to.
// Seniors see the juniors of their building; wider scopes see every active member.
func (s *ReassignmentService) Targets(ctx context.Context, groupID int64, role domain.Role) ([]domain.GroupMember, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	current, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}

	filter := repository.GroupFilter{}
	memberFilter := repository.MemberFilter{Status: ptr(domain.MemberStatusActive)}
	switch s.policy.ReassignScopeFor(role) {
	case domain.ScopeNone:
		return []domain.GroupMember{}, nil
	case domain.ScopeSameBuilding:
		filter.Building = &current.Building
		memberFilter.Role = ptr(domain.RoleJunior)
	}

	groups, err := s.store.Groups.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if len(groups) == 0 {
		return []domain.GroupMember{}, nil
	}
	for _, g := range groups {
		memberFilter.GroupIDs = append(memberFilter.GroupIDs, g.ID)
	}
	members, err := s.store.Members.List(ctx, memberFilter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return members, nil
}
