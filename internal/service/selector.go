package service

import (
	"context"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// AssignmentSelector picks the least-loaded active member of a role in a group.
type AssignmentSelector struct {
	members repository.GroupMemberRepository
	states  repository.RoutingStateRepository
}

// NewAssignmentSelector creates the selector.
func NewAssignmentSelector(members repository.GroupMemberRepository, states repository.RoutingStateRepository) *AssignmentSelector {
	return &AssignmentSelector{members: members, states: states}
}

// Select returns the chosen member or a NO_AVAILABLE_ASSIGNEE error.
func (s *AssignmentSelector) Select(ctx context.Context, groupID int64, role domain.Role) (*domain.GroupMember, error) {
	member, err := s.pick(ctx, groupID, role)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperrors.NewNoAvailableAssignee(map[string]any{"group_id": groupID, "role": role})
	}
	return member, nil
}

// pick returns nil without error when no member qualifies.
func (s *AssignmentSelector) pick(ctx context.Context, groupID int64, role domain.Role) (*domain.GroupMember, error) {
	status := domain.MemberStatusActive
	candidates, err := s.members.List(ctx, repository.MemberFilter{
		GroupIDs: []int64{groupID},
		Role:     &role,
		Status:   &status,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	load, err := s.states.CountActiveByMembers(ctx, ids)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if load[c.ID] < load[best.ID] || (load[c.ID] == load[best.ID] && c.ID < best.ID) {
			best = c
		}
	}
	return &best, nil
}
