package service

import (
	"context"
	"errors"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// ClaimService lets juniors take unassigned tickets from their group's queue.
type ClaimService struct {
	*base
}

// ClaimStatus reports whether a ticket has left the unassigned queue.
type ClaimStatus struct {
	TicketID         string
	Claimed          bool
	Status           domain.RoutingStatus
	AssignedMemberID *int64
}

// Claim assigns an UNASSIGNED ticket to the calling junior. Exactly one of
// several concurrent claimants succeeds; the others get ALREADY_CLAIMED.
func (s *ClaimService) Claim(ctx context.Context, ticketID, userID string) (*TransitionResult, error) {
	if ticketID == "" || userID == "" {
		return nil, apperrors.NewValidationError("ticket id and user id required", nil)
	}
	state, err := s.state(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	member, err := s.store.Members.GetByUserAndGroup(ctx, userID, state.CurrentGroupID)
	if err != nil {
		return nil, mapRepoErr(err, "group member", map[string]any{"user_id": userID, "group_id": state.CurrentGroupID})
	}
	if !member.Assignable() {
		return nil, apperrors.NewInsufficientAuthority("member is not active", map[string]any{"status": member.Status})
	}
	if !s.policy.CanClaim(member.Role) {
		return nil, apperrors.NewInsufficientAuthority("only juniors can claim tickets", map[string]any{"role": member.Role})
	}

	claimed, err := s.store.States.Claim(ctx, ticketID, member.ID)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return nil, apperrors.NewAlreadyClaimed(ticketID)
	case err != nil:
		return nil, mapRepoErr(err, "routing state", map[string]any{"ticket_id": ticketID})
	}

	pending := s.sync(ctx, claimed, outbox.Notification{
		Kind:     outbox.KindAssign,
		TicketID: ticketID,
		UserID:   userID,
		Level:    domain.LevelL1,
	})

	s.audit.Record(ctx, &domain.WorkflowLog{
		TicketID:    ticketID,
		Action:      domain.ActionClaimed,
		ToGroupID:   &claimed.CurrentGroupID,
		ToMemberID:  &member.ID,
		PerformedBy: &userID,
		Reason:      "Claimed by user " + userID,
	})
	s.publish(ctx, events.EventTicketClaimed, ticketID, userID, events.TransitionPayload{
		Status:      claimed.Status,
		ToGroupID:   claimed.CurrentGroupID,
		ToMemberID:  &member.ID,
		SyncPending: pending,
	})

	return s.finish(domain.ActionClaimed, &TransitionResult{
		State:       claimed,
		Assignee:    member,
		SyncPending: pending,
	}), nil
}

// ClaimStatus reports the claim state of a ticket. Unknown tickets are unclaimed.
func (s *ClaimService) ClaimStatus(ctx context.Context, ticketID string) (*ClaimStatus, error) {
	state, err := s.store.States.GetByTicketID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return &ClaimStatus{TicketID: ticketID}, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &ClaimStatus{
		TicketID:         ticketID,
		Claimed:          state.Claimed(),
		Status:           state.Status,
		AssignedMemberID: state.AssignedMemberID,
	}, nil
}

// Unclaimed lists the UNASSIGNED tickets waiting in a group.
func (s *ClaimService) Unclaimed(ctx context.Context, groupID int64) ([]domain.RoutingState, error) {
	if _, err := s.group(ctx, groupID); err != nil {
		return nil, err
	}
	states, err := s.store.States.ListByGroup(ctx, groupID, domain.RoutingStatusUnassigned)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return states, nil
}
