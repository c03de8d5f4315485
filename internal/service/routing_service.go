package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// RoutingService places new tickets into the group covering their location.
type RoutingService struct {
	*base
}

// RouteInput describes an automatic routing request.
type RouteInput struct {
	TicketID    string
	Building    string
	Floor       int
	Priority    string
	PerformedBy string
}

// OpenInput describes a ticket entering the claim queue of its group.
type OpenInput struct {
	TicketID    string
	Building    string
	Floor       int
	PerformedBy string
}

// Route assigns a new ticket to the least-loaded junior of its location's group.
func (s *RoutingService) Route(ctx context.Context, input RouteInput) (*TransitionResult, error) {
	if err := validateLocation(input.TicketID, input.Building); err != nil {
		return nil, err
	}
	status, _ := domain.NextStatus("", domain.EventRoute)
	if err := s.ensureUnrouted(ctx, input.TicketID); err != nil {
		return nil, err
	}
	group, err := s.locate(ctx, input.Building, input.Floor)
	if err != nil {
		return nil, err
	}
	member, err := s.selector.Select(ctx, group.ID, domain.RoleJunior)
	if err != nil {
		return nil, err
	}

	state := &domain.RoutingState{
		TicketID:         input.TicketID,
		CurrentGroupID:   group.ID,
		AssignedMemberID: &member.ID,
		Status:           status,
	}
	if err := s.store.States.Create(ctx, state); err != nil {
		return nil, mapRepoErr(err, "routing state", map[string]any{"ticket_id": input.TicketID})
	}

	pending := s.sync(ctx, state, outbox.Notification{
		Kind:     outbox.KindAssign,
		TicketID: state.TicketID,
		UserID:   member.UserID,
		Level:    domain.LevelL1,
	})

	reason := fmt.Sprintf("Auto-routed to %s and assigned to user %s", group.Name, member.UserID)
	if input.Priority != "" {
		reason += " | priority: " + input.Priority
	}
	s.audit.Record(ctx, &domain.WorkflowLog{
		TicketID:    state.TicketID,
		Action:      domain.ActionRouted,
		ToGroupID:   &group.ID,
		ToMemberID:  &member.ID,
		PerformedBy: optionalString(input.PerformedBy),
		Reason:      reason,
	})
	s.publish(ctx, events.EventTicketRouted, state.TicketID, input.PerformedBy, events.TransitionPayload{
		Status:      state.Status,
		ToGroupID:   group.ID,
		ToMemberID:  &member.ID,
		SyncPending: pending,
	})

	return s.finish(domain.ActionRouted, &TransitionResult{
		State:       state,
		Group:       group,
		Assignee:    member,
		SyncPending: pending,
	}), nil
}

// Open records a ticket as UNASSIGNED in its location's group so a junior can claim it.
func (s *RoutingService) Open(ctx context.Context, input OpenInput) (*TransitionResult, error) {
	if err := validateLocation(input.TicketID, input.Building); err != nil {
		return nil, err
	}
	status, _ := domain.NextStatus("", domain.EventOpen)
	group, err := s.locate(ctx, input.Building, input.Floor)
	if err != nil {
		return nil, err
	}

	state := &domain.RoutingState{
		TicketID:       input.TicketID,
		CurrentGroupID: group.ID,
		Status:         status,
	}
	if err := s.store.States.Create(ctx, state); err != nil {
		return nil, mapRepoErr(err, "routing state", map[string]any{"ticket_id": input.TicketID})
	}

	s.audit.Record(ctx, &domain.WorkflowLog{
		TicketID:    state.TicketID,
		Action:      domain.ActionCreated,
		ToGroupID:   &group.ID,
		PerformedBy: optionalString(input.PerformedBy),
		Reason:      fmt.Sprintf("Opened in %s awaiting claim", group.Name),
	})
	s.publish(ctx, events.EventTicketOpened, state.TicketID, input.PerformedBy, events.TransitionPayload{
		Status:    state.Status,
		ToGroupID: group.ID,
	})

	return s.finish(domain.ActionCreated, &TransitionResult{State: state, Group: group}), nil
}

// GetRoutingState returns the current routing record of a ticket.
func (s *RoutingService) GetRoutingState(ctx context.Context, ticketID string) (*domain.RoutingState, error) {
	return s.state(ctx, ticketID)
}

// GetGroupQueue lists every ticket currently held by a group, most recently changed first.
func (s *RoutingService) GetGroupQueue(ctx context.Context, groupID int64) ([]domain.RoutingState, error) {
	if _, err := s.group(ctx, groupID); err != nil {
		return nil, err
	}
	states, err := s.store.States.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return states, nil
}

func (s *RoutingService) locate(ctx context.Context, building string, floor int) (*domain.SupportGroup, error) {
	group, err := s.store.Groups.GetByLocation(ctx, building, floor)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewGroupNotFound(building, floor)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return group, nil
}

func (s *RoutingService) ensureUnrouted(ctx context.Context, ticketID string) error {
	_, err := s.store.States.GetByTicketID(ctx, ticketID)
	switch {
	case err == nil:
		return apperrors.NewConflict("ticket already routed", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return apperrors.NewInternalError(err)
	}
}

func validateLocation(ticketID, building string) error {
	details := map[string]any{}
	if strings.TrimSpace(ticketID) == "" {
		details["ticket_id"] = "required"
	}
	if strings.TrimSpace(building) == "" {
		details["building"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid routing request", details)
	}
	return nil
}
