package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// EscalationService moves tickets up the group hierarchy following escalation rules.
type EscalationService struct {
	*base
}

// EscalateInput describes an escalation request. Actor fields are optional for
// automatic triggers.
type EscalateInput struct {
	TicketID  string
	Trigger   domain.EscalationTrigger
	ActorID   string
	ActorRole domain.Role
	Reason    string
}

// Escalate applies the highest-priority active rule for the ticket's group and trigger.
// A concurrent escalation of the same observed state yields CONFLICT.
func (s *EscalationService) Escalate(ctx context.Context, input EscalateInput) (*TransitionResult, error) {
	if input.TicketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	if _, err := domain.ParseTrigger(string(input.Trigger)); err != nil {
		return nil, apperrors.NewValidationError("unknown escalation trigger", map[string]any{"trigger": input.Trigger})
	}
	if !input.Trigger.Automatic() {
		role, err := s.resolveRole(ctx, input.ActorID, input.ActorRole)
		if err != nil {
			return nil, err
		}
		if !s.policy.CanEscalateManually(role) {
			return nil, apperrors.NewInsufficientAuthority("role cannot escalate tickets", map[string]any{"role": role})
		}
	}

	state, err := s.state(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}
	rule, err := s.rule(ctx, state.CurrentGroupID, input.Trigger)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, state, rule, input)
}

// EscalateIfCritical escalates with the CRITICAL trigger when isCritical holds.
func (s *EscalationService) EscalateIfCritical(ctx context.Context, ticketID string, isCritical bool) (*TransitionResult, error) {
	if !isCritical {
		return &TransitionResult{Skipped: true, Message: "ticket is not critical"}, nil
	}
	return s.Escalate(ctx, EscalateInput{TicketID: ticketID, Trigger: domain.TriggerCritical})
}

// EscalateOnSLABreach escalates with the SLA trigger when breached holds.
func (s *EscalationService) EscalateOnSLABreach(ctx context.Context, ticketID string, breached bool) (*TransitionResult, error) {
	if !breached {
		return &TransitionResult{Skipped: true, Message: "SLA not breached"}, nil
	}
	return s.Escalate(ctx, EscalateInput{TicketID: ticketID, Trigger: domain.TriggerSLA})
}

// EscalateOnReopenCount escalates once reopenCount reaches the REOPEN_COUNT rule's threshold.
func (s *EscalationService) EscalateOnReopenCount(ctx context.Context, ticketID string, reopenCount int) (*TransitionResult, error) {
	state, err := s.state(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	rule, err := s.rule(ctx, state.CurrentGroupID, domain.TriggerReopenCount)
	if err != nil {
		return nil, err
	}
	if reopenCount < rule.Threshold() {
		return &TransitionResult{
			State:   state,
			Rule:    rule,
			Skipped: true,
			Message: fmt.Sprintf("reopen count %d below threshold %d", reopenCount, rule.Threshold()),
		}, nil
	}
	return s.apply(ctx, state, rule, EscalateInput{
		TicketID: ticketID,
		Trigger:  domain.TriggerReopenCount,
		Reason:   fmt.Sprintf("Reopened %d times", reopenCount),
	})
}

// EscalationPath lists the active rules leaving a group, highest priority first.
func (s *EscalationService) EscalationPath(ctx context.Context, groupID int64) ([]domain.EscalationRule, error) {
	if _, err := s.group(ctx, groupID); err != nil {
		return nil, err
	}
	rules, err := s.store.Rules.ListBySource(ctx, groupID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return rules, nil
}

// EscalationHistory returns the ESCALATED log entries of a ticket, oldest first.
func (s *EscalationService) EscalationHistory(ctx context.Context, ticketID string) ([]domain.WorkflowLog, error) {
	entries, err := s.store.Logs.ListByTicket(ctx, ticketID, domain.ActionEscalated)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

func (s *EscalationService) rule(ctx context.Context, groupID int64, trigger domain.EscalationTrigger) (*domain.EscalationRule, error) {
	rule, err := s.store.Rules.GetActiveByTrigger(ctx, groupID, trigger)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNoEscalationRule(map[string]any{"group_id": groupID, "trigger": trigger})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return rule, nil
}

func (s *EscalationService) apply(ctx context.Context, state *domain.RoutingState, rule *domain.EscalationRule, input EscalateInput) (*TransitionResult, error) {
	if _, ok := domain.NextStatus(state.Status, domain.EventEscalate); !ok {
		return nil, apperrors.NewConflict("ticket cannot be escalated", map[string]any{"status": state.Status})
	}
	fromGroup, err := s.group(ctx, state.CurrentGroupID)
	if err != nil {
		return nil, err
	}
	target, err := s.group(ctx, rule.TargetGroupID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.selector.pick(ctx, target.ID, rule.TargetRole())
	if err != nil {
		return nil, err
	}
	fromLevel, err := s.currentLevel(ctx, state)
	if err != nil {
		return nil, err
	}

	var assigneeID *int64
	if assignee != nil {
		assigneeID = &assignee.ID
	}
	previousMember := state.AssignedMemberID
	updated, err := s.store.States.Escalate(ctx, state.TicketID, state.Guard(), target.ID, assigneeID)
	if err != nil {
		return nil, mapRepoErr(err, "routing state", map[string]any{"ticket_id": state.TicketID})
	}

	reason := input.Reason
	if reason == "" {
		reason = fmt.Sprintf("Escalated (%s) from %s to %s", input.Trigger, fromGroup.Name, target.Name)
	}
	calls := []outbox.Notification{{
		Kind:      outbox.KindEscalation,
		TicketID:  state.TicketID,
		FromLevel: fromLevel,
		ToLevel:   rule.TargetRole().Level(),
		Reason:    reason,
	}}
	if assignee != nil {
		calls = append(calls, outbox.Notification{
			Kind:     outbox.KindAssign,
			TicketID: state.TicketID,
			UserID:   assignee.UserID,
			Level:    assignee.Role.Level(),
		})
	}
	pending := s.sync(ctx, updated, calls...)

	s.audit.Record(ctx, &domain.WorkflowLog{
		TicketID:     state.TicketID,
		Action:       domain.ActionEscalated,
		FromGroupID:  &fromGroup.ID,
		ToGroupID:    &target.ID,
		FromMemberID: previousMember,
		ToMemberID:   assigneeID,
		PerformedBy:  optionalString(input.ActorID),
		Reason:       reason,
	})
	s.publish(ctx, events.EventTicketEscalated, state.TicketID, input.ActorID, events.TransitionPayload{
		Status:          updated.Status,
		FromGroupID:     &fromGroup.ID,
		ToGroupID:       target.ID,
		FromMemberID:    previousMember,
		ToMemberID:      assigneeID,
		EscalationCount: updated.EscalationCount,
		Trigger:         string(input.Trigger),
		Reason:          reason,
		SyncPending:     pending,
	})

	return s.finish(domain.ActionEscalated, &TransitionResult{
		State:       updated,
		Group:       target,
		FromGroup:   fromGroup,
		Assignee:    assignee,
		Rule:        rule,
		Trigger:     input.Trigger,
		SyncPending: pending,
	}), nil
}

// currentLevel is the support level of the present assignee, L1 when there is none.
func (s *EscalationService) currentLevel(ctx context.Context, state *domain.RoutingState) (domain.SupportLevel, error) {
	if state.AssignedMemberID == nil {
		return domain.LevelL1, nil
	}
	member, err := s.store.Members.GetByID(ctx, *state.AssignedMemberID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.LevelL1, nil
	}
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return member.Role.Level(), nil
}
