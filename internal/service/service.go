package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// TicketNotifier is the ticket content service as seen by workflow transitions.
type TicketNotifier interface {
	AssignTicket(ctx context.Context, ticketID, userID string, level domain.SupportLevel) error
	UpdateStatus(ctx context.Context, ticketID, status string) error
	RecordEscalation(ctx context.Context, ticketID string, from, to domain.SupportLevel, reason string) error
}

// RoleResolver looks up the organisational role of a user.
type RoleResolver interface {
	GetUserRole(ctx context.Context, userID string) (domain.Role, error)
}

// Dependencies bundles collaborators shared by the workflow services.
type Dependencies struct {
	Store      repository.Store
	Tickets    TicketNotifier
	Identity   RoleResolver
	Outbox     outbox.Queue
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Policy overrides domain.DefaultAuthorityPolicy when set.
	Policy *domain.AuthorityPolicy
}

// Services is the full set of workflow services built from one Dependencies value.
type Services struct {
	Selector     *AssignmentSelector
	Routing      *RoutingService
	Claims       *ClaimService
	Reassignment *ReassignmentService
	Escalation   *EscalationService
	Audit        *AuditService
	Directory    *DirectoryService
}

// New wires every workflow service.
func New(deps Dependencies) *Services {
	b := newBase(deps)
	return &Services{
		Selector:     b.selector,
		Routing:      &RoutingService{base: b},
		Claims:       &ClaimService{base: b},
		Reassignment: &ReassignmentService{base: b},
		Escalation:   &EscalationService{base: b},
		Audit:        b.audit,
		Directory:    &DirectoryService{store: deps.Store, logger: b.logger},
	}
}

// TransitionResult is returned by every state-changing workflow operation.
type TransitionResult struct {
	State     *domain.RoutingState
	Group     *domain.SupportGroup
	FromGroup *domain.SupportGroup
	Assignee  *domain.GroupMember
	Rule      *domain.EscalationRule
	Trigger   domain.EscalationTrigger
	// SyncPending is true when the ticket service has not acknowledged the transition.
	SyncPending bool
	Warning     string
	// Skipped is set by conditional escalations whose condition did not hold.
	Skipped bool
	Message string
}

const syncPendingWarning = "ticket service not updated; change queued for reconciliation"

type base struct {
	store      repository.Store
	tickets    TicketNotifier
	identity   RoleResolver
	outbox     outbox.Queue
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	policy     domain.AuthorityPolicy
	selector   *AssignmentSelector
	audit      *AuditService
}

func newBase(deps Dependencies) *base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := domain.DefaultAuthorityPolicy()
	if deps.Policy != nil {
		policy = *deps.Policy
	}
	return &base{
		store:      deps.Store,
		tickets:    deps.Tickets,
		identity:   deps.Identity,
		outbox:     deps.Outbox,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		policy:     policy,
		selector:   NewAssignmentSelector(deps.Store.Members, deps.Store.States),
		audit:      NewAuditService(deps.Store.Logs, deps.Metrics, logger),
	}
}

// sync delivers calls in order. The first failure and everything after it is
// queued, and the state is flagged for reconciliation. While a ticket is
// already flagged its earlier calls are still queued, so new calls go behind
// them instead of reaching the ticket service first.
func (b *base) sync(ctx context.Context, state *domain.RoutingState, calls ...outbox.Notification) bool {
	if b.tickets == nil || len(calls) == 0 {
		return false
	}
	var pending []outbox.Notification
	if state.SyncPending {
		pending = calls
		b.logger.Info("ticket has queued notifications; deferring",
			zap.String("ticket_id", state.TicketID),
			zap.Int("calls", len(calls)))
	} else {
		for i, call := range calls {
			if err := Deliver(ctx, b.tickets, call); err != nil {
				b.logger.Warn("ticket service notification failed",
					zap.String("ticket_id", state.TicketID),
					zap.String("kind", string(call.Kind)),
					zap.Error(err))
				pending = calls[i:]
				break
			}
		}
		if len(pending) == 0 {
			return false
		}
		b.metrics.Inc(observability.CounterNotifyFailures)
	}

	if b.outbox != nil {
		for _, call := range pending {
			if err := b.outbox.Enqueue(ctx, call); err != nil {
				b.logger.Error("outbox enqueue failed",
					zap.String("ticket_id", state.TicketID),
					zap.String("kind", string(call.Kind)),
					zap.Error(err))
			}
		}
	}
	if err := b.store.States.SetSyncPending(ctx, state.TicketID, true); err != nil {
		b.logger.Error("mark sync pending failed", zap.String("ticket_id", state.TicketID), zap.Error(err))
	}
	state.SyncPending = true
	return true
}

func (b *base) publish(ctx context.Context, eventType events.EventType, ticketID, actorID string, payload events.TransitionPayload) {
	if b.dispatcher == nil {
		return
	}
	event := events.NewEvent(eventType, ticketID, events.ActorFor(actorID), payload)
	if err := b.dispatcher.Publish(ctx, event); err != nil {
		b.metrics.Inc(observability.CounterEventPublishFailure)
		b.logger.Warn("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}

func (b *base) finish(action domain.WorkflowAction, result *TransitionResult) *TransitionResult {
	outcome := "ok"
	if result.SyncPending {
		outcome = "sync_pending"
		result.Warning = syncPendingWarning
	}
	b.metrics.RecordTransition(string(action), outcome)
	return result
}

// resolveRole returns role when set, otherwise asks the identity service.
func (b *base) resolveRole(ctx context.Context, actorID string, role domain.Role) (domain.Role, error) {
	if role != "" {
		if _, err := domain.ParseRole(string(role)); err != nil {
			return "", apperrors.NewValidationError("unknown actor role", map[string]any{"role": role})
		}
		return role, nil
	}
	if actorID == "" || b.identity == nil {
		return "", apperrors.NewValidationError("actor role required", nil)
	}
	resolved, err := b.identity.GetUserRole(ctx, actorID)
	if err != nil {
		return "", apperrors.NewUpstreamFailure("identity-service", err)
	}
	return resolved, nil
}

func (b *base) group(ctx context.Context, id int64) (*domain.SupportGroup, error) {
	group, err := b.store.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "support group", map[string]any{"group_id": id})
	}
	return group, nil
}

func (b *base) state(ctx context.Context, ticketID string) (*domain.RoutingState, error) {
	state, err := b.store.States.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoErr(err, "routing state", map[string]any{"ticket_id": ticketID})
	}
	return state, nil
}

// Deliver performs one ticket-service call described by n.
func Deliver(ctx context.Context, tickets TicketNotifier, n outbox.Notification) error {
	switch n.Kind {
	case outbox.KindAssign:
		return tickets.AssignTicket(ctx, n.TicketID, n.UserID, n.Level)
	case outbox.KindStatus:
		return tickets.UpdateStatus(ctx, n.TicketID, n.Status)
	case outbox.KindEscalation:
		return tickets.RecordEscalation(ctx, n.TicketID, n.FromLevel, n.ToLevel, n.Reason)
	}
	return errors.New("unknown notification kind " + string(n.Kind))
}

func mapRepoErr(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(resource+" changed concurrently", details)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewInternalError(err)
}

func ptr[T any](v T) *T {
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
