package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/repository/memory"
)

type ticketCall struct {
	Kind     string
	TicketID string
	UserID   string
	Level    domain.SupportLevel
	Status   string
	From, To domain.SupportLevel
	Reason   string
}

type fakeTickets struct {
	mu    sync.Mutex
	calls []ticketCall
	fail  bool
}

var errTicketServiceDown = errors.New("ticket service unavailable")

func (f *fakeTickets) record(c ticketCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errTicketServiceDown
	}
	f.calls = append(f.calls, c)
	return nil
}

func (f *fakeTickets) AssignTicket(_ context.Context, ticketID, userID string, level domain.SupportLevel) error {
	return f.record(ticketCall{Kind: "assign", TicketID: ticketID, UserID: userID, Level: level})
}

func (f *fakeTickets) UpdateStatus(_ context.Context, ticketID, status string) error {
	return f.record(ticketCall{Kind: "status", TicketID: ticketID, Status: status})
}

func (f *fakeTickets) RecordEscalation(_ context.Context, ticketID string, from, to domain.SupportLevel, reason string) error {
	return f.record(ticketCall{Kind: "escalation", TicketID: ticketID, From: from, To: to, Reason: reason})
}

func (f *fakeTickets) Calls() []ticketCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ticketCall{}, f.calls...)
}

func (f *fakeTickets) SetFailing(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

type fakeIdentity struct {
	roles map[string]domain.Role
	err   error
}

func (f *fakeIdentity) GetUserRole(_ context.Context, userID string) (domain.Role, error) {
	if f.err != nil {
		return "", f.err
	}
	role, ok := f.roles[userID]
	if !ok {
		return "", errors.New("unknown user")
	}
	return role, nil
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    repository.Store
	tickets  *fakeTickets
	identity *fakeIdentity
	queue    outbox.Queue
	metrics  *observability.Metrics
	events   []events.Event
	svc      *Services
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		store:    memory.NewStore(),
		tickets:  &fakeTickets{},
		identity: &fakeIdentity{roles: map[string]domain.Role{}},
		queue:    outbox.NewMemoryQueue(),
		metrics:  observability.NewMetrics(),
	}
	dispatcher := events.NewInMemoryDispatcher()
	var mu sync.Mutex
	events.SubscribeAll(dispatcher, func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		h.events = append(h.events, e)
		return nil
	})
	h.svc = New(Dependencies{
		Store:      h.store,
		Tickets:    h.tickets,
		Identity:   h.identity,
		Outbox:     h.queue,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Logger:     zap.NewNop(),
	})
	return h
}

func (h *harness) group(name, building string, floor int) *domain.SupportGroup {
	h.t.Helper()
	g, err := h.svc.Directory.CreateGroup(h.ctx, CreateGroupInput{Name: name, Building: building, Floor: floor})
	require.NoError(h.t, err)
	return g
}

func (h *harness) member(groupID int64, userID string, role domain.Role) *domain.GroupMember {
	h.t.Helper()
	m, err := h.svc.Directory.AddMember(h.ctx, AddMemberInput{UserID: userID, GroupID: groupID, Role: role})
	require.NoError(h.t, err)
	return m
}

func (h *harness) rule(source, target int64, trigger domain.EscalationTrigger, priority int) *domain.EscalationRule {
	h.t.Helper()
	r, err := h.svc.Directory.CreateRule(h.ctx, CreateRuleInput{
		SourceGroupID: source,
		TargetGroupID: target,
		Trigger:       trigger,
		Priority:      priority,
	})
	require.NoError(h.t, err)
	return r
}

func (h *harness) trail(ticketID string) []domain.WorkflowLog {
	h.t.Helper()
	entries, err := h.svc.Audit.AuditTrail(h.ctx, ticketID)
	require.NoError(h.t, err)
	return entries
}

func actions(entries []domain.WorkflowLog) []domain.WorkflowAction {
	out := make([]domain.WorkflowAction, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}
