package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

func TestRouteAssignsLeastLoadedJunior(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 1", "HQ", 1)
	busy := h.member(g.ID, "u-busy", domain.RoleJunior)
	idle := h.member(g.ID, "u-idle", domain.RoleJunior)
	h.member(g.ID, "u-senior", domain.RoleSenior)

	_, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-0", Building: "HQ", Floor: 1})
	require.NoError(t, err)

	res, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1, Priority: "HIGH"})
	require.NoError(t, err)

	assert.Equal(t, busy.ID, *mustState(t, h, "T-0").AssignedMemberID)
	require.NotNil(t, res.Assignee)
	assert.Equal(t, idle.ID, res.Assignee.ID)
	assert.Equal(t, domain.RoutingStatusAssigned, res.State.Status)
	assert.NotNil(t, res.State.ClaimedAt)
	assert.False(t, res.SyncPending)

	calls := h.tickets.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ticketCall{Kind: "assign", TicketID: "T-1", UserID: "u-idle", Level: domain.LevelL1}, calls[1])

	trail := h.trail("T-1")
	require.Len(t, trail, 1)
	assert.Equal(t, domain.ActionRouted, trail[0].Action)
	assert.Contains(t, trail[0].Reason, "priority: HIGH")
	assert.Equal(t, idle.ID, *trail[0].ToMemberID)

	require.NotEmpty(t, h.events)
	assert.Equal(t, events.EventTicketRouted, h.events[len(h.events)-1].Type)
}

func TestRouteUnknownLocation(t *testing.T) {
	h := newHarness(t)
	h.group("HQ floor 1", "HQ", 1)

	_, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 9})
	assert.Equal(t, apperrors.CodeGroupNotFound, apperrors.CodeOf(err))
}

func TestRouteWithoutJuniorCreatesNoState(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 1", "HQ", 1)
	h.member(g.ID, "u-senior", domain.RoleSenior)
	onLeave := h.member(g.ID, "u-away", domain.RoleJunior)
	_, err := h.svc.Directory.UpdateMemberStatus(h.ctx, onLeave.ID, domain.MemberStatusOnLeave)
	require.NoError(t, err)

	_, err = h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	assert.Equal(t, apperrors.CodeNoAvailableAssignee, apperrors.CodeOf(err))

	_, err = h.store.States.GetByTicketID(h.ctx, "T-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, h.trail("T-1"))
	assert.Empty(t, h.tickets.Calls())
}

func TestRouteTwiceConflicts(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 1", "HQ", 1)
	h.member(g.ID, "u1", domain.RoleJunior)

	_, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	require.NoError(t, err)
	_, err = h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
}

func TestRouteValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Routing.Route(h.ctx, RouteInput{Building: "HQ"})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestRouteNotifyFailureFlagsSyncPending(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 1", "HQ", 1)
	h.member(g.ID, "u1", domain.RoleJunior)
	h.tickets.SetFailing(true)

	res, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	require.NoError(t, err)

	assert.True(t, res.SyncPending)
	assert.NotEmpty(t, res.Warning)
	assert.True(t, mustState(t, h, "T-1").SyncPending)
	assert.EqualValues(t, 1, h.metrics.Count(observability.CounterNotifyFailures))

	queued, err := h.queue.Len(h.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, queued)
	assert.Equal(t, []domain.WorkflowAction{domain.ActionRouted}, actions(h.trail("T-1")))
}

func TestOpenCreatesUnassignedState(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 2", "HQ", 2)

	res, err := h.svc.Routing.Open(h.ctx, OpenInput{TicketID: "T-1", Building: "HQ", Floor: 2})
	require.NoError(t, err)

	assert.Equal(t, domain.RoutingStatusUnassigned, res.State.Status)
	assert.Nil(t, res.State.AssignedMemberID)
	assert.Equal(t, g.ID, res.State.CurrentGroupID)
	assert.Empty(t, h.tickets.Calls())
	assert.Equal(t, []domain.WorkflowAction{domain.ActionCreated}, actions(h.trail("T-1")))

	queue, err := h.svc.Routing.GetGroupQueue(h.ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestReadsDoNotMutate(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 1", "HQ", 1)
	h.member(g.ID, "u1", domain.RoleJunior)
	_, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	require.NoError(t, err)

	first, err := h.svc.Routing.GetRoutingState(h.ctx, "T-1")
	require.NoError(t, err)
	second, err := h.svc.Routing.GetRoutingState(h.ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	history, err := h.svc.Escalation.EscalationHistory(h.ctx, "T-1")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Len(t, h.trail("T-1"), 1)

	_, err = h.svc.Routing.GetRoutingState(h.ctx, "missing")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func mustState(t *testing.T, h *harness, ticketID string) *domain.RoutingState {
	t.Helper()
	state, err := h.store.States.GetByTicketID(h.ctx, ticketID)
	require.NoError(t, err)
	return state
}
