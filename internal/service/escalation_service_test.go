package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/observability"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

type ladder struct {
	l1, l2, l3 *domain.SupportGroup
	junior     *domain.GroupMember
	senior     *domain.GroupMember
	supervisor *domain.GroupMember
}

func newLadder(t *testing.T, h *harness) ladder {
	t.Helper()
	l := ladder{
		l1: h.group("HQ juniors", "HQ", 1),
		l2: h.group("HQ seniors", "HQ", 2),
		l3: h.group("HQ supervisors", "HQ", 3),
	}
	l.junior = h.member(l.l1.ID, "j-1", domain.RoleJunior)
	l.senior = h.member(l.l2.ID, "s-1", domain.RoleSenior)
	l.supervisor = h.member(l.l3.ID, "sup-1", domain.RoleSupervisor)
	h.rule(l.l1.ID, l.l2.ID, domain.TriggerManual, 1)
	h.rule(l.l2.ID, l.l3.ID, domain.TriggerManual, 2)
	_, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	require.NoError(t, err)
	return l
}

func TestManualEscalationRoundTrip(t *testing.T) {
	h := newHarness(t)
	l := newLadder(t, h)

	res, err := h.svc.Escalation.Escalate(h.ctx, EscalateInput{
		TicketID:  "T-1",
		Trigger:   domain.TriggerManual,
		ActorID:   "s-1",
		ActorRole: domain.RoleSenior,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoutingStatusEscalated, res.State.Status)
	assert.Equal(t, l.l2.ID, res.State.CurrentGroupID)
	assert.Equal(t, l.senior.ID, *res.State.AssignedMemberID)
	assert.Equal(t, 1, res.State.EscalationCount)
	assert.NotNil(t, res.State.LastEscalatedAt)

	calls := h.tickets.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "escalation", calls[1].Kind)
	assert.Equal(t, domain.LevelL1, calls[1].From)
	assert.Equal(t, domain.LevelL2, calls[1].To)
	assert.Equal(t, ticketCall{Kind: "assign", TicketID: "T-1", UserID: "s-1", Level: domain.LevelL2}, calls[2])

	trail := h.trail("T-1")
	assert.Equal(t, []domain.WorkflowAction{domain.ActionRouted, domain.ActionEscalated}, actions(trail))
	assert.Equal(t, l.senior.ID, *trail[1].ToMemberID)
	assert.Equal(t, l.junior.ID, *trail[1].FromMemberID)
}

func TestEscalationCountsEachStep(t *testing.T) {
	h := newHarness(t)
	l := newLadder(t, h)

	for _, actor := range []string{"s-1", "s-1"} {
		_, err := h.svc.Escalation.Escalate(h.ctx, EscalateInput{
			TicketID:  "T-1",
			Trigger:   domain.TriggerManual,
			ActorID:   actor,
			ActorRole: domain.RoleSenior,
		})
		require.NoError(t, err)
	}

	state := mustState(t, h, "T-1")
	assert.Equal(t, 2, state.EscalationCount)
	assert.Equal(t, l.l3.ID, state.CurrentGroupID)
	assert.Equal(t, l.supervisor.ID, *state.AssignedMemberID)

	history, err := h.svc.Escalation.EscalationHistory(h.ctx, "T-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	calls := h.tickets.Calls()
	last := calls[len(calls)-2]
	assert.Equal(t, domain.LevelL2, last.From)
	assert.Equal(t, domain.LevelL3, last.To)
}

func TestEscalationWithoutRuleLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	l := newLadder(t, h)
	before := mustState(t, h, "T-1")

	_, err := h.svc.Escalation.Escalate(h.ctx, EscalateInput{TicketID: "T-1", Trigger: domain.TriggerSLA})
	assert.Equal(t, apperrors.CodeNoEscalationRule, apperrors.CodeOf(err))

	after := mustState(t, h, "T-1")
	assert.Equal(t, before, after)
	assert.Equal(t, l.l1.ID, after.CurrentGroupID)
	assert.Len(t, h.trail("T-1"), 1)
}

func TestManualEscalationRequiresSenior(t *testing.T) {
	h := newHarness(t)
	newLadder(t, h)

	_, err := h.svc.Escalation.Escalate(h.ctx, EscalateInput{
		TicketID:  "T-1",
		Trigger:   domain.TriggerManual,
		ActorID:   "j-1",
		ActorRole: domain.RoleJunior,
	})
	assert.Equal(t, apperrors.CodeInsufficientAuthority, apperrors.CodeOf(err))

	h.identity.roles["boss"] = domain.RoleHeadOfIT
	_, err = h.svc.Escalation.Escalate(h.ctx, EscalateInput{TicketID: "T-1", Trigger: domain.TriggerManual, ActorID: "boss"})
	assert.NoError(t, err)
}

func TestEscalationWithoutAssigneeLeavesMemberEmpty(t *testing.T) {
	h := newHarness(t)
	l := newLadder(t, h)
	_, err := h.svc.Directory.UpdateMemberStatus(h.ctx, l.senior.ID, domain.MemberStatusInactive)
	require.NoError(t, err)

	res, err := h.svc.Escalation.Escalate(h.ctx, EscalateInput{
		TicketID:  "T-1",
		Trigger:   domain.TriggerManual,
		ActorRole: domain.RoleSupervisor,
	})
	require.NoError(t, err)

	assert.Nil(t, res.Assignee)
	assert.Nil(t, res.State.AssignedMemberID)
	assert.Equal(t, domain.RoutingStatusEscalated, res.State.Status)
	calls := h.tickets.Calls()
	assert.Equal(t, "escalation", calls[len(calls)-1].Kind)
}

func TestConditionalEscalations(t *testing.T) {
	h := newHarness(t)
	l := newLadder(t, h)
	h.rule(l.l1.ID, l.l3.ID, domain.TriggerCritical, 2)
	h.rule(l.l3.ID, l.l2.ID, domain.TriggerReopenCount, 1)

	skipped, err := h.svc.Escalation.EscalateIfCritical(h.ctx, "T-1", false)
	require.NoError(t, err)
	assert.True(t, skipped.Skipped)

	res, err := h.svc.Escalation.EscalateIfCritical(h.ctx, "T-1", true)
	require.NoError(t, err)
	assert.Equal(t, l.l3.ID, res.State.CurrentGroupID)
	assert.Equal(t, l.supervisor.ID, *res.State.AssignedMemberID)

	below, err := h.svc.Escalation.EscalateOnReopenCount(h.ctx, "T-1", 2)
	require.NoError(t, err)
	assert.True(t, below.Skipped)

	res, err = h.svc.Escalation.EscalateOnReopenCount(h.ctx, "T-1", domain.DefaultReopenThreshold)
	require.NoError(t, err)
	assert.Equal(t, l.l2.ID, res.State.CurrentGroupID)
	assert.Equal(t, 2, res.State.EscalationCount)

	_, err = h.svc.Escalation.EscalateOnSLABreach(h.ctx, "T-1", true)
	assert.Equal(t, apperrors.CodeNoEscalationRule, apperrors.CodeOf(err))
}

func TestEscalationNotifyFailureKeepsTransition(t *testing.T) {
	h := newHarness(t)
	l := newLadder(t, h)
	h.tickets.SetFailing(true)

	res, err := h.svc.Escalation.Escalate(h.ctx, EscalateInput{
		TicketID:  "T-1",
		Trigger:   domain.TriggerManual,
		ActorRole: domain.RoleSenior,
	})
	require.NoError(t, err)

	assert.True(t, res.SyncPending)
	state := mustState(t, h, "T-1")
	assert.Equal(t, l.l2.ID, state.CurrentGroupID)
	assert.True(t, state.SyncPending)

	queued, err := h.queue.Len(h.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, queued)
	assert.EqualValues(t, 1, h.metrics.Count(observability.CounterNotifyFailures))
}

func TestEscalationPath(t *testing.T) {
	h := newHarness(t)
	l := newLadder(t, h)

	path, err := h.svc.Escalation.EscalationPath(h.ctx, l.l1.ID)
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, l.l2.ID, path[0].TargetGroupID)

	_, err = h.svc.Escalation.EscalationPath(h.ctx, 999)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestEscalationCountIgnoresReassignments(t *testing.T) {
	h := newHarness(t)
	l := newLadder(t, h)
	escalate := func() {
		_, err := h.svc.Escalation.Escalate(h.ctx, EscalateInput{
			TicketID:  "T-1",
			Trigger:   domain.TriggerManual,
			ActorRole: domain.RoleSupervisor,
		})
		require.NoError(t, err)
	}

	escalate()
	_, err := h.svc.Reassignment.Reassign(h.ctx, ReassignInput{
		TicketID:       "T-1",
		ActorID:        "sup-1",
		ActorRole:      domain.RoleSupervisor,
		TargetMemberID: l.junior.ID,
	})
	require.NoError(t, err)
	back := mustState(t, h, "T-1")
	assert.Equal(t, l.l1.ID, back.CurrentGroupID)
	assert.Equal(t, 1, back.EscalationCount)

	escalate()
	state := mustState(t, h, "T-1")
	assert.Equal(t, 2, state.EscalationCount)
	assert.Equal(t, l.l2.ID, state.CurrentGroupID)
	assert.Equal(t, []domain.WorkflowAction{
		domain.ActionRouted, domain.ActionEscalated, domain.ActionReassigned, domain.ActionEscalated,
	}, actions(h.trail("T-1")))
}

func TestConcurrentEscalationsApplyOnce(t *testing.T) {
	h := newHarness(t)
	l1 := h.group("HQ juniors", "HQ", 1)
	l2 := h.group("HQ seniors", "HQ", 2)
	h.member(l1.ID, "j-1", domain.RoleJunior)
	h.member(l2.ID, "s-1", domain.RoleSenior)
	h.rule(l1.ID, l2.ID, domain.TriggerSLA, 1)
	_, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	require.NoError(t, err)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Escalation.EscalateOnSLABreach(h.ctx, "T-1", true)
			mu.Lock()
			defer mu.Unlock()
			switch apperrors.CodeOf(err) {
			case "":
				winners++
			// A caller that read the old group loses the guard; one that read
			// the new group finds no rule out of it.
			case apperrors.CodeConflict, apperrors.CodeNoEscalationRule:
				losers++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, n-1, losers)
	state := mustState(t, h, "T-1")
	assert.Equal(t, 1, state.EscalationCount)
	assert.Equal(t, l2.ID, state.CurrentGroupID)

	history, err := h.svc.Escalation.EscalationHistory(h.ctx, "T-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTransitionsQueueBehindPendingNotifications(t *testing.T) {
	h := newHarness(t)
	l1 := h.group("HQ juniors", "HQ", 1)
	l2 := h.group("HQ seniors", "HQ", 2)
	h.member(l1.ID, "j-1", domain.RoleJunior)
	senior := h.member(l2.ID, "s-1", domain.RoleSenior)
	h.rule(l1.ID, l2.ID, domain.TriggerSLA, 1)

	h.tickets.SetFailing(true)
	_, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	require.NoError(t, err)
	h.tickets.SetFailing(false)

	res, err := h.svc.Escalation.EscalateOnSLABreach(h.ctx, "T-1", true)
	require.NoError(t, err)
	assert.True(t, res.SyncPending)
	assert.Equal(t, senior.ID, *res.State.AssignedMemberID)
	assert.Empty(t, h.tickets.Calls())
	assert.EqualValues(t, 1, h.metrics.Count(observability.CounterNotifyFailures))

	queued, err := h.queue.Pending(h.ctx, "T-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, queued)

	for {
		n, err := h.queue.Dequeue(h.ctx)
		require.NoError(t, err)
		if n == nil {
			break
		}
		require.NoError(t, Deliver(h.ctx, h.tickets, *n))
	}
	calls := h.tickets.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, ticketCall{Kind: "assign", TicketID: "T-1", UserID: "j-1", Level: domain.LevelL1}, calls[0])
	assert.Equal(t, "escalation", calls[1].Kind)
	assert.Equal(t, ticketCall{Kind: "assign", TicketID: "T-1", UserID: "s-1", Level: domain.LevelL2}, calls[2])
}
