package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/upstream"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

type campus struct {
	hq1, hq2, annex *domain.SupportGroup
	hq1Junior       *domain.GroupMember
	hq2Junior       *domain.GroupMember
	annexJunior     *domain.GroupMember
}

func newCampus(t *testing.T, h *harness) campus {
	t.Helper()
	c := campus{
		hq1:   h.group("HQ floor 1", "HQ", 1),
		hq2:   h.group("HQ floor 2", "HQ", 2),
		annex: h.group("Annex floor 1", "ANNEX", 1),
	}
	c.hq1Junior = h.member(c.hq1.ID, "j-hq1", domain.RoleJunior)
	c.hq2Junior = h.member(c.hq2.ID, "j-hq2", domain.RoleJunior)
	c.annexJunior = h.member(c.annex.ID, "j-annex", domain.RoleJunior)
	_, err := h.svc.Routing.Route(h.ctx, RouteInput{TicketID: "T-1", Building: "HQ", Floor: 1})
	require.NoError(t, err)
	return c
}

func TestSeniorReassignsWithinBuilding(t *testing.T) {
	h := newHarness(t)
	c := newCampus(t, h)

	res, err := h.svc.Reassignment.Reassign(h.ctx, ReassignInput{
		TicketID:       "T-1",
		ActorID:        "s-1",
		ActorRole:      domain.RoleSenior,
		TargetMemberID: c.hq2Junior.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, c.hq2.ID, res.State.CurrentGroupID)
	assert.Equal(t, c.hq2Junior.ID, *res.State.AssignedMemberID)
	assert.Equal(t, domain.RoutingStatusAssigned, res.State.Status)

	calls := h.tickets.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, ticketCall{Kind: "assign", TicketID: "T-1", UserID: "j-hq2", Level: domain.LevelL1}, calls[1])
	assert.Equal(t, ticketCall{Kind: "status", TicketID: "T-1", Status: upstream.TicketStatusReassigned}, calls[2])

	trail := h.trail("T-1")
	last := trail[len(trail)-1]
	assert.Equal(t, domain.ActionReassigned, last.Action)
	assert.Equal(t, c.hq1.ID, *last.FromGroupID)
	assert.Equal(t, c.hq1Junior.ID, *last.FromMemberID)
	assert.Equal(t, c.hq2Junior.ID, *last.ToMemberID)
	assert.Equal(t, "s-1", *last.PerformedBy)
}

func TestSeniorCannotCrossBuildings(t *testing.T) {
	h := newHarness(t)
	c := newCampus(t, h)

	_, err := h.svc.Reassignment.Reassign(h.ctx, ReassignInput{
		TicketID:       "T-1",
		ActorID:        "s-1",
		ActorRole:      domain.RoleSenior,
		TargetMemberID: c.annexJunior.ID,
	})
	assert.Equal(t, apperrors.CodeInsufficientAuthority, apperrors.CodeOf(err))
	assert.Equal(t, c.hq1.ID, mustState(t, h, "T-1").CurrentGroupID)
}

func TestSupervisorCrossesBuildings(t *testing.T) {
	h := newHarness(t)
	c := newCampus(t, h)
	h.identity.roles["sup-1"] = domain.RoleSupervisor

	res, err := h.svc.Reassignment.Reassign(h.ctx, ReassignInput{
		TicketID:       "T-1",
		ActorID:        "sup-1",
		TargetMemberID: c.annexJunior.ID,
		Reason:         "annex has capacity",
	})
	require.NoError(t, err)
	assert.Equal(t, c.annex.ID, res.State.CurrentGroupID)

	trail := h.trail("T-1")
	assert.Equal(t, "annex has capacity", trail[len(trail)-1].Reason)
}

func TestJuniorCannotReassign(t *testing.T) {
	h := newHarness(t)
	c := newCampus(t, h)

	_, err := h.svc.Reassignment.Reassign(h.ctx, ReassignInput{
		TicketID:       "T-1",
		ActorID:        "j-hq1",
		ActorRole:      domain.RoleJunior,
		TargetMemberID: c.hq2Junior.ID,
	})
	assert.Equal(t, apperrors.CodeInsufficientAuthority, apperrors.CodeOf(err))
}

func TestReassignToInactiveMemberConflicts(t *testing.T) {
	h := newHarness(t)
	c := newCampus(t, h)
	_, err := h.svc.Directory.UpdateMemberStatus(h.ctx, c.hq2Junior.ID, domain.MemberStatusOnLeave)
	require.NoError(t, err)

	_, err = h.svc.Reassignment.Reassign(h.ctx, ReassignInput{
		TicketID:       "T-1",
		ActorRole:      domain.RoleSupervisor,
		TargetMemberID: c.hq2Junior.ID,
	})
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
}

func TestReassignIdentityFailure(t *testing.T) {
	h := newHarness(t)
	c := newCampus(t, h)
	h.identity.err = errors.New("timeout")

	_, err := h.svc.Reassignment.Reassign(h.ctx, ReassignInput{
		TicketID:       "T-1",
		ActorID:        "someone",
		TargetMemberID: c.hq2Junior.ID,
	})
	assert.Equal(t, apperrors.CodeUpstreamFailure, apperrors.CodeOf(err))
}

func TestReassignTargets(t *testing.T) {
	h := newHarness(t)
	c := newCampus(t, h)
	h.member(c.hq2.ID, "s-hq2", domain.RoleSenior)

	senior, err := h.svc.Reassignment.Targets(h.ctx, c.hq1.ID, domain.RoleSenior)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{c.hq1Junior.ID, c.hq2Junior.ID}, memberIDs(senior))

	supervisor, err := h.svc.Reassignment.Targets(h.ctx, c.hq1.ID, domain.RoleSupervisor)
	require.NoError(t, err)
	assert.Len(t, supervisor, 4)

	junior, err := h.svc.Reassignment.Targets(h.ctx, c.hq1.ID, domain.RoleJunior)
	require.NoError(t, err)
	assert.Empty(t, junior)
}

func memberIDs(members []domain.GroupMember) []int64 {
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}
