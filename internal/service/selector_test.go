package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

func TestSelectorTieBreaksOnLowestID(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 1", "HQ", 1)
	first := h.member(g.ID, "u1", domain.RoleJunior)
	h.member(g.ID, "u2", domain.RoleJunior)

	picked, err := h.svc.Selector.Select(h.ctx, g.ID, domain.RoleJunior)
	require.NoError(t, err)
	assert.Equal(t, first.ID, picked.ID)
}

func TestSelectorCountsEscalatedLoad(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 1", "HQ", 1)
	loaded := h.member(g.ID, "u1", domain.RoleSenior)
	free := h.member(g.ID, "u2", domain.RoleSenior)
	require.NoError(t, h.store.States.Create(h.ctx, &domain.RoutingState{
		TicketID:         "T-x",
		CurrentGroupID:   g.ID,
		AssignedMemberID: &loaded.ID,
		Status:           domain.RoutingStatusEscalated,
	}))

	picked, err := h.svc.Selector.Select(h.ctx, g.ID, domain.RoleSenior)
	require.NoError(t, err)
	assert.Equal(t, free.ID, picked.ID)
}

func TestSelectorIgnoresOtherRoles(t *testing.T) {
	h := newHarness(t)
	g := h.group("HQ floor 1", "HQ", 1)
	h.member(g.ID, "u1", domain.RoleSenior)

	_, err := h.svc.Selector.Select(h.ctx, g.ID, domain.RoleJunior)
	assert.Equal(t, apperrors.CodeNoAvailableAssignee, apperrors.CodeOf(err))
}
