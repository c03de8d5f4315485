package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
)

func TestGroupLocationIsUniqueAmongActive(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first := &domain.SupportGroup{Name: "HQ-1", Building: "HQ", Floor: 1, IsActive: true}
	require.NoError(t, store.Groups.Create(ctx, first))

	dup := &domain.SupportGroup{Name: "HQ-1b", Building: "HQ", Floor: 1, IsActive: true}
	assert.ErrorIs(t, store.Groups.Create(ctx, dup), repository.ErrDuplicate)

	require.NoError(t, store.Groups.Deactivate(ctx, first.ID))
	require.NoError(t, store.Groups.Create(ctx, dup))

	got, err := store.Groups.GetByLocation(ctx, "HQ", 1)
	require.NoError(t, err)
	assert.Equal(t, dup.ID, got.ID)
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.States.Create(ctx, &domain.RoutingState{
		TicketID:       "T-1",
		CurrentGroupID: 1,
		Status:         domain.RoutingStatusUnassigned,
	}))

	const claimants = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      []int64
		conflicts int
	)
	for i := 1; i <= claimants; i++ {
		wg.Add(1)
		go func(member int64) {
			defer wg.Done()
			_, err := store.States.Claim(ctx, "T-1", member)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins = append(wins, member)
				return
			}
			if assert.ErrorIs(t, err, repository.ErrConflict) {
				conflicts++
			}
		}(int64(i))
	}
	wg.Wait()

	require.Len(t, wins, 1)
	assert.Equal(t, claimants-1, conflicts)

	state, err := store.States.GetByTicketID(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoutingStatusAssigned, state.Status)
	require.NotNil(t, state.AssignedMemberID)
	assert.Equal(t, wins[0], *state.AssignedMemberID)
	assert.NotNil(t, state.ClaimedAt)
}

func TestClaimMissingTicket(t *testing.T) {
	_, err := NewStore().States.Claim(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEscalateRejectsStaleGuard(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	member := int64(7)
	require.NoError(t, store.States.Create(ctx, &domain.RoutingState{
		TicketID:         "T-2",
		CurrentGroupID:   1,
		AssignedMemberID: &member,
		Status:           domain.RoutingStatusAssigned,
	}))

	guard := domain.EscalationGuard{GroupID: 1, EscalationCount: 0}
	state, err := store.States.Escalate(ctx, "T-2", guard, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RoutingStatusEscalated, state.Status)
	assert.Equal(t, 1, state.EscalationCount)
	assert.Nil(t, state.AssignedMemberID)
	assert.NotNil(t, state.LastEscalatedAt)

	_, err = store.States.Escalate(ctx, "T-2", guard, 3, nil)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestCountActiveByMembers(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a, b := int64(1), int64(2)
	for _, s := range []domain.RoutingState{
		{TicketID: "T-a1", CurrentGroupID: 1, AssignedMemberID: &a, Status: domain.RoutingStatusAssigned},
		{TicketID: "T-a2", CurrentGroupID: 1, AssignedMemberID: &a, Status: domain.RoutingStatusAssigned},
		{TicketID: "T-b1", CurrentGroupID: 1, AssignedMemberID: &b, Status: domain.RoutingStatusAssigned},
		{TicketID: "T-u", CurrentGroupID: 1, Status: domain.RoutingStatusUnassigned},
	} {
		s := s
		require.NoError(t, store.States.Create(ctx, &s))
	}

	counts, err := store.States.CountActiveByMembers(ctx, []int64{a, b, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[a])
	assert.Equal(t, 1, counts[b])
	assert.Zero(t, counts[3])
}

func TestRuleSelectionPrefersPriorityThenID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	rules := []*domain.EscalationRule{
		{SourceGroupID: 1, TargetGroupID: 2, TriggerType: domain.TriggerManual, Priority: 1, IsActive: true},
		{SourceGroupID: 1, TargetGroupID: 3, TriggerType: domain.TriggerManual, Priority: 2, IsActive: true},
		{SourceGroupID: 1, TargetGroupID: 4, TriggerType: domain.TriggerManual, Priority: 2, IsActive: true},
		{SourceGroupID: 1, TargetGroupID: 5, TriggerType: domain.TriggerManual, Priority: 9, IsActive: false},
	}
	for _, r := range rules {
		require.NoError(t, store.Rules.Create(ctx, r))
	}

	got, err := store.Rules.GetActiveByTrigger(ctx, 1, domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TargetGroupID)

	_, err = store.Rules.GetActiveByTrigger(ctx, 1, domain.TriggerSLA)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLogsAreOrderedByID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	for _, action := range []domain.WorkflowAction{domain.ActionRouted, domain.ActionClaimed, domain.ActionEscalated} {
		require.NoError(t, store.Logs.Append(ctx, &domain.WorkflowLog{TicketID: "T-3", Action: action}))
	}

	trail, err := store.Logs.ListByTicket(ctx, "T-3")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, domain.ActionRouted, trail[0].Action)
	assert.Equal(t, domain.ActionEscalated, trail[2].Action)

	escalations, err := store.Logs.ListByTicket(ctx, "T-3", domain.ActionEscalated)
	require.NoError(t, err)
	assert.Len(t, escalations, 1)
}
