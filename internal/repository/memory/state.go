package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
)

type stateRepo struct{ *db }

func (r *stateRepo) Create(_ context.Context, state *domain.RoutingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.states[state.TicketID]; exists {
		return repository.ErrDuplicate
	}
	now := r.now()
	created := domain.RoutingState{
		TicketID:         state.TicketID,
		CurrentGroupID:   state.CurrentGroupID,
		AssignedMemberID: copyID(state.AssignedMemberID),
		Status:           state.Status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if created.AssignedMemberID != nil {
		created.ClaimedAt = &now
	}
	r.states[state.TicketID] = created
	*state = created
	return nil
}

func (r *stateRepo) GetByTicketID(_ context.Context, ticketID string) (*domain.RoutingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneState(state), nil
}

func (r *stateRepo) Claim(_ context.Context, ticketID string, memberID int64) (*domain.RoutingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if state.Status != domain.RoutingStatusUnassigned {
		return nil, repository.ErrConflict
	}
	now := r.now()
	state.AssignedMemberID = &memberID
	state.Status = domain.RoutingStatusAssigned
	state.ClaimedAt = &now
	state.UpdatedAt = now
	r.states[ticketID] = state
	return cloneState(state), nil
}

func (r *stateRepo) Reassign(_ context.Context, ticketID string, memberID, groupID int64) (*domain.RoutingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	state.AssignedMemberID = &memberID
	state.CurrentGroupID = groupID
	state.Status = domain.RoutingStatusAssigned
	state.UpdatedAt = r.now()
	r.states[ticketID] = state
	return cloneState(state), nil
}

func (r *stateRepo) Escalate(_ context.Context, ticketID string, guard domain.EscalationGuard, targetGroupID int64, memberID *int64) (*domain.RoutingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if state.Guard() != guard {
		return nil, repository.ErrConflict
	}
	now := r.now()
	state.CurrentGroupID = targetGroupID
	state.AssignedMemberID = copyID(memberID)
	state.Status = domain.RoutingStatusEscalated
	state.EscalationCount++
	state.LastEscalatedAt = &now
	state.UpdatedAt = now
	r.states[ticketID] = state
	return cloneState(state), nil
}

func (r *stateRepo) SetSyncPending(_ context.Context, ticketID string, pending bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	state.SyncPending = pending
	r.states[ticketID] = state
	return nil
}

func (r *stateRepo) ListByGroup(_ context.Context, groupID int64, statuses ...domain.RoutingStatus) ([]domain.RoutingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(s domain.RoutingState) bool {
		return s.CurrentGroupID == groupID && statusIn(s.Status, statuses)
	}, newestFirst), nil
}

func (r *stateRepo) ListByMember(_ context.Context, memberID int64) ([]domain.RoutingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(s domain.RoutingState) bool {
		return s.AssignedMemberID != nil && *s.AssignedMemberID == memberID && active(s.Status)
	}, newestFirst), nil
}

func (r *stateRepo) ListSyncPending(_ context.Context, limit int) ([]domain.RoutingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := r.filter(func(s domain.RoutingState) bool { return s.SyncPending }, oldestFirst)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *stateRepo) CountActiveByMembers(_ context.Context, memberIDs []int64) (map[int64]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		wanted[id] = true
	}
	counts := make(map[int64]int, len(memberIDs))
	for _, s := range r.states {
		if s.AssignedMemberID == nil || !wanted[*s.AssignedMemberID] || !active(s.Status) {
			continue
		}
		counts[*s.AssignedMemberID]++
	}
	return counts, nil
}

func (r *stateRepo) filter(keep func(domain.RoutingState) bool, less func(a, b domain.RoutingState) bool) []domain.RoutingState {
	var result []domain.RoutingState
	for _, s := range r.states {
		if keep(s) {
			result = append(result, *cloneState(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return less(result[i], result[j]) })
	return result
}

func newestFirst(a, b domain.RoutingState) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.TicketID < b.TicketID
}

func oldestFirst(a, b domain.RoutingState) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.TicketID < b.TicketID
}

func statusIn(status domain.RoutingStatus, statuses []domain.RoutingStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func active(status domain.RoutingStatus) bool {
	return status == domain.RoutingStatusAssigned || status == domain.RoutingStatusEscalated
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneState(s domain.RoutingState) *domain.RoutingState {
	s.AssignedMemberID = copyID(s.AssignedMemberID)
	s.LastEscalatedAt = copyTime(s.LastEscalatedAt)
	s.ClaimedAt = copyTime(s.ClaimedAt)
	return &s
}
