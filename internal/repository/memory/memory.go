// Package memory implements the workflow repositories in process memory.
// Every operation runs under one mutex, which serializes transitions per ticket
// the same way the conditional UPDATEs do in Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/repository"
)

type db struct {
	mu  sync.Mutex
	now func() time.Time

	groups  map[int64]domain.SupportGroup
	members map[int64]domain.GroupMember
	rules   map[int64]domain.EscalationRule
	states  map[string]domain.RoutingState
	logs    []domain.WorkflowLog

	nextGroupID  int64
	nextMemberID int64
	nextRuleID   int64
	nextLogID    int64
}

// Option customizes the memory store.
type Option func(*db)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *db) { d.now = now }
}

// NewStore returns a repository.Store backed by process memory.
func NewStore(opts ...Option) repository.Store {
	d := &db{
		now:     time.Now,
		groups:  make(map[int64]domain.SupportGroup),
		members: make(map[int64]domain.GroupMember),
		rules:   make(map[int64]domain.EscalationRule),
		states:  make(map[string]domain.RoutingState),
	}
	for _, opt := range opts {
		opt(d)
	}
	return repository.Store{
		Groups:  &groupRepo{d},
		Members: &memberRepo{d},
		Rules:   &ruleRepo{d},
		States:  &stateRepo{d},
		Logs:    &logRepo{d},
	}
}

type groupRepo struct{ *db }

func (r *groupRepo) Create(_ context.Context, group *domain.SupportGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group.IsActive {
		for _, g := range r.groups {
			if g.IsActive && g.Building == group.Building && g.Floor == group.Floor {
				return repository.ErrDuplicate
			}
		}
	}
	r.nextGroupID++
	now := r.now()
	group.ID = r.nextGroupID
	group.CreatedAt, group.UpdatedAt = now, now
	r.groups[group.ID] = *group
	return nil
}

func (r *groupRepo) Update(_ context.Context, group *domain.SupportGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.groups[group.ID]
	if !ok {
		return repository.ErrNotFound
	}
	group.CreatedAt = existing.CreatedAt
	group.UpdatedAt = r.now()
	r.groups[group.ID] = *group
	return nil
}

func (r *groupRepo) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[id]
	if !ok {
		return repository.ErrNotFound
	}
	group.IsActive = false
	group.UpdatedAt = r.now()
	r.groups[id] = group
	return nil
}

func (r *groupRepo) GetByID(_ context.Context, id int64) (*domain.SupportGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	group, ok := r.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &group, nil
}

func (r *groupRepo) GetByLocation(_ context.Context, building string, floor int) (*domain.SupportGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *domain.SupportGroup
	for _, g := range r.groups {
		if !g.IsActive || g.Building != building || g.Floor != floor {
			continue
		}
		if found == nil || g.ID < found.ID {
			g := g
			found = &g
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *groupRepo) List(_ context.Context, filter repository.GroupFilter) ([]domain.SupportGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.SupportGroup
	for _, g := range r.groups {
		if !filter.IncludeHidden && !g.IsActive {
			continue
		}
		if filter.Building != nil && g.Building != *filter.Building {
			continue
		}
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Building != result[j].Building {
			return result[i].Building < result[j].Building
		}
		if result[i].Floor != result[j].Floor {
			return result[i].Floor < result[j].Floor
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type memberRepo struct{ *db }

func (r *memberRepo) Create(_ context.Context, member *domain.GroupMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.UserID == member.UserID && m.GroupID == member.GroupID {
			return repository.ErrDuplicate
		}
	}
	r.nextMemberID++
	now := r.now()
	member.ID = r.nextMemberID
	member.JoinedAt, member.UpdatedAt = now, now
	r.members[member.ID] = *member
	return nil
}

func (r *memberRepo) GetByID(_ context.Context, id int64) (*domain.GroupMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &member, nil
}

func (r *memberRepo) GetByUserAndGroup(_ context.Context, userID string, groupID int64) (*domain.GroupMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.UserID == userID && m.GroupID == groupID {
			m := m
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memberRepo) List(_ context.Context, filter repository.MemberFilter) ([]domain.GroupMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groups := make(map[int64]bool, len(filter.GroupIDs))
	for _, id := range filter.GroupIDs {
		groups[id] = true
	}
	var result []domain.GroupMember
	for _, m := range r.members {
		if len(groups) > 0 && !groups[m.GroupID] {
			continue
		}
		if filter.UserID != nil && m.UserID != *filter.UserID {
			continue
		}
		if filter.Role != nil && m.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *memberRepo) UpdateStatus(_ context.Context, id int64, status domain.MemberStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok {
		return repository.ErrNotFound
	}
	member.Status = status
	member.UpdatedAt = r.now()
	r.members[id] = member
	return nil
}

type ruleRepo struct{ *db }

func (r *ruleRepo) Create(_ context.Context, rule *domain.EscalationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRuleID++
	now := r.now()
	rule.ID = r.nextRuleID
	rule.CreatedAt, rule.UpdatedAt = now, now
	r.rules[rule.ID] = *rule
	return nil
}

func (r *ruleRepo) GetActiveByTrigger(_ context.Context, sourceGroupID int64, trigger domain.EscalationTrigger) (*domain.EscalationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.sortedActive(sourceGroupID) {
		if rule.TriggerType == trigger {
			rule := rule
			return &rule, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ruleRepo) ListBySource(_ context.Context, sourceGroupID int64) ([]domain.EscalationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedActive(sourceGroupID), nil
}

func (r *ruleRepo) ListActive(_ context.Context) ([]domain.EscalationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedActive(0), nil
}

// sortedActive orders by source, then priority descending, then id. A zero
// source matches every rule.
func (r *ruleRepo) sortedActive(sourceGroupID int64) []domain.EscalationRule {
	var result []domain.EscalationRule
	for _, rule := range r.rules {
		if !rule.IsActive {
			continue
		}
		if sourceGroupID != 0 && rule.SourceGroupID != sourceGroupID {
			continue
		}
		result = append(result, rule)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.SourceGroupID != b.SourceGroupID {
			return a.SourceGroupID < b.SourceGroupID
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	return result
}
