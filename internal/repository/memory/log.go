package memory

import (
	"context"
	"time"

	"github.com/spec-kit/workflow-service/internal/domain"
)

type logRepo struct{ *db }

func (r *logRepo) Append(_ context.Context, entry *domain.WorkflowLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextLogID++
	entry.ID = r.nextLogID
	entry.CreatedAt = r.now()
	r.logs = append(r.logs, *entry)
	return nil
}

func (r *logRepo) ListByTicket(_ context.Context, ticketID string, actions ...domain.WorkflowAction) ([]domain.WorkflowLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[domain.WorkflowAction]bool, len(actions))
	for _, a := range actions {
		wanted[a] = true
	}
	var result []domain.WorkflowLog
	for _, entry := range r.logs {
		if entry.TicketID != ticketID {
			continue
		}
		if len(wanted) > 0 && !wanted[entry.Action] {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (r *logRepo) ListByMember(_ context.Context, memberID int64, limit int) ([]domain.WorkflowLog, error) {
	return r.newest(limit, func(e domain.WorkflowLog) bool {
		return idEquals(e.FromMemberID, memberID) || idEquals(e.ToMemberID, memberID)
	}), nil
}

func (r *logRepo) ListByGroup(_ context.Context, groupID int64, limit int) ([]domain.WorkflowLog, error) {
	return r.newest(limit, func(e domain.WorkflowLog) bool {
		return idEquals(e.FromGroupID, groupID) || idEquals(e.ToGroupID, groupID)
	}), nil
}

func (r *logRepo) ListRecent(_ context.Context, since time.Time, limit int) ([]domain.WorkflowLog, error) {
	return r.newest(limit, func(e domain.WorkflowLog) bool { return e.CreatedAt.After(since) }), nil
}

func (r *logRepo) newest(limit int, keep func(domain.WorkflowLog) bool) []domain.WorkflowLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case limit <= 0:
		limit = 50
	case limit > 500:
		limit = 500
	}
	var result []domain.WorkflowLog
	for i := len(r.logs) - 1; i >= 0 && len(result) < limit; i-- {
		if keep(r.logs[i]) {
			result = append(result, r.logs[i])
		}
	}
	return result
}

func idEquals(id *int64, want int64) bool {
	return id != nil && *id == want
}
