package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// WorkflowLogRepository stores the append-only audit trail.
type WorkflowLogRepository interface {
	Append(ctx context.Context, entry *domain.WorkflowLog) error
	// ListByTicket returns entries oldest first, optionally narrowed to actions.
	ListByTicket(ctx context.Context, ticketID string, actions ...domain.WorkflowAction) ([]domain.WorkflowLog, error)
	ListByMember(ctx context.Context, memberID int64, limit int) ([]domain.WorkflowLog, error)
	ListByGroup(ctx context.Context, groupID int64, limit int) ([]domain.WorkflowLog, error)
	ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.WorkflowLog, error)
}

type workflowLogRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowLogRepository builds repository.
func NewWorkflowLogRepository(pool *pgxpool.Pool) WorkflowLogRepository {
	return &workflowLogRepository{pool: pool}
}

const workflowLogColumns = `id, ticket_id, action, from_group_id, to_group_id, from_member_id, to_member_id,
        performed_by, COALESCE(reason, ''), created_at`

func (r *workflowLogRepository) Append(ctx context.Context, entry *domain.WorkflowLog) error {
	const query = `
        INSERT INTO workflow_logs
            (ticket_id, action, from_group_id, to_group_id, from_member_id, to_member_id, performed_by, reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''))
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.Action,
		entry.FromGroupID,
		entry.ToGroupID,
		entry.FromMemberID,
		entry.ToMemberID,
		entry.PerformedBy,
		entry.Reason,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *workflowLogRepository) ListByTicket(ctx context.Context, ticketID string, actions ...domain.WorkflowAction) ([]domain.WorkflowLog, error) {
	args := []any{ticketID}
	clauses := []string{"ticket_id=$1"}
	if len(actions) > 0 {
		placeholders := make([]string, len(actions))
		for i, action := range actions {
			args = append(args, action)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("action IN (%s)", strings.Join(placeholders, ",")))
	}
	query := `SELECT ` + workflowLogColumns + ` FROM workflow_logs
        WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY id ASC`
	return r.list(ctx, query, args...)
}

func (r *workflowLogRepository) ListByMember(ctx context.Context, memberID int64, limit int) ([]domain.WorkflowLog, error) {
	query := `SELECT ` + workflowLogColumns + ` FROM workflow_logs
        WHERE from_member_id=$1 OR to_member_id=$1
        ORDER BY id DESC LIMIT $2`
	return r.list(ctx, query, memberID, normalizeLimit(limit))
}

func (r *workflowLogRepository) ListByGroup(ctx context.Context, groupID int64, limit int) ([]domain.WorkflowLog, error) {
	query := `SELECT ` + workflowLogColumns + ` FROM workflow_logs
        WHERE from_group_id=$1 OR to_group_id=$1
        ORDER BY id DESC LIMIT $2`
	return r.list(ctx, query, groupID, normalizeLimit(limit))
}

func (r *workflowLogRepository) ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.WorkflowLog, error) {
	query := `SELECT ` + workflowLogColumns + ` FROM workflow_logs
        WHERE created_at > $1
        ORDER BY id DESC LIMIT $2`
	return r.list(ctx, query, since, normalizeLimit(limit))
}

func (r *workflowLogRepository) list(ctx context.Context, query string, args ...any) ([]domain.WorkflowLog, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkflowLog
	for rows.Next() {
		entry, err := scanWorkflowLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func scanWorkflowLog(row pgx.Row) (*domain.WorkflowLog, error) {
	var entry domain.WorkflowLog
	if err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.Action,
		&entry.FromGroupID,
		&entry.ToGroupID,
		&entry.FromMemberID,
		&entry.ToMemberID,
		&entry.PerformedBy,
		&entry.Reason,
		&entry.CreatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
