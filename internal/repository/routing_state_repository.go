package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// RoutingStateRepository owns the per-ticket routing record and its guarded updates.
type RoutingStateRepository interface {
	// Create inserts a new row; ErrDuplicate when the ticket already has one.
	Create(ctx context.Context, state *domain.RoutingState) error
	GetByTicketID(ctx context.Context, ticketID string) (*domain.RoutingState, error)
	// Claim assigns memberID only while the row is UNASSIGNED. A lost race yields ErrConflict.
	Claim(ctx context.Context, ticketID string, memberID int64) (*domain.RoutingState, error)
	Reassign(ctx context.Context, ticketID string, memberID, groupID int64) (*domain.RoutingState, error)
	// Escalate moves the ticket to targetGroupID if the row still matches guard.
	Escalate(ctx context.Context, ticketID string, guard domain.EscalationGuard, targetGroupID int64, memberID *int64) (*domain.RoutingState, error)
	SetSyncPending(ctx context.Context, ticketID string, pending bool) error
	ListByGroup(ctx context.Context, groupID int64, statuses ...domain.RoutingStatus) ([]domain.RoutingState, error)
	ListByMember(ctx context.Context, memberID int64) ([]domain.RoutingState, error)
	ListSyncPending(ctx context.Context, limit int) ([]domain.RoutingState, error)
	// CountActiveByMembers counts ASSIGNED and ESCALATED tickets per member.
	CountActiveByMembers(ctx context.Context, memberIDs []int64) (map[int64]int, error)
}

type routingStateRepository struct {
	pool *pgxpool.Pool
}

// NewRoutingStateRepository instantiates repository.
func NewRoutingStateRepository(pool *pgxpool.Pool) RoutingStateRepository {
	return &routingStateRepository{pool: pool}
}

const routingStateColumns = `ticket_id, current_group_id, assigned_member_id, status, escalation_count,
        last_escalated_at, claimed_at, sync_pending, created_at, updated_at`

func (r *routingStateRepository) Create(ctx context.Context, state *domain.RoutingState) error {
	query := `
        INSERT INTO ticket_routing_state (ticket_id, current_group_id, assigned_member_id, status, claimed_at)
        VALUES ($1,$2,$3,$4, CASE WHEN $3::BIGINT IS NULL THEN NULL ELSE NOW() END)
        ON CONFLICT (ticket_id) DO NOTHING
        RETURNING ` + routingStateColumns
	created, err := scanRoutingState(r.pool.QueryRow(ctx, query,
		state.TicketID,
		state.CurrentGroupID,
		state.AssignedMemberID,
		state.Status,
	))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrDuplicate
		}
		return err
	}
	*state = *created
	return nil
}

func (r *routingStateRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.RoutingState, error) {
	query := `SELECT ` + routingStateColumns + ` FROM ticket_routing_state WHERE ticket_id=$1`
	return scanRoutingState(r.pool.QueryRow(ctx, query, ticketID))
}

func (r *routingStateRepository) Claim(ctx context.Context, ticketID string, memberID int64) (*domain.RoutingState, error) {
	query := `
        UPDATE ticket_routing_state
        SET assigned_member_id=$2, status='ASSIGNED', claimed_at=NOW(), updated_at=NOW()
        WHERE ticket_id=$1 AND status='UNASSIGNED'
        RETURNING ` + routingStateColumns
	state, err := scanRoutingState(r.pool.QueryRow(ctx, query, ticketID, memberID))
	if errors.Is(err, ErrNotFound) {
		return nil, r.missingOrConflict(ctx, ticketID)
	}
	return state, err
}

func (r *routingStateRepository) Reassign(ctx context.Context, ticketID string, memberID, groupID int64) (*domain.RoutingState, error) {
	query := `
        UPDATE ticket_routing_state
        SET assigned_member_id=$2, current_group_id=$3, status='ASSIGNED', updated_at=NOW()
        WHERE ticket_id=$1
        RETURNING ` + routingStateColumns
	return scanRoutingState(r.pool.QueryRow(ctx, query, ticketID, memberID, groupID))
}

func (r *routingStateRepository) Escalate(ctx context.Context, ticketID string, guard domain.EscalationGuard, targetGroupID int64, memberID *int64) (*domain.RoutingState, error) {
	query := `
        UPDATE ticket_routing_state
        SET current_group_id=$2, assigned_member_id=$3, status='ESCALATED',
            escalation_count=escalation_count+1, last_escalated_at=NOW(), updated_at=NOW()
        WHERE ticket_id=$1 AND current_group_id=$4 AND escalation_count=$5
        RETURNING ` + routingStateColumns
	state, err := scanRoutingState(r.pool.QueryRow(ctx, query,
		ticketID, targetGroupID, memberID, guard.GroupID, guard.EscalationCount))
	if errors.Is(err, ErrNotFound) {
		return nil, r.missingOrConflict(ctx, ticketID)
	}
	return state, err
}

func (r *routingStateRepository) SetSyncPending(ctx context.Context, ticketID string, pending bool) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE ticket_routing_state SET sync_pending=$2 WHERE ticket_id=$1`, ticketID, pending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *routingStateRepository) ListByGroup(ctx context.Context, groupID int64, statuses ...domain.RoutingStatus) ([]domain.RoutingState, error) {
	args := []any{groupID}
	clauses := []string{"current_group_id=$1"}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	query := `SELECT ` + routingStateColumns + ` FROM ticket_routing_state
        WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY updated_at DESC, ticket_id ASC`
	return r.list(ctx, query, args...)
}

func (r *routingStateRepository) ListByMember(ctx context.Context, memberID int64) ([]domain.RoutingState, error) {
	query := `SELECT ` + routingStateColumns + ` FROM ticket_routing_state
        WHERE assigned_member_id=$1 AND status IN ('ASSIGNED','ESCALATED')
        ORDER BY updated_at DESC, ticket_id ASC`
	return r.list(ctx, query, memberID)
}

func (r *routingStateRepository) ListSyncPending(ctx context.Context, limit int) ([]domain.RoutingState, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + routingStateColumns + ` FROM ticket_routing_state
        WHERE sync_pending=TRUE ORDER BY updated_at ASC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *routingStateRepository) CountActiveByMembers(ctx context.Context, memberIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(memberIDs))
	if len(memberIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assigned_member_id, COUNT(*)
        FROM ticket_routing_state
        WHERE assigned_member_id = ANY($1) AND status IN ('ASSIGNED','ESCALATED')
        GROUP BY assigned_member_id`
	rows, err := r.pool.Query(ctx, query, memberIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var memberID int64
		var count int
		if err := rows.Scan(&memberID, &count); err != nil {
			return nil, err
		}
		counts[memberID] = count
	}
	return counts, rows.Err()
}

func (r *routingStateRepository) list(ctx context.Context, query string, args ...any) ([]domain.RoutingState, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RoutingState
	for rows.Next() {
		state, err := scanRoutingState(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *state)
	}
	return result, rows.Err()
}

func (r *routingStateRepository) missingOrConflict(ctx context.Context, ticketID string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ticket_routing_state WHERE ticket_id=$1)`, ticketID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanRoutingState(row pgx.Row) (*domain.RoutingState, error) {
	var state domain.RoutingState
	if err := row.Scan(
		&state.TicketID,
		&state.CurrentGroupID,
		&state.AssignedMemberID,
		&state.Status,
		&state.EscalationCount,
		&state.LastEscalatedAt,
		&state.ClaimedAt,
		&state.SyncPending,
		&state.CreatedAt,
		&state.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &state, nil
}
