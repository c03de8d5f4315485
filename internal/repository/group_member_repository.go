package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// GroupMemberRepository handles persistence for group memberships.
type GroupMemberRepository interface {
	Create(ctx context.Context, member *domain.GroupMember) error
	GetByID(ctx context.Context, id int64) (*domain.GroupMember, error)
	GetByUserAndGroup(ctx context.Context, userID string, groupID int64) (*domain.GroupMember, error)
	List(ctx context.Context, filter MemberFilter) ([]domain.GroupMember, error)
	UpdateStatus(ctx context.Context, id int64, status domain.MemberStatus) error
}

// MemberFilter defines query params for member listing.
type MemberFilter struct {
	GroupIDs []int64
	UserID   *string
	Role     *domain.Role
	Status   *domain.MemberStatus
}

type groupMemberRepository struct {
	pool *pgxpool.Pool
}

// NewGroupMemberRepository instantiates the repository.
func NewGroupMemberRepository(pool *pgxpool.Pool) GroupMemberRepository {
	return &groupMemberRepository{pool: pool}
}

const groupMemberColumns = `id, user_id, group_id, role, can_assign, can_escalate, status, joined_at, updated_at`

func (r *groupMemberRepository) Create(ctx context.Context, member *domain.GroupMember) error {
	const query = `
        INSERT INTO group_members (user_id, group_id, role, can_assign, can_escalate, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, joined_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		member.UserID,
		member.GroupID,
		member.Role,
		member.CanAssign,
		member.CanEscalate,
		member.Status,
	).Scan(&member.ID, &member.JoinedAt, &member.UpdatedAt)
	return translate(err)
}

func (r *groupMemberRepository) GetByID(ctx context.Context, id int64) (*domain.GroupMember, error) {
	query := `SELECT ` + groupMemberColumns + ` FROM group_members WHERE id=$1`
	return scanGroupMember(r.pool.QueryRow(ctx, query, id))
}

func (r *groupMemberRepository) GetByUserAndGroup(ctx context.Context, userID string, groupID int64) (*domain.GroupMember, error) {
	query := `SELECT ` + groupMemberColumns + ` FROM group_members WHERE user_id=$1 AND group_id=$2`
	return scanGroupMember(r.pool.QueryRow(ctx, query, userID, groupID))
}

func (r *groupMemberRepository) List(ctx context.Context, filter MemberFilter) ([]domain.GroupMember, error) {
	query := `SELECT ` + groupMemberColumns + ` FROM group_members`
	args := []any{}
	clauses := []string{}

	if len(filter.GroupIDs) > 0 {
		args = append(args, filter.GroupIDs)
		clauses = append(clauses, fmt.Sprintf("group_id = ANY($%d)", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GroupMember
	for rows.Next() {
		member, err := scanGroupMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *member)
	}
	return result, rows.Err()
}

func (r *groupMemberRepository) UpdateStatus(ctx context.Context, id int64, status domain.MemberStatus) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE group_members SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGroupMember(row pgx.Row) (*domain.GroupMember, error) {
	var member domain.GroupMember
	if err := row.Scan(
		&member.ID,
		&member.UserID,
		&member.GroupID,
		&member.Role,
		&member.CanAssign,
		&member.CanEscalate,
		&member.Status,
		&member.JoinedAt,
		&member.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &member, nil
}
