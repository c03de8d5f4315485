package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// GroupFilter narrows group listings.
type GroupFilter struct {
	Building      *string
	IncludeHidden bool
}

// SupportGroupRepository manages persistence for support groups.
type SupportGroupRepository interface {
	Create(ctx context.Context, group *domain.SupportGroup) error
	Update(ctx context.Context, group *domain.SupportGroup) error
	Deactivate(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.SupportGroup, error)
	GetByLocation(ctx context.Context, building string, floor int) (*domain.SupportGroup, error)
	List(ctx context.Context, filter GroupFilter) ([]domain.SupportGroup, error)
}

type supportGroupRepository struct {
	pool *pgxpool.Pool
}

// NewSupportGroupRepository constructs repository.
func NewSupportGroupRepository(pool *pgxpool.Pool) SupportGroupRepository {
	return &supportGroupRepository{pool: pool}
}

const supportGroupColumns = `id, name, building, floor, parent_group_id, is_active, created_at, updated_at`

func (r *supportGroupRepository) Create(ctx context.Context, group *domain.SupportGroup) error {
	const query = `
        INSERT INTO support_groups (name, building, floor, parent_group_id, is_active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		group.Name,
		group.Building,
		group.Floor,
		group.ParentGroupID,
		group.IsActive,
	).Scan(&group.ID, &group.CreatedAt, &group.UpdatedAt)
	return translate(err)
}

func (r *supportGroupRepository) Update(ctx context.Context, group *domain.SupportGroup) error {
	const query = `
        UPDATE support_groups SET name=$1, building=$2, floor=$3, parent_group_id=$4, is_active=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		group.Name,
		group.Building,
		group.Floor,
		group.ParentGroupID,
		group.IsActive,
		group.ID,
	).Scan(&group.UpdatedAt)
	return translate(err)
}

func (r *supportGroupRepository) Deactivate(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE support_groups SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *supportGroupRepository) GetByID(ctx context.Context, id int64) (*domain.SupportGroup, error) {
	query := `SELECT ` + supportGroupColumns + ` FROM support_groups WHERE id=$1`
	return scanSupportGroup(r.pool.QueryRow(ctx, query, id))
}

func (r *supportGroupRepository) GetByLocation(ctx context.Context, building string, floor int) (*domain.SupportGroup, error) {
	query := `SELECT ` + supportGroupColumns + `
        FROM support_groups WHERE building=$1 AND floor=$2 AND is_active=TRUE
        ORDER BY id ASC LIMIT 1`
	return scanSupportGroup(r.pool.QueryRow(ctx, query, building, floor))
}

func (r *supportGroupRepository) List(ctx context.Context, filter GroupFilter) ([]domain.SupportGroup, error) {
	query := `SELECT ` + supportGroupColumns + ` FROM support_groups`
	args := []any{}
	clauses := []string{}

	if !filter.IncludeHidden {
		clauses = append(clauses, "is_active=TRUE")
	}
	if filter.Building != nil {
		args = append(args, *filter.Building)
		clauses = append(clauses, fmt.Sprintf("building=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY building ASC, floor ASC, id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportGroup
	for rows.Next() {
		group, err := scanSupportGroup(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *group)
	}
	return result, rows.Err()
}

func scanSupportGroup(row pgx.Row) (*domain.SupportGroup, error) {
	var group domain.SupportGroup
	if err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Building,
		&group.Floor,
		&group.ParentGroupID,
		&group.IsActive,
		&group.CreatedAt,
		&group.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &group, nil
}
