package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// EscalationRuleRepository stores source -> target escalation mappings.
type EscalationRuleRepository interface {
	Create(ctx context.Context, rule *domain.EscalationRule) error
	// GetActiveByTrigger returns the highest priority active rule; ties go to the lowest id.
	GetActiveByTrigger(ctx context.Context, sourceGroupID int64, trigger domain.EscalationTrigger) (*domain.EscalationRule, error)
	ListBySource(ctx context.Context, sourceGroupID int64) ([]domain.EscalationRule, error)
	ListActive(ctx context.Context) ([]domain.EscalationRule, error)
}

type escalationRuleRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRuleRepository builds the repository.
func NewEscalationRuleRepository(pool *pgxpool.Pool) EscalationRuleRepository {
	return &escalationRuleRepository{pool: pool}
}

const escalationRuleColumns = `id, source_group_id, target_group_id, trigger_type, delay_minutes,
        reopen_threshold, priority, is_active, created_at, updated_at`

func (r *escalationRuleRepository) Create(ctx context.Context, rule *domain.EscalationRule) error {
	const query = `
        INSERT INTO escalation_rules
            (source_group_id, target_group_id, trigger_type, delay_minutes, reopen_threshold, priority, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		rule.SourceGroupID,
		rule.TargetGroupID,
		rule.TriggerType,
		rule.DelayMinutes,
		rule.ReopenThreshold,
		rule.Priority,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	return translate(err)
}

func (r *escalationRuleRepository) GetActiveByTrigger(ctx context.Context, sourceGroupID int64, trigger domain.EscalationTrigger) (*domain.EscalationRule, error) {
	query := `SELECT ` + escalationRuleColumns + `
        FROM escalation_rules
        WHERE source_group_id=$1 AND trigger_type=$2 AND is_active=TRUE
        ORDER BY priority DESC, id ASC
        LIMIT 1`
	return scanEscalationRule(r.pool.QueryRow(ctx, query, sourceGroupID, trigger))
}

func (r *escalationRuleRepository) ListBySource(ctx context.Context, sourceGroupID int64) ([]domain.EscalationRule, error) {
	query := `SELECT ` + escalationRuleColumns + `
        FROM escalation_rules
        WHERE source_group_id=$1 AND is_active=TRUE
        ORDER BY priority DESC, id ASC`
	rows, err := r.pool.Query(ctx, query, sourceGroupID)
	if err != nil {
		return nil, err
	}
	return collectEscalationRules(rows)
}

func (r *escalationRuleRepository) ListActive(ctx context.Context) ([]domain.EscalationRule, error) {
	query := `SELECT ` + escalationRuleColumns + `
        FROM escalation_rules
        WHERE is_active=TRUE
        ORDER BY source_group_id ASC, priority DESC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectEscalationRules(rows)
}

func collectEscalationRules(rows pgx.Rows) ([]domain.EscalationRule, error) {
	defer rows.Close()
	var result []domain.EscalationRule
	for rows.Next() {
		rule, err := scanEscalationRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}

func scanEscalationRule(row pgx.Row) (*domain.EscalationRule, error) {
	var rule domain.EscalationRule
	if err := row.Scan(
		&rule.ID,
		&rule.SourceGroupID,
		&rule.TargetGroupID,
		&rule.TriggerType,
		&rule.DelayMinutes,
		&rule.ReopenThreshold,
		&rule.Priority,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &rule, nil
}
