package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Store bundles the repositories the workflow services depend on.
type Store struct {
	Groups  SupportGroupRepository
	Members GroupMemberRepository
	Rules   EscalationRuleRepository
	States  RoutingStateRepository
	Logs    WorkflowLogRepository
}

// NewPostgresStore wires every repository to the same pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return Store{
		Groups:  NewSupportGroupRepository(pool),
		Members: NewGroupMemberRepository(pool),
		Rules:   NewEscalationRuleRepository(pool),
		States:  NewRoutingStateRepository(pool),
		Logs:    NewWorkflowLogRepository(pool),
	}
}
