package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// AuditService appends and reads workflow log entries.
type AuditService struct {
	logs    repository.WorkflowLogRepository
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(logs repository.WorkflowLogRepository, metrics *observability.Metrics, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{logs: logs, metrics: metrics, logger: logger}
}

// Record appends entry after a committed transition. A failed write is counted
// and logged; the transition stands.
func (a *AuditService) Record(ctx context.Context, entry *domain.WorkflowLog) {
	if err := a.logs.Append(ctx, entry); err != nil {
		a.metrics.Inc(observability.CounterAuditWriteFailures)
		a.logger.Error("workflow log append failed",
			zap.String("ticket_id", entry.TicketID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

// AuditTrail returns every entry for a ticket, oldest first.
func (a *AuditService) AuditTrail(ctx context.Context, ticketID string) ([]domain.WorkflowLog, error) {
	entries, err := a.logs.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// MemberActivity returns the newest entries touching a member.
func (a *AuditService) MemberActivity(ctx context.Context, memberID int64, limit int) ([]domain.WorkflowLog, error) {
	entries, err := a.logs.ListByMember(ctx, memberID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// GroupActivity returns the newest entries touching a group.
func (a *AuditService) GroupActivity(ctx context.Context, groupID int64, limit int) ([]domain.WorkflowLog, error) {
	entries, err := a.logs.ListByGroup(ctx, groupID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// RecentActivity returns entries created after since, newest first.
func (a *AuditService) RecentActivity(ctx context.Context, since time.Time, limit int) ([]domain.WorkflowLog, error) {
	entries, err := a.logs.ListRecent(ctx, since, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}
