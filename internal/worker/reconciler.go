package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/outbox"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/service"
)

const reconcileParallelism = 4

// Reconciler replays queued ticket-service notifications and clears the
// sync_pending flag of tickets whose notifications all went through.
type Reconciler struct {
	queue       outbox.Queue
	tickets     service.TicketNotifier
	states      repository.RoutingStateRepository
	metrics     *observability.Metrics
	logger      *zap.Logger
	maxAttempts int
}

// ReconcilerDependencies bundles reconciler collaborators.
type ReconcilerDependencies struct {
	Queue       outbox.Queue
	Tickets     service.TicketNotifier
	States      repository.RoutingStateRepository
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	MaxAttempts int
}

// Report summarises one reconcile pass.
type Report struct {
	Processed  int      `json:"processed"`
	Delivered  int      `json:"delivered"`
	Requeued   int      `json:"requeued"`
	Abandoned  int      `json:"abandoned"`
	Cleared    []string `json:"cleared"`
	StillDirty []string `json:"still_pending"`
}

// NewReconciler creates the reconciler.
func NewReconciler(deps ReconcilerDependencies) *Reconciler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := deps.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Reconciler{
		queue:       deps.Queue,
		tickets:     deps.Tickets,
		states:      deps.States,
		metrics:     deps.Metrics,
		logger:      logger.Named("reconciler"),
		maxAttempts: maxAttempts,
	}
}

// Run drains up to limit queued notifications. Notifications of one ticket are
// replayed in order; once one fails the rest of that ticket's batch goes back
// to the head of the queue. A ticket is cleared only when none of its
// notifications remain queued.
func (r *Reconciler) Run(ctx context.Context, limit int) (*Report, error) {
	if limit <= 0 {
		limit = 100
	}
	batch, order, err := r.drain(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &Report{Cleared: []string{}, StillDirty: []string{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileParallelism)
	for _, ticketID := range order {
		ticketID, items := ticketID, batch[ticketID]
		g.Go(func() error {
			outcome, err := r.replay(gctx, ticketID, items)
			mu.Lock()
			defer mu.Unlock()
			report.Processed += len(items)
			report.Delivered += outcome.delivered
			report.Requeued += outcome.requeued
			report.Abandoned += outcome.abandoned
			if outcome.clean {
				report.Cleared = append(report.Cleared, ticketID)
			} else {
				report.StillDirty = append(report.StillDirty, ticketID)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	r.logger.Info("reconcile pass finished",
		zap.Int("processed", report.Processed),
		zap.Int("delivered", report.Delivered),
		zap.Int("requeued", report.Requeued),
		zap.Int("abandoned", report.Abandoned))
	return report, nil
}

func (r *Reconciler) drain(ctx context.Context, limit int) (map[string][]outbox.Notification, []string, error) {
	batch := make(map[string][]outbox.Notification)
	var order []string
	for i := 0; i < limit; i++ {
		n, err := r.queue.Dequeue(ctx)
		if err != nil {
			return nil, nil, err
		}
		if n == nil {
			break
		}
		if _, seen := batch[n.TicketID]; !seen {
			order = append(order, n.TicketID)
		}
		batch[n.TicketID] = append(batch[n.TicketID], *n)
	}
	return batch, order, nil
}

type replayOutcome struct {
	delivered int
	requeued  int
	abandoned int
	clean     bool
}

func (r *Reconciler) replay(ctx context.Context, ticketID string, items []outbox.Notification) (replayOutcome, error) {
	var out replayOutcome
	for i, n := range items {
		err := service.Deliver(ctx, r.tickets, n)
		if err == nil {
			out.delivered++
			r.metrics.Inc(observability.CounterNotifyReconciled)
			continue
		}

		rest := items[i+1:]
		n.Attempts++
		if n.Attempts >= r.maxAttempts {
			out.abandoned++
			r.metrics.Inc(observability.CounterNotifyAbandoned)
			r.logger.Error("notification abandoned",
				zap.String("ticket_id", ticketID),
				zap.String("kind", string(n.Kind)),
				zap.Int("attempts", n.Attempts),
				zap.Error(err))
		} else {
			r.logger.Warn("notification replay failed",
				zap.String("ticket_id", ticketID),
				zap.String("kind", string(n.Kind)),
				zap.Int("attempts", n.Attempts),
				zap.Error(err))
			rest = append([]outbox.Notification{n}, rest...)
		}
		// Back to the head so later calls for the ticket stay behind these.
		if err := r.queue.Requeue(ctx, rest); err != nil {
			return out, err
		}
		out.requeued += len(rest)
		return out, nil
	}
	return r.settle(ctx, ticketID, out)
}

// settle clears sync_pending once nothing for the ticket is left in the queue.
func (r *Reconciler) settle(ctx context.Context, ticketID string, out replayOutcome) (replayOutcome, error) {
	left, err := r.queue.Pending(ctx, ticketID)
	if err != nil {
		return out, err
	}
	if left > 0 {
		return out, nil
	}
	if err := r.states.SetSyncPending(ctx, ticketID, false); err != nil {
		r.logger.Error("clear sync pending failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return out, nil
	}
	// A transition may have queued a call between the check and the clear.
	left, err = r.queue.Pending(ctx, ticketID)
	if err != nil {
		return out, err
	}
	if left > 0 {
		if err := r.states.SetSyncPending(ctx, ticketID, true); err != nil {
			return out, err
		}
		return out, nil
	}
	out.clean = true
	return out, nil
}
