// Package outbox queues ticket-service notifications that failed after the
// local transition committed, so they can be replayed later.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// Kind identifies which ticket-service call a notification replays.
type Kind string

const (
	KindAssign     Kind = "assign"
	KindStatus     Kind = "status"
	KindEscalation Kind = "escalation"
)

// Notification is one pending ticket-service call.
type Notification struct {
	ID         string              `json:"id"`
	Kind       Kind                `json:"kind"`
	TicketID   string              `json:"ticket_id"`
	UserID     string              `json:"user_id,omitempty"`
	Level      domain.SupportLevel `json:"level,omitempty"`
	Status     string              `json:"status,omitempty"`
	FromLevel  domain.SupportLevel `json:"from_level,omitempty"`
	ToLevel    domain.SupportLevel `json:"to_level,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Attempts   int                 `json:"attempts"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
}

// Queue is a FIFO of pending notifications.
type Queue interface {
	Enqueue(ctx context.Context, n Notification) error
	// Requeue puts items back at the head of the queue, keeping their order,
	// so they are dequeued before anything enqueued after them.
	Requeue(ctx context.Context, items []Notification) error
	// Dequeue pops the oldest entry; it returns nil when the queue is empty.
	Dequeue(ctx context.Context) (*Notification, error)
	// Pending counts queued entries for one ticket.
	Pending(ctx context.Context, ticketID string) (int64, error)
	Len(ctx context.Context) (int64, error)
}

func stamp(n *Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.EnqueuedAt.IsZero() {
		n.EnqueuedAt = time.Now().UTC()
	}
}

type memoryQueue struct {
	mu      sync.Mutex
	entries []Notification
}

// NewMemoryQueue returns a process-local queue.
func NewMemoryQueue() Queue {
	return &memoryQueue{}
}

func (q *memoryQueue) Enqueue(_ context.Context, n Notification) error {
	stamp(&n)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, n)
	return nil
}

func (q *memoryQueue) Requeue(_ context.Context, items []Notification) error {
	head := make([]Notification, 0, len(items)+len(q.entries))
	for _, n := range items {
		stamp(&n)
		head = append(head, n)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(head, q.entries...)
	return nil
}

func (q *memoryQueue) Dequeue(_ context.Context) (*Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, nil
	}
	n := q.entries[0]
	q.entries = q.entries[1:]
	return &n, nil
}

func (q *memoryQueue) Pending(_ context.Context, ticketID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var count int64
	for _, n := range q.entries {
		if n.TicketID == ticketID {
			count++
		}
	}
	return count, nil
}

func (q *memoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}
