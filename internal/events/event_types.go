package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/workflow-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened     EventType = "ticket_opened"
	EventTicketRouted     EventType = "ticket_routed"
	EventTicketClaimed    EventType = "ticket_claimed"
	EventTicketReassigned EventType = "ticket_reassigned"
	EventTicketEscalated  EventType = "ticket_escalated"
)

// AllTypes lists every workflow event type.
var AllTypes = []EventType{
	EventTicketOpened,
	EventTicketRouted,
	EventTicketClaimed,
	EventTicketReassigned,
	EventTicketEscalated,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.SubjectType `json:"type"`
	UserID *string            `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TransitionPayload describes a routing state change.
type TransitionPayload struct {
	Status          domain.RoutingStatus `json:"status"`
	FromGroupID     *int64               `json:"from_group_id,omitempty"`
	ToGroupID       int64                `json:"to_group_id"`
	FromMemberID    *int64               `json:"from_member_id,omitempty"`
	ToMemberID      *int64               `json:"to_member_id,omitempty"`
	EscalationCount int                  `json:"escalation_count"`
	Trigger         string               `json:"trigger,omitempty"`
	Reason          string               `json:"reason,omitempty"`
	SyncPending     bool                 `json:"sync_pending"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ActorFor builds an actor from an optional user id. Empty ids are service actors.
func ActorFor(userID string) Actor {
	if userID == "" {
		return Actor{Type: domain.SubjectTypeService}
	}
	return Actor{Type: domain.SubjectTypeUser, UserID: &userID}
}
