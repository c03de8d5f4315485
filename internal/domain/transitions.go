package domain

// TransitionEvent names an inbound workflow operation.
type TransitionEvent string

const (
	EventOpen     TransitionEvent = "open"
	EventRoute    TransitionEvent = "route"
	EventClaim    TransitionEvent = "claim"
	EventReassign TransitionEvent = "reassign"
	EventEscalate TransitionEvent = "escalate"
)

// statusNone stands for "no routing state row yet".
const statusNone RoutingStatus = ""

type transition struct {
	From  RoutingStatus
	Event TransitionEvent
	To    RoutingStatus
}

var transitionsTable = []transition{
	{From: statusNone, Event: EventOpen, To: RoutingStatusUnassigned},
	{From: statusNone, Event: EventRoute, To: RoutingStatusAssigned},

	{From: RoutingStatusUnassigned, Event: EventClaim, To: RoutingStatusAssigned},

	{From: RoutingStatusUnassigned, Event: EventReassign, To: RoutingStatusAssigned},
	{From: RoutingStatusAssigned, Event: EventReassign, To: RoutingStatusAssigned},
	{From: RoutingStatusEscalated, Event: EventReassign, To: RoutingStatusAssigned},

	{From: RoutingStatusUnassigned, Event: EventEscalate, To: RoutingStatusEscalated},
	{From: RoutingStatusAssigned, Event: EventEscalate, To: RoutingStatusEscalated},
	{From: RoutingStatusEscalated, Event: EventEscalate, To: RoutingStatusEscalated},
}

// NextStatus returns the status reached by applying event in from.
// A missing routing state is passed as the empty status.
func NextStatus(from RoutingStatus, event TransitionEvent) (RoutingStatus, bool) {
	for _, t := range transitionsTable {
		if t.From == from && t.Event == event {
			return t.To, true
		}
	}
	return "", false
}
