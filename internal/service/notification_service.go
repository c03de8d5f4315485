package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/events"
)

// NotificationService relays workflow events to the log and to external sinks.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	sinks      []events.EventHandler
}

// NewNotificationService creates the service. Each sink receives every workflow event.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, sinks ...events.EventHandler) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		sinks:      sinks,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	events.SubscribeAll(n.dispatcher, n.handle)
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info("workflow event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	var firstErr error
	for _, sink := range n.sinks {
		if err := sink(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
