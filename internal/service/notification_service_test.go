package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/events"
)

func TestNotificationServiceForwardsToSinks(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var forwarded []events.EventType
	sink := func(_ context.Context, e events.Event) error {
		forwarded = append(forwarded, e.Type)
		return nil
	}
	NewNotificationService(dispatcher, zap.NewNop(), sink).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketClaimed, "T-1", events.ActorFor("u1"), nil)))
	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketEscalated, "T-1", events.ActorFor(""), nil)))

	assert.Equal(t, []events.EventType{events.EventTicketClaimed, events.EventTicketEscalated}, forwarded)
}
