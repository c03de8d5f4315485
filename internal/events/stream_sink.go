package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamSink appends workflow events to a Redis stream for downstream consumers.
type StreamSink struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamSink creates a sink writing to stream.
func NewStreamSink(client *redis.Client, stream string, logger *zap.Logger) *StreamSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamSink{client: client, stream: stream, logger: logger}
}

// Handle is an EventHandler that XADDs the event.
func (s *StreamSink) Handle(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"type":      string(event.Type),
			"ticket_id": event.TicketID,
			"data":      string(data),
			"timestamp": event.Timestamp.Unix(),
		},
	}).Result()
	if err != nil {
		s.logger.Warn("event stream append failed",
			zap.String("stream", s.stream),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	s.logger.Debug("event appended", zap.String("stream", s.stream), zap.String("entry_id", id))
	return nil
}
