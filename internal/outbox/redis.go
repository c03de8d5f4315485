package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisQueue struct {
	client   *redis.Client
	key      string
	countKey string
}

// NewRedisQueue stores pending notifications in a Redis list under key.
// New entries are pushed on the left and popped from the right. Per-ticket
// counts live in the hash key+":tickets".
func NewRedisQueue(client *redis.Client, key string) Queue {
	return &redisQueue{client: client, key: key, countKey: key + ":tickets"}
}

func (q *redisQueue) Enqueue(ctx context.Context, n Notification) error {
	stamp(&n)
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.key, payload)
		pipe.HIncrBy(ctx, q.countKey, n.TicketID, 1)
		return nil
	})
	return err
}

func (q *redisQueue) Requeue(ctx context.Context, items []Notification) error {
	if len(items) == 0 {
		return nil
	}
	// RPUSH in reverse so items[0] ends up rightmost and pops first.
	payloads := make([]any, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		n := items[i]
		stamp(&n)
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode notification: %w", err)
		}
		payloads = append(payloads, payload)
	}
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, q.key, payloads...)
		for _, n := range items {
			pipe.HIncrBy(ctx, q.countKey, n.TicketID, 1)
		}
		return nil
	})
	return err
}

func (q *redisQueue) Dequeue(ctx context.Context) (*Notification, error) {
	raw, err := q.client.RPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	// A failed decrement leaves the count high, which only keeps the ticket flagged.
	if left, err := q.client.HIncrBy(ctx, q.countKey, n.TicketID, -1).Result(); err == nil && left <= 0 {
		q.client.HDel(ctx, q.countKey, n.TicketID)
	}
	return &n, nil
}

func (q *redisQueue) Pending(ctx context.Context, ticketID string) (int64, error) {
	count, err := q.client.HGet(ctx, q.countKey, ticketID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return count, err
}

func (q *redisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
