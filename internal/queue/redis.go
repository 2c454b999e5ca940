package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/karnotxyz/madara-orchestrator/internal/logger"
)

// Redis is a Queue backed by github.com/redis/go-redis/v9, grounded on the
// teacher's redis client wiring pattern (internal/clients/redis). Ready
// messages live on a list; delayed messages live on a sorted set keyed by
// delivery-unix-millis and are promoted onto the ready list lazily, on
// every Consume call, rather than via a separate reaper process — which
// keeps the implementation's observable behavior identical to Memory's.
type Redis struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewRedis(rdb *goredis.Client, log *logger.Logger) *Redis {
	return &Redis{rdb: rdb, log: log.With("component", "RedisQueue")}
}

func readyKey(queueName string) string      { return queueName + ":ready" }
func scheduledKey(queueName string) string  { return queueName + ":scheduled" }
func inflightKey(queueName string) string   { return queueName + ":inflight" }
func deadLetterKey(queueName string) string { return queueName + ":dlq" }
func handleCounterKey(queueName string) string { return queueName + ":handle_seq" }

// Ping confirms the Redis connection is live, used by the HTTP readiness
// probe.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Enqueue(ctx context.Context, queueName string, payload Payload, delay time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if delay <= 0 {
		return r.rdb.RPush(ctx, readyKey(queueName), raw).Err()
	}
	deliverAt := float64(time.Now().Add(delay).UnixMilli())
	return r.rdb.ZAdd(ctx, scheduledKey(queueName), goredis.Z{Score: deliverAt, Member: raw}).Err()
}

// promoteDue moves every scheduled message whose delay has elapsed onto
// the ready list.
func (r *Redis) promoteDue(ctx context.Context, queueName string) {
	now := float64(time.Now().UnixMilli())
	due, err := r.rdb.ZRangeByScore(ctx, scheduledKey(queueName), &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil || len(due) == 0 {
		return
	}
	pipe := r.rdb.TxPipeline()
	for _, member := range due {
		pipe.RPush(ctx, readyKey(queueName), member)
		pipe.ZRem(ctx, scheduledKey(queueName), member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("failed promoting scheduled messages", "queue", queueName, "error", err)
	}
}

func (r *Redis) Consume(ctx context.Context, queueName string) (*Message, error) {
	r.promoteDue(ctx, queueName)

	raw, err := r.rdb.LPop(ctx, readyKey(queueName)).Result()
	if err == goredis.Nil {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queueName, err)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	seq, err := r.rdb.Incr(ctx, handleCounterKey(queueName)).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate handle: %w", err)
	}
	handle := fmt.Sprintf("%s:%d", queueName, seq)
	if err := r.rdb.HSet(ctx, inflightKey(queueName), handle, raw).Err(); err != nil {
		return nil, fmt.Errorf("record inflight: %w", err)
	}
	return &Message{Payload: payload, Handle: handle}, nil
}

func (r *Redis) Ack(ctx context.Context, queueName string, handle string) error {
	return r.rdb.HDel(ctx, inflightKey(queueName), handle).Err()
}

func (r *Redis) Nack(ctx context.Context, queueName string, handle string) error {
	raw, err := r.rdb.HGet(ctx, inflightKey(queueName), handle).Result()
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("nack %s: %w", handle, err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HDel(ctx, inflightKey(queueName), handle)
	pipe.RPush(ctx, readyKey(queueName), raw)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) SendToDeadLetter(ctx context.Context, queueName string, handle string, reason string) error {
	raw, err := r.rdb.HGet(ctx, inflightKey(queueName), handle).Result()
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dead-letter %s: %w", handle, err)
	}
	envelope, err := json.Marshal(map[string]string{"payload": raw, "reason": reason})
	if err != nil {
		return fmt.Errorf("marshal dead-letter envelope: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HDel(ctx, inflightKey(queueName), handle)
	pipe.RPush(ctx, deadLetterKey(queueName), envelope)
	_, err = pipe.Exec(ctx)
	return err
}
