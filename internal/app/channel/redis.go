package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisFactory backs every channel kind with a Redis list, giving durability
// across producer/consumer restarts (spec.md §4.2) via RPUSH/LLEN; the
// worker supervisor is expected to BLPOP the same keys.
type RedisFactory struct {
	client *redis.Client
	prefix string
}

// NewRedisFactory builds a Factory over an existing Redis client. prefix
// namespaces keys (e.g. by deployment) and may be empty.
func NewRedisFactory(client *redis.Client, prefix string) *RedisFactory {
	return &RedisFactory{client: client, prefix: prefix}
}

func (f *RedisFactory) key(parts ...string) string {
	key := f.prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (f *RedisFactory) ActorMsgChannel(actorDBID string) ActorMsgChannel {
	return &redisQueue{client: f.client, key: f.key("actor-msg", actorDBID)}
}

func (f *RedisFactory) CommandChannel() CommandChannel {
	return &redisCommandQueue{client: f.client, key: f.key("commands")}
}

func (f *RedisFactory) WorkerChannel(chName string) WorkerChannel {
	return &redisWorkerChannel{client: f.client, key: f.key("worker", chName)}
}

type redisQueue struct {
	client *redis.Client
	key    string
}

func (q *redisQueue) PutMsg(ctx context.Context, msg Message) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("channel: encode message: %w", err)
	}
	return q.client.RPush(ctx, q.key, buf).Err()
}

func (q *redisQueue) ApproxLen(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	return int(n), err
}

type redisCommandQueue struct {
	client *redis.Client
	key    string
}

func (c *redisCommandQueue) PutCmd(ctx context.Context, cmd Command) error {
	buf, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("channel: encode command: %w", err)
	}
	return c.client.RPush(ctx, c.key, buf).Err()
}

type redisWorkerChannel struct {
	client *redis.Client
	key    string
}

func (w *redisWorkerChannel) Shutdown(ctx context.Context) error {
	return w.client.RPush(ctx, w.key, "shutdown").Err()
}
