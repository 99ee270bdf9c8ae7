package worker

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is the transport between submitters and workers.
type Queue interface {
	// Push adds an item to the end of a queue (LPUSH).
	Push(ctx context.Context, queue string, item Item) error

	// Pop removes and returns an item from the front of a queue (BRPOP).
	// Blocks until an item is available or the context is canceled.
	Pop(ctx context.Context, queue string) (*Item, error)

	// Publish sends an outcome to a pub/sub channel.
	Publish(ctx context.Context, channel string, outcome Outcome) error

	// Subscribe receives outcomes from a pub/sub channel until the context
	// is canceled.
	Subscribe(ctx context.Context, channel string) (<-chan Outcome, error)

	// Heartbeat refreshes the liveness key for a worker pool with a 30s TTL.
	Heartbeat(ctx context.Context, pool string) error

	// WorkerCount returns the number of live workers in a pool.
	WorkerCount(ctx context.Context, pool string) (int, error)

	// AddWorkers adjusts the worker count for a pool by delta.
	AddWorkers(ctx context.Context, pool string, delta int) error

	// Close closes the connection.
	Close() error
}

// RedisOptions configures the Redis queue connection.
type RedisOptions struct {
	// URL is the Redis connection string, e.g. "redis://localhost:6379".
	URL string

	// TLS enables secure connections. Nil disables TLS.
	TLS *tls.Config

	// ConnectTimeout bounds connection establishment. Defaults to 5s.
	ConnectTimeout time.Duration

	// ReadTimeout bounds read operations. Defaults to 30s.
	ReadTimeout time.Duration

	// WriteTimeout bounds write operations. Defaults to 5s.
	WriteTimeout time.Duration
}

// RedisQueue implements Queue on go-redis.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue connects to Redis and verifies connectivity.
func NewRedisQueue(opts RedisOptions) (*RedisQueue, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("worker: failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("worker: failed to connect to Redis: %w", err)
	}

	return &RedisQueue{client: client}, nil
}

// NewRedisQueueFromClient wraps an existing go-redis client.
func NewRedisQueueFromClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Push adds an item to the end of a queue.
func (q *RedisQueue) Push(ctx context.Context, queue string, item Item) error {
	if err := item.IsValid(); err != nil {
		return fmt.Errorf("worker: invalid item: %w", err)
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("worker: failed to marshal item: %w", err)
	}
	if err := q.client.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("worker: failed to push to queue %s: %w", queue, err)
	}
	return nil
}

// Pop removes and returns an item from the front of a queue, blocking until
// one is available or the context is canceled.
func (q *RedisQueue) Pop(ctx context.Context, queue string) (*Item, error) {
	result, err := q.client.BRPop(ctx, 0, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("worker: failed to pop from queue %s: %w", queue, err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("worker: unexpected BRPOP result length: %d", len(result))
	}

	var item Item
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		return nil, fmt.Errorf("worker: failed to unmarshal item: %w", err)
	}
	return &item, nil
}

// Publish sends an outcome to a pub/sub channel.
func (q *RedisQueue) Publish(ctx context.Context, channel string, outcome Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("worker: failed to marshal outcome: %w", err)
	}
	if err := q.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("worker: failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe receives outcomes from a pub/sub channel.
func (q *RedisQueue) Subscribe(ctx context.Context, channel string) (<-chan Outcome, error) {
	pubsub := q.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("worker: failed to subscribe to channel %s: %w", channel, err)
	}

	out := make(chan Outcome)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var outcome Outcome
				if err := json.Unmarshal([]byte(msg.Payload), &outcome); err != nil {
					continue
				}
				select {
				case out <- outcome:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Heartbeat refreshes the liveness key for a worker pool.
func (q *RedisQueue) Heartbeat(ctx context.Context, pool string) error {
	key := fmt.Sprintf("workers:%s:health", pool)
	if err := q.client.Set(ctx, key, "ok", 30*time.Second).Err(); err != nil {
		return fmt.Errorf("worker: failed to set heartbeat for pool %s: %w", pool, err)
	}
	return nil
}

// WorkerCount returns the number of live workers in a pool.
func (q *RedisQueue) WorkerCount(ctx context.Context, pool string) (int, error) {
	key := fmt.Sprintf("workers:%s:count", pool)
	count, err := q.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("worker: failed to get worker count for pool %s: %w", pool, err)
	}
	return count, nil
}

// AddWorkers adjusts the worker count for a pool by delta.
func (q *RedisQueue) AddWorkers(ctx context.Context, pool string, delta int) error {
	key := fmt.Sprintf("workers:%s:count", pool)
	if err := q.client.IncrBy(ctx, key, int64(delta)).Err(); err != nil {
		return fmt.Errorf("worker: failed to adjust worker count for pool %s: %w", pool, err)
	}
	return nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
