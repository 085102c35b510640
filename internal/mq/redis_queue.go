package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisConnection = errors.New("redis connection failed")

// RedisQueue implements MessageQueue on Redis lists. Publishers LPUSH onto
// "{prefix}{topic}", each subscription BRPOPs from the same list, so several
// matcher replicas compete for messages. A message whose handler fails is
// pushed back with Attempt incremented until MaxRetries, then moved to
// "{prefix}{topic}:dead".
type RedisQueue struct {
	client       *redis.Client
	logger       *slog.Logger
	prefix       string
	maxRetries   int
	pollInterval time.Duration

	subMu   sync.Mutex
	topics  map[string][]MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	closed  atomic.Bool

	totalPublished atomic.Int64
	totalDelivered atomic.Int64
	totalErrors    atomic.Int64
}

// RedisQueueConfig configuration for Redis queue
type RedisQueueConfig struct {
	RedisURL     string
	KeyPrefix    string
	MaxRetries   int
	PollInterval time.Duration // BRPOP timeout; bounds shutdown latency
	PoolSize     int
}

// NewRedisQueue connects to Redis and returns an unstarted queue
func NewRedisQueue(config RedisQueueConfig, logger *slog.Logger) (*RedisQueue, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisConnection, err)
	}

	return NewRedisQueueWithClient(client, config, logger), nil
}

// NewRedisQueueWithClient wraps an existing client
func NewRedisQueueWithClient(client *redis.Client, config RedisQueueConfig, logger *slog.Logger) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "matcher:queue:"
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}

	return &RedisQueue{
		client:       client,
		logger:       logger.With("component", "redis_queue"),
		prefix:       config.KeyPrefix,
		maxRetries:   config.MaxRetries,
		pollInterval: config.PollInterval,
		topics:       make(map[string][]MessageHandler),
	}
}

func (q *RedisQueue) listKey(topic string) string {
	return q.prefix + topic
}

func (q *RedisQueue) deadKey(topic string) string {
	return q.prefix + topic + ":dead"
}

// Publish pushes a message onto its topic list
func (q *RedisQueue) Publish(ctx context.Context, msg *Message) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.listKey(msg.Topic), data).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	q.totalPublished.Add(1)
	return nil
}

// Subscribe registers a handler. Subscriptions made after Start begin
// consuming immediately.
func (q *RedisQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	q.subMu.Lock()
	defer q.subMu.Unlock()

	q.topics[topic] = append(q.topics[topic], handler)
	if q.running.Load() {
		q.spawn(topic, handler)
	}
	return nil
}

// Start launches one consumer loop per subscription
func (q *RedisQueue) Start(ctx context.Context) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	q.subMu.Lock()
	defer q.subMu.Unlock()

	if q.running.Load() {
		return fmt.Errorf("queue is already running")
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running.Store(true)

	for topic, handlers := range q.topics {
		for _, h := range handlers {
			q.spawn(topic, h)
		}
	}

	q.logger.Info("Redis queue started", "prefix", q.prefix, "topics", len(q.topics))
	return nil
}

// spawn must be called with subMu held
func (q *RedisQueue) spawn(topic string, handler MessageHandler) {
	q.wg.Add(1)
	go q.consume(topic, handler)
}

func (q *RedisQueue) consume(topic string, handler MessageHandler) {
	defer q.wg.Done()
	key := q.listKey(topic)

	for {
		if q.ctx.Err() != nil {
			return
		}

		result, err := q.client.BRPop(q.ctx, q.pollInterval, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || q.ctx.Err() != nil {
				continue
			}
			q.logger.Error("Failed to pop message", "topic", topic, "error", err)
			time.Sleep(q.pollInterval)
			continue
		}

		// BRPOP returns [key, value]
		if len(result) != 2 {
			continue
		}
		q.handle(topic, handler, result[1])
	}
}

func (q *RedisQueue) handle(topic string, handler MessageHandler, raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		q.totalErrors.Add(1)
		q.logger.Error("Dropping undecodable message", "topic", topic, "error", err)
		return
	}

	ctx := context.WithoutCancel(q.ctx)
	if err := handler(ctx, &msg); err != nil {
		q.totalErrors.Add(1)
		q.retry(ctx, topic, &msg, err)
		return
	}
	q.totalDelivered.Add(1)
}

func (q *RedisQueue) retry(ctx context.Context, topic string, msg *Message, cause error) {
	msg.Attempt++
	key := q.listKey(topic)
	if msg.Attempt >= q.maxRetries {
		key = q.deadKey(topic)
	}

	data, err := json.Marshal(msg)
	if err == nil {
		err = q.client.LPush(ctx, key, data).Err()
	}
	if err != nil {
		q.logger.Error("Failed to requeue message", "topic", topic, "message_id", msg.ID, "error", err)
		return
	}

	q.logger.Warn("Handler failed, message requeued",
		"topic", topic,
		"message_id", msg.ID,
		"attempt", msg.Attempt,
		"dead_lettered", msg.Attempt >= q.maxRetries,
		"error", cause,
	)
}

// Stop cancels consumer loops, waits for them, and closes the client
func (q *RedisQueue) Stop() error {
	if q.closed.Swap(true) {
		return nil
	}

	q.subMu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.subMu.Unlock()

	q.wg.Wait()
	q.running.Store(false)
	return q.client.Close()
}

// Stats returns queue statistics. QueueDepth is not tracked locally.
func (q *RedisQueue) Stats() QueueStats {
	q.subMu.Lock()
	active := 0
	for _, handlers := range q.topics {
		active += len(handlers)
	}
	q.subMu.Unlock()

	return QueueStats{
		TotalPublished:    q.totalPublished.Load(),
		TotalDelivered:    q.totalDelivered.Load(),
		TotalErrors:       q.totalErrors.Load(),
		ActiveSubscribers: active,
	}
}

// DeadLetters returns up to limit dead-lettered messages for a topic
func (q *RedisQueue) DeadLetters(ctx context.Context, topic string, limit int64) ([]*Message, error) {
	raw, err := q.client.LRange(ctx, q.deadKey(topic), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	messages := make([]*Message, 0, len(raw))
	for _, r := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(r), &msg); err != nil {
			continue
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}
