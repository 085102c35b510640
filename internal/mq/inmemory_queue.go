package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// InMemoryQueue implements MessageQueue using a buffered channel and a
// fixed pool of dispatch workers
type InMemoryQueue struct {
	logger *slog.Logger

	subscribers   map[string][]MessageHandler
	subscribersMu sync.RWMutex

	messages chan *Message
	workers  int

	startMu sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	running atomic.Bool
	closed  atomic.Bool

	totalPublished atomic.Int64
	totalDelivered atomic.Int64
	totalErrors    atomic.Int64
}

// InMemoryQueueConfig holds configuration for the queue
type InMemoryQueueConfig struct {
	BufferSize int // Size of the message channel buffer
	Workers    int // Number of dispatch goroutines
}

// DefaultInMemoryQueueConfig returns default configuration
func DefaultInMemoryQueueConfig() InMemoryQueueConfig {
	return InMemoryQueueConfig{
		BufferSize: 1000,
		Workers:    4,
	}
}

// NewInMemoryQueue creates a new in-memory message queue
func NewInMemoryQueue(config InMemoryQueueConfig, logger *slog.Logger) *InMemoryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultInMemoryQueueConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}

	return &InMemoryQueue{
		logger:      logger.With("component", "inmemory_queue"),
		subscribers: make(map[string][]MessageHandler),
		messages:    make(chan *Message, config.BufferSize),
		workers:     config.Workers,
	}
}

// Start launches the dispatch workers
func (q *InMemoryQueue) Start(ctx context.Context) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	q.startMu.Lock()
	defer q.startMu.Unlock()
	if q.running.Load() {
		return fmt.Errorf("queue is already running")
	}

	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running.Store(true)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	q.logger.Info("Message queue started", "buffer_size", cap(q.messages), "workers", q.workers)
	return nil
}

// Stop signals workers to drain buffered messages and waits for them
func (q *InMemoryQueue) Stop() error {
	if q.closed.Swap(true) {
		return nil
	}
	q.startMu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.startMu.Unlock()
	q.wg.Wait()
	q.running.Store(false)

	q.logger.Info("Message queue stopped",
		"total_published", q.totalPublished.Load(),
		"total_delivered", q.totalDelivered.Load(),
		"total_errors", q.totalErrors.Load(),
	)
	return nil
}

// Publish enqueues a message, blocking while the buffer is full
func (q *InMemoryQueue) Publish(ctx context.Context, msg *Message) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if !q.running.Load() {
		return ErrQueueNotStarted
	}

	select {
	case q.messages <- msg:
		q.totalPublished.Add(1)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish cancelled: %w", ctx.Err())
	case <-q.ctx.Done():
		return ErrQueueClosed
	}
}

// Subscribe registers a handler for a topic
func (q *InMemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	q.subscribersMu.Lock()
	defer q.subscribersMu.Unlock()

	q.subscribers[topic] = append(q.subscribers[topic], handler)
	q.logger.Debug("Handler subscribed", "topic", topic, "handlers", len(q.subscribers[topic]))
	return nil
}

// Stats returns current queue statistics
func (q *InMemoryQueue) Stats() QueueStats {
	q.subscribersMu.RLock()
	active := 0
	for _, handlers := range q.subscribers {
		active += len(handlers)
	}
	q.subscribersMu.RUnlock()

	return QueueStats{
		TotalPublished:    q.totalPublished.Load(),
		TotalDelivered:    q.totalDelivered.Load(),
		TotalErrors:       q.totalErrors.Load(),
		ActiveSubscribers: active,
		QueueDepth:        len(q.messages),
	}
}

func (q *InMemoryQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case msg := <-q.messages:
			q.dispatch(msg)
		case <-q.ctx.Done():
			// Drain whatever is already buffered
			for {
				select {
				case msg := <-q.messages:
					q.dispatch(msg)
				default:
					return
				}
			}
		}
	}
}

func (q *InMemoryQueue) dispatch(msg *Message) {
	q.subscribersMu.RLock()
	handlers := q.subscribers[msg.Topic]
	q.subscribersMu.RUnlock()

	if len(handlers) == 0 {
		q.logger.Warn("No subscribers for topic", "topic", msg.Topic, "message_id", msg.ID)
		return
	}

	for _, handler := range handlers {
		q.execute(handler, msg)
	}
}

func (q *InMemoryQueue) execute(handler MessageHandler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			q.totalErrors.Add(1)
			q.logger.Error("Handler panicked", "panic", r, "topic", msg.Topic, "message_id", msg.ID)
		}
	}()

	// Handlers see a live context while draining after Stop
	if err := handler(context.WithoutCancel(q.ctx), msg); err != nil {
		q.totalErrors.Add(1)
		q.logger.Error("Handler error", "error", err, "topic", msg.Topic, "message_id", msg.ID)
		return
	}
	q.totalDelivered.Add(1)
}
