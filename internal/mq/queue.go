package mq

import (
	"context"
	"errors"
)

var (
	ErrQueueClosed     = errors.New("queue is closed")
	ErrQueueNotStarted = errors.New("queue is not started")
)

// MessageHandler processes one delivered message
type MessageHandler func(ctx context.Context, msg *Message) error

// MessageQueue is the transport between match submission and recording.
// Implementations: InMemoryQueue (single process) and RedisQueue (shared).
type MessageQueue interface {
	// Publish enqueues a message on its topic
	Publish(ctx context.Context, msg *Message) error

	// Subscribe registers a handler for a topic
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// Start begins delivering messages
	Start(ctx context.Context) error

	// Stop waits for in-flight handlers and releases resources
	Stop() error

	Stats() QueueStats
}

// QueueStats represents statistics about the queue
type QueueStats struct {
	TotalPublished    int64 `json:"total_published"`
	TotalDelivered    int64 `json:"total_delivered"`
	TotalErrors       int64 `json:"total_errors"`
	ActiveSubscribers int   `json:"active_subscribers"`
	QueueDepth        int   `json:"queue_depth"`
}
