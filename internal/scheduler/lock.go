package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cycleLockKey = "matcher:cycle:lock"

// CycleLock serializes allocation cycles across matcher instances
type CycleLock interface {
	// TryAcquire returns false without error if another instance holds the lock
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisCycleLock is a SetNX lock with a TTL so a crashed holder cannot
// block other instances forever
type RedisCycleLock struct {
	client    *redis.Client
	key       string
	lockValue string // instance ID of the holder
	ttl       time.Duration
	logger    *slog.Logger
}

// NewRedisCycleLock connects to Redis and creates a lock owned by instanceID
func NewRedisCycleLock(redisURL, instanceID string, ttl time.Duration, logger *slog.Logger) (*RedisCycleLock, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCycleLock{
		client:    client,
		key:       cycleLockKey,
		lockValue: instanceID,
		ttl:       ttl,
		logger:    logger.With("component", "cycle_lock"),
	}, nil
}

// TryAcquire attempts to take the lock once
func (l *RedisCycleLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.lockValue, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire cycle lock: %w", err)
	}
	if ok {
		l.logger.Debug("Acquired cycle lock", "instance_id", l.lockValue)
	}
	return ok, nil
}

// Release deletes the lock only if this instance still owns it
func (l *RedisCycleLock) Release(ctx context.Context) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`

	result, err := l.client.Eval(ctx, script, []string{l.key}, l.lockValue).Int()
	if err != nil {
		return fmt.Errorf("failed to release cycle lock: %w", err)
	}
	if result == 0 {
		l.logger.Warn("Cycle lock expired or taken over before release", "instance_id", l.lockValue)
	}
	return nil
}

// Close closes the Redis connection
func (l *RedisCycleLock) Close() error {
	return l.client.Close()
}
