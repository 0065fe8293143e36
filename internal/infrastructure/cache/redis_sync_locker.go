package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/marketsync/internal/application/marketsync"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const defaultLockKeyPrefix = "marketsync:"

// RedisSyncLocker implements SyncLocker with redislock.
// It guards sync runs across every process sharing the Redis instance.
type RedisSyncLocker struct {
	client    *redis.Client
	locker    *redislock.Client
	keyPrefix string
}

// NewRedisSyncLocker connects to Redis and creates a locker
func NewRedisSyncLocker(cfg config.RedisConfig) (*RedisSyncLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSyncLockerWithClient(client, ""), nil
}

// NewRedisSyncLockerWithClient creates a locker with an existing Redis client
func NewRedisSyncLockerWithClient(client *redis.Client, keyPrefix string) *RedisSyncLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLockKeyPrefix
	}
	return &RedisSyncLocker{
		client:    client,
		locker:    redislock.New(client),
		keyPrefix: keyPrefix,
	}
}

// Obtain acquires key for ttl without waiting.
// Returns ErrLockNotObtained if another holder owns the key.
func (l *RedisSyncLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (marketsync.SyncLock, error) {
	lock, err := l.locker.Obtain(ctx, l.keyPrefix+key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, marketsync.ErrLockNotObtained
		}
		return nil, fmt.Errorf("failed to obtain sync lock: %w", err)
	}
	return &redisSyncLock{lock: lock}, nil
}

// Close closes the Redis client
func (l *RedisSyncLocker) Close() error {
	return l.client.Close()
}

type redisSyncLock struct {
	lock *redislock.Lock
}

// Release frees the lock. A lock that already expired is not an error.
func (l *redisSyncLock) Release(ctx context.Context) error {
	if err := l.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}

// Ensure RedisSyncLocker implements SyncLocker
var _ marketsync.SyncLocker = (*RedisSyncLocker)(nil)
