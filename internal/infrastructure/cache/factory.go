package cache

import (
	"fmt"

	"github.com/erp/marketsync/internal/application/marketsync"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SyncLockerFactory creates sync lockers based on configuration
type SyncLockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SyncLockerFactoryOption is a functional option for configuring the factory
type SyncLockerFactoryOption func(*SyncLockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SyncLockerFactoryOption {
	return func(f *SyncLockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory locker when Redis is unavailable.
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) SyncLockerFactoryOption {
	return func(f *SyncLockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSyncLockerFactory creates a new factory
func NewSyncLockerFactory(cfg config.RedisConfig, opts ...SyncLockerFactoryOption) *SyncLockerFactory {
	f := &SyncLockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateLocker returns a Redis locker when Redis is enabled and reachable.
// Otherwise it falls back to an in-memory locker if fallback is allowed.
func (f *SyncLockerFactory) CreateLocker() (marketsync.SyncLocker, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory sync lock")
		return NewInMemorySyncLocker(), nil
	}

	locker, err := NewRedisSyncLocker(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis sync lock", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for sync lock but unavailable: %w", err)
	}

	// In-memory locks do not span processes; two instances could run the same sync.
	f.logger.Warn("Redis unavailable, falling back to in-memory sync lock",
		zap.Error(err),
	)
	return NewInMemorySyncLocker(), nil
}
