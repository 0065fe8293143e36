package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/marketsync/internal/application/marketsync"
	"github.com/google/uuid"
)

// heldLock represents a held key with expiration
type heldLock struct {
	token     uuid.UUID
	expiresAt time.Time
}

// InMemorySyncLocker implements SyncLocker with a process-local map.
// This is suitable for single-instance deployments and testing.
type InMemorySyncLocker struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

// NewInMemorySyncLocker creates a new in-memory locker
func NewInMemorySyncLocker() *InMemorySyncLocker {
	return &InMemorySyncLocker{
		locks: make(map[string]heldLock),
		now:   time.Now,
	}
}

// Obtain acquires key for ttl without waiting.
// An expired holder is replaced.
func (l *InMemorySyncLocker) Obtain(_ context.Context, key string, ttl time.Duration) (marketsync.SyncLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, exists := l.locks[key]; exists && now.Before(held.expiresAt) {
		return nil, marketsync.ErrLockNotObtained
	}

	token := uuid.New()
	l.locks[key] = heldLock{token: token, expiresAt: now.Add(ttl)}
	return &inMemorySyncLock{locker: l, key: key, token: token}, nil
}

// Held returns true if key is currently locked (for testing/monitoring)
func (l *InMemorySyncLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, exists := l.locks[key]
	return exists && l.now().Before(held.expiresAt)
}

func (l *InMemorySyncLocker) release(key string, token uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// only the current holder may release; a lock taken over after expiry stays
	if held, exists := l.locks[key]; exists && held.token == token {
		delete(l.locks, key)
	}
}

type inMemorySyncLock struct {
	locker *InMemorySyncLocker
	key    string
	token  uuid.UUID
	once   sync.Once
}

// Release frees the lock; safe to call multiple times
func (l *inMemorySyncLock) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.release(l.key, l.token)
	})
	return nil
}

// Ensure InMemorySyncLocker implements SyncLocker
var _ marketsync.SyncLocker = (*InMemorySyncLocker)(nil)
