package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED LOCKER
// Guarantees that a scheduled job runs on one worker replica at a time.
// ══════════════════════════════════════════════════════════════════════════════

// ErrLockHeld is returned when another owner holds the lock.
var ErrLockHeld = errors.New("lock: already held")

// Locker implements gocron.Locker with SET NX + owner-checked release.
type Locker struct {
	cache *Cache
	ttl   time.Duration
}

var _ gocron.Locker = (*Locker)(nil)

// NewLocker creates a locker. ttl <= 0 uses TTLDistributedLock.
func NewLocker(cache *Cache, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	return &Locker{cache: cache, ttl: ttl}
}

// Lock acquires the lock for key or returns ErrLockHeld.
func (l *Locker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	token := uuid.NewString()
	ok, err := l.cache.SetNX(ctx, LockKey(key), token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &lock{cache: l.cache, key: LockKey(key), token: token}, nil
}

type lock struct {
	cache *Cache
	key   string
	token string
}

// Unlock releases the lock if this owner still holds it.
func (l *lock) Unlock(ctx context.Context) error {
	_, err := l.cache.DeleteIfEquals(ctx, l.key, l.token)
	return err
}
