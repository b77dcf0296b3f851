package redis

import (
	"context"
	"errors"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache stores one JSON snapshot per period under
// "leaderboard:snapshot:{period}". It implements leaderboard.Cache.
type LeaderboardCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// WithBreaker routes Get and Set through cb. InvalidateAll always reaches
// Redis: skipping an invalidation would serve a stale board until the TTL.
func (l *LeaderboardCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *LeaderboardCache {
	l.breaker = cb
	return l
}

func (l *LeaderboardCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if l.breaker == nil {
		return fn(ctx)
	}
	return l.breaker.Execute(ctx, fn)
}

// Get returns the cached snapshot, or (nil, nil) on a miss.
func (l *LeaderboardCache) Get(ctx context.Context, period leaderboard.Period) (*leaderboard.Snapshot, error) {
	var out *leaderboard.Snapshot
	err := l.guard(ctx, func(ctx context.Context) error {
		var snap leaderboard.Snapshot
		err := l.cache.Get(ctx, LeaderboardKey(string(period)), &snap)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		if errors.Is(err, ErrCacheSerialization) {
			// unreadable entry: drop it and recompute
			_ = l.cache.Delete(ctx, LeaderboardKey(string(period)))
			return nil
		}
		if err != nil {
			return err
		}
		snap.RebuildIndex()
		out = &snap
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores a snapshot with the given TTL.
func (l *LeaderboardCache) Set(ctx context.Context, snapshot *leaderboard.Snapshot, ttl time.Duration) error {
	if snapshot == nil {
		return ErrCacheNilValue
	}
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	return l.guard(ctx, func(ctx context.Context) error {
		return l.cache.Set(ctx, LeaderboardKey(string(snapshot.Period)), snapshot, ttl)
	})
}

// InvalidateAll drops the snapshots of every period in one DEL.
func (l *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	keys := make([]string, 0, len(leaderboard.AllPeriods))
	for _, p := range leaderboard.AllPeriods {
		keys = append(keys, LeaderboardKey(string(p)))
	}
	return l.cache.Delete(ctx, keys...)
}

// Invalidate drops the snapshot of a single period.
func (l *LeaderboardCache) Invalidate(ctx context.Context, period leaderboard.Period) error {
	return l.cache.Delete(ctx, LeaderboardKey(string(period)))
}
