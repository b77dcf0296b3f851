package leaderboard

import (
	"context"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SOURCE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Source - источник истины для лидерборда: суммы одобренных взносов.
type Source interface {
	// ApprovedTotals возвращает суммы одобренных взносов по партнёрам
	// с contribution_date внутри окна.
	ApprovedTotals(ctx context.Context, window shared.TimeRange) ([]Total, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Cache определяет контракт кеша снапшотов (Redis, in-memory).
type Cache interface {
	// Get возвращает снапшот периода.
	// Возвращает (nil, nil), если в кеше ничего нет.
	Get(ctx context.Context, period Period) (*Snapshot, error)

	// Set сохраняет снапшот с TTL.
	Set(ctx context.Context, snapshot *Snapshot, ttl time.Duration) error

	// InvalidateAll сбрасывает снапшоты всех периодов.
	InvalidateAll(ctx context.Context) error
}

// DefaultCacheTTL - сколько снапшот живёт в кеше без инвалидации.
const DefaultCacheTTL = 5 * time.Minute

// DefaultLimit - сколько строк отдаётся по умолчанию.
const DefaultLimit = 50
