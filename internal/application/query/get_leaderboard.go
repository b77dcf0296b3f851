// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Transient read failures are retried a bounded number of times.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/logger"
	"github.com/impact-hub/partner-portal/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает лидерборд за период. Снапшот может прийти из кеша и отставать
// от данных не более чем на TTL: время генерации и флаг from_cache
// всегда возвращаются клиенту.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Period - weekly, monthly или all_time (пусто = all_time).
	Period string

	// Limit - количество строк (по умолчанию 50, максимум 100).
	Limit int
}

// Validate проверяет параметры и подставляет значения по умолчанию.
func (q *GetLeaderboardQuery) Validate() (leaderboard.Period, error) {
	period, err := leaderboard.ParsePeriod(q.Period)
	if err != nil {
		return "", err
	}
	if q.Limit < 0 {
		return "", shared.Validation("leaderboard", "Get", "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = leaderboard.DefaultLimit
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	return period, nil
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Period - период лидерборда.
	Period leaderboard.Period `json:"period"`

	// Entries - строки лидерборда.
	Entries []leaderboard.Entry `json:"entries"`

	// TotalCount - сколько партнёров в лидерборде всего.
	TotalCount int `json:"total_count"`

	// GeneratedAt - когда снапшот был вычислен.
	GeneratedAt time.Time `json:"generated_at"`

	// FromCache - снапшот взят из кеша.
	FromCache bool `json:"from_cache"`

	// MaxStalenessSeconds - насколько кешированный снапшот может отставать.
	MaxStalenessSeconds int `json:"max_staleness_seconds"`
}

// GetPositionQuery - позиция одного партнёра за период.
type GetPositionQuery struct {
	Period    string
	PartnerID string
}

// GetPositionResult содержит строку партнёра в лидерборде.
type GetPositionResult struct {
	Period      leaderboard.Period `json:"period"`
	Entry       leaderboard.Entry  `json:"entry"`
	TotalCount  int                `json:"total_count"`
	GeneratedAt time.Time          `json:"generated_at"`
	FromCache   bool               `json:"from_cache"`
}

// LeaderboardConfig настраивает обработчик лидерборда.
type LeaderboardConfig struct {
	// CacheTTL - время жизни снапшота в кеше.
	CacheTTL time.Duration
}

// DefaultLeaderboardConfig возвращает настройки по умолчанию.
func DefaultLeaderboardConfig() LeaderboardConfig {
	return LeaderboardConfig{CacheTTL: leaderboard.DefaultCacheTTL}
}

// GetLeaderboardHandler обрабатывает запросы лидерборда.
type GetLeaderboardHandler struct {
	store    port.Store
	cache    leaderboard.Cache
	features port.Features
	retrier  *retry.Retrier
	config   LeaderboardConfig
	log      *logger.Logger
	now      shared.Clock
}

// NewGetLeaderboardHandler создаёт обработчик. cache может быть nil.
func NewGetLeaderboardHandler(
	store port.Store,
	cache leaderboard.Cache,
	features port.Features,
	config LeaderboardConfig,
	log *logger.Logger,
	now shared.Clock,
) *GetLeaderboardHandler {
	if config.CacheTTL <= 0 {
		config.CacheTTL = leaderboard.DefaultCacheTTL
	}
	return &GetLeaderboardHandler{
		store:    store,
		cache:    cache,
		features: features,
		retrier:  newReadRetrier(),
		config:   config,
		log:      log.With(logger.Component("leaderboard")),
		now:      now,
	}
}

// Handle выполняет запрос лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	period, err := q.Validate()
	if err != nil {
		return nil, err
	}

	snap, fromCache, err := h.snapshot(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	return &GetLeaderboardResult{
		Period:              period,
		Entries:             snap.Top(q.Limit),
		TotalCount:          snap.Count(),
		GeneratedAt:         snap.GeneratedAt,
		FromCache:           fromCache,
		MaxStalenessSeconds: int(h.config.CacheTTL.Seconds()),
	}, nil
}

// PositionOf возвращает позицию партнёра.
// Если у партнёра нет взносов за период, возвращается ErrPartnerNotInLeaderboard.
func (h *GetLeaderboardHandler) PositionOf(ctx context.Context, q GetPositionQuery) (*GetPositionResult, error) {
	period, err := leaderboard.ParsePeriod(q.Period)
	if err != nil {
		return nil, err
	}
	if q.PartnerID == "" {
		return nil, shared.Validation("leaderboard", "PositionOf", "partner_id is required")
	}

	snap, fromCache, err := h.snapshot(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("position_of: %w", err)
	}

	entry, ok := snap.PositionOf(q.PartnerID)
	if !ok {
		return nil, shared.ErrPartnerNotInLeaderboard
	}
	return &GetPositionResult{
		Period:      period,
		Entry:       entry,
		TotalCount:  snap.Count(),
		GeneratedAt: snap.GeneratedAt,
		FromCache:   fromCache,
	}, nil
}

// Rebuild вычисляет снапшот заново и кладёт его в кеш.
func (h *GetLeaderboardHandler) Rebuild(ctx context.Context, period leaderboard.Period) (*leaderboard.Snapshot, error) {
	snap, err := h.compute(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("rebuild_leaderboard: %w", err)
	}
	h.saveToCache(ctx, snap)
	return snap, nil
}

// snapshot отдаёт снапшот из кеша или вычисляет его.
// Ошибка кеша не ломает запрос: лидерборд считается из базы.
func (h *GetLeaderboardHandler) snapshot(ctx context.Context, period leaderboard.Period) (*leaderboard.Snapshot, bool, error) {
	if h.cacheEnabled() {
		snap, err := h.cache.Get(ctx, period)
		if err != nil {
			h.log.Warn("leaderboard cache read failed", logger.Period(string(period)), logger.Err(err))
		} else if snap != nil {
			return snap, true, nil
		}
	}

	snap, err := h.compute(ctx, period)
	if err != nil {
		return nil, false, err
	}
	h.saveToCache(ctx, snap)
	return snap, false, nil
}

func (h *GetLeaderboardHandler) saveToCache(ctx context.Context, snap *leaderboard.Snapshot) {
	if !h.cacheEnabled() {
		return
	}
	if err := h.cache.Set(ctx, snap, h.config.CacheTTL); err != nil {
		h.log.Warn("leaderboard cache write failed", logger.Period(string(snap.Period)), logger.Err(err))
	}
}

// compute строит лидерборд из одобренных взносов.
func (h *GetLeaderboardHandler) compute(ctx context.Context, period leaderboard.Period) (*leaderboard.Snapshot, error) {
	now := h.now()
	repos := h.store.Repositories()

	totals, err := retry.Value(ctx, h.retrier, func(ctx context.Context) ([]leaderboard.Total, error) {
		return repos.Leaderboard.ApprovedTotals(ctx, period.Window(now))
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.PartnerID)
	}
	partners, err := retry.Value(ctx, h.retrier, func(ctx context.Context) (map[string]*partner.Partner, error) {
		return loadPartners(ctx, repos, ids)
	})
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]leaderboard.Profile, len(partners))
	for id, p := range partners {
		profiles[id] = leaderboard.Profile{
			DisplayName: p.FullName,
			AvatarURL:   p.AvatarURL,
			Rank:        p.Rank,
			ImpactScore: p.ImpactScore,
		}
	}

	return leaderboard.NewSnapshot(period, leaderboard.BuildRanking(totals, profiles), now), nil
}

func (h *GetLeaderboardHandler) cacheEnabled() bool {
	if h.cache == nil {
		return false
	}
	return h.features == nil || h.features.Enabled(port.FeatureLeaderboardCache)
}
